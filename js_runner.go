//  Copyright 2012-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package cushion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robertkrimen/otto"
)

// A string parameter that Call parses as JSON instead of passing as a JS string.
type JSONString string

type NativeFunction func(otto.FunctionCall) otto.Value

// ErrJSTimeout is returned when a function runs past the runner's timeout.
var ErrJSTimeout = errors.New("javascript function timed out")

// Panic value delivered through the vm interrupt channel.
type jsInterrupt struct {
	err error
}

// JSRunner compiles one JavaScript function (map, list, show, validation)
// into its own otto runtime. Not safe for concurrent use; JSServer pools them.
type JSRunner struct {
	js       *otto.Otto
	fn       otto.Value
	fnSource string
	timeout  time.Duration

	// Called before each invocation.
	Before func()

	// Converts the function's result to Go. Without it Call returns nil.
	After func(otto.Value, error) (interface{}, error)
}

// Compiles funcSource, which should look like "function(x,y) { ... }".
// A zero timeout lets calls run until their context is done.
func NewJSRunner(funcSource string, timeout time.Duration) (*JSRunner, error) {
	runner := &JSRunner{}
	if err := runner.Init(funcSource, timeout); err != nil {
		return nil, err
	}
	return runner, nil
}

func (runner *JSRunner) Init(funcSource string, timeout time.Duration) error {
	runner.js = otto.New()
	runner.fn = otto.UndefinedValue()
	runner.fnSource = ""
	runner.timeout = timeout

	runner.DefineNativeFunction("log", func(call otto.FunctionCall) otto.Value {
		debug(context.TODO(), "JS: %s", joinArguments(call))
		return otto.UndefinedValue()
	})
	err := runner.js.Set("console", map[string]interface{}{
		"error": func(call otto.FunctionCall) otto.Value {
			warn(context.TODO(), "JS: %s", joinArguments(call))
			return otto.UndefinedValue()
		},
		"log": func(call otto.FunctionCall) otto.Value {
			info(context.TODO(), "JS: %s", joinArguments(call))
			return otto.UndefinedValue()
		},
	})
	if err != nil {
		return err
	}
	_, err = runner.SetFunction(funcSource)
	return err
}

func joinArguments(call otto.FunctionCall) string {
	var output string
	for i, arg := range call.ArgumentList {
		if i > 0 {
			output += " "
		}
		str, _ := arg.ToString()
		output += str
	}
	return output
}

// Recompiles the runner with a new source. Reports false when unchanged.
// An empty source makes Call a no-op.
func (runner *JSRunner) SetFunction(funcSource string) (bool, error) {
	if funcSource == runner.fnSource {
		return false, nil
	}
	fn := otto.UndefinedValue()
	if funcSource != "" {
		obj, err := runner.js.Object("(" + funcSource + ")")
		if err != nil {
			return false, err
		}
		if obj.Class() != "Function" {
			return false, errors.New("JavaScript source does not evaluate to a function")
		}
		fn = obj.Value()
	}
	runner.fn = fn
	runner.fnSource = funcSource
	return true, nil
}

// Installs a global helper function, e.g. "emit". Call before the first Call.
func (runner *JSRunner) DefineNativeFunction(name string, function NativeFunction) {
	_ = runner.js.Set(name, (func(otto.FunctionCall) otto.Value)(function))
}

func (runner *JSRunner) toJS(input interface{}) (otto.Value, error) {
	if jsonStr, ok := input.(JSONString); ok {
		if jsonStr == "" {
			return otto.NullValue(), nil
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
			return otto.Value{}, fmt.Errorf("Unparseable JSRunner input %s: %w", jsonStr, err)
		}
		input = parsed
	}
	value, err := runner.js.ToValue(input)
	if err != nil {
		return otto.Value{}, fmt.Errorf("Couldn't convert %#v to JS: %w", input, err)
	}
	return value, nil
}

// Interrupts the vm once the timeout elapses or ctx is done, unless the
// returned stop func runs first. A nil stop means nothing can interrupt.
// Any interrupt left over from an earlier call is discarded.
func (runner *JSRunner) watch(ctx context.Context) (stop func()) {
	runner.js.Interrupt = nil
	if runner.timeout <= 0 && ctx.Done() == nil {
		return nil
	}
	var expired <-chan time.Time
	var timer *time.Timer
	if runner.timeout > 0 {
		timer = time.NewTimer(runner.timeout)
		expired = timer.C
	}
	interrupt := make(chan func(), 1)
	runner.js.Interrupt = interrupt
	done := make(chan struct{})
	go func() {
		var cause error
		select {
		case <-done:
			return
		case <-expired:
			cause = ErrJSTimeout
		case <-ctx.Done():
			cause = ctx.Err()
		}
		interrupt <- func() { panic(jsInterrupt{cause}) }
	}()
	return func() {
		close(done)
		// The watcher may already have queued an interrupt the vm never ran.
		runner.js.Interrupt = nil
		if timer != nil {
			timer.Stop()
		}
	}
}

// Invokes the function with Go inputs, converted to JS values.
func (runner *JSRunner) Call(ctx context.Context, inputs ...interface{}) (_ interface{}, err error) {
	if runner.Before != nil {
		runner.Before()
	}
	result := otto.UndefinedValue()
	if !runner.fn.IsUndefined() {
		args := make([]interface{}, len(inputs))
		for i, input := range inputs {
			if args[i], err = runner.toJS(input); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stop := runner.watch(ctx); stop != nil {
			defer stop()
			defer func() {
				if caught := recover(); caught != nil {
					interrupted, ok := caught.(jsInterrupt)
					if !ok {
						panic(caught)
					}
					err = interrupted.err
				}
			}()
		}
		result, err = runner.fn.Call(runner.fn, args...)
	}
	if runner.After != nil {
		return runner.After(result, err)
	}
	return nil, err
}
