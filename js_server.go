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
	"sync"
	"time"
)

// A callable compiled function. JSRunner implements this.
type JSServerTask interface {
	SetFunction(funcSource string) (bool, error)
	Call(ctx context.Context, inputs ...interface{}) (interface{}, error)
}

// Compiles a new task for the given source.
type JSServerTaskFactory func(fnSource string, timeout time.Duration) (JSServerTask, error)

// JSServer is the concurrency-safe face of a JavaScript function. Each call
// borrows a task of its own; up to maxTasks idle tasks are kept for reuse and
// recompiled lazily when the source changes.
type JSServer struct {
	factory JSServerTaskFactory
	idle    chan JSServerTask
	timeout time.Duration

	mu     sync.RWMutex
	source string
}

func runnerTask(fnSource string, timeout time.Duration) (JSServerTask, error) {
	return NewJSRunner(fnSource, timeout)
}

// A nil factory compiles plain JSRunners.
func NewJSServer(fnSource string, timeout time.Duration, maxTasks int, factory JSServerTaskFactory) *JSServer {
	if factory == nil {
		factory = runnerTask
	}
	if maxTasks <= 0 {
		maxTasks = 1
	}
	return &JSServer{
		factory: factory,
		idle:    make(chan JSServerTask, maxTasks),
		timeout: timeout,
		source:  fnSource,
	}
}

func (server *JSServer) Source() string {
	server.mu.RLock()
	defer server.mu.RUnlock()
	return server.source
}

// Replaces the function source, reporting whether it changed. Idle tasks pick
// up the new source the next time they are borrowed.
func (server *JSServer) SetSource(fnSource string) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	if fnSource == server.source {
		return false
	}
	server.source = fnSource
	return true
}

func (server *JSServer) borrow() (JSServerTask, error) {
	source := server.Source()
	select {
	case task := <-server.idle:
		if _, err := task.SetFunction(source); err != nil {
			server.release(task)
			return nil, err
		}
		return task, nil
	default:
		return server.factory(source, server.timeout)
	}
}

func (server *JSServer) release(task JSServerTask) {
	select {
	case server.idle <- task:
	default:
	}
}

// Compiles the current source, leaving the task in the pool for later calls.
func (server *JSServer) Compile() error {
	_, err := server.Run(func(JSServerTask) (interface{}, error) { return nil, nil })
	return err
}

// Runs fn with a borrowed task, returning the task to the pool afterwards.
func (server *JSServer) Run(fn func(JSServerTask) (interface{}, error)) (interface{}, error) {
	task, err := server.borrow()
	if err != nil {
		return nil, err
	}
	defer server.release(task)
	return fn(task)
}

// Calls the function with Go values. Wrap a parameter in JSONString to pass
// it as parsed JSON.
func (server *JSServer) Call(ctx context.Context, params ...interface{}) (interface{}, error) {
	return server.Run(func(task JSServerTask) (interface{}, error) {
		return task.Call(ctx, params...)
	})
}

// Calls the function with each parameter parsed from JSON.
func (server *JSServer) CallWithJSON(ctx context.Context, params ...string) (interface{}, error) {
	values := make([]interface{}, len(params))
	for i, param := range params {
		values[i] = JSONString(param)
	}
	return server.Call(ctx, values...)
}
