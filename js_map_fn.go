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
	"fmt"
	"time"

	"github.com/robertkrimen/otto"
)

// Default number of idle compiled tasks a map function keeps.
const kTaskCacheSize = 4

// mapTask is one compiled map function plus the rows its current call has
// emitted. Not safe for concurrent use; JSMapFunction pools them.
type mapTask struct {
	JSRunner
	emitted []*ViewRow
}

func newMapTask(source string, timeout time.Duration) (JSServerTask, error) {
	task := &mapTask{}
	if err := task.Init(source, timeout); err != nil {
		return nil, err
	}
	task.DefineNativeFunction("emit", task.emit)
	task.Before = func() { task.emitted = []*ViewRow{} }
	task.After = task.collect
	return task, nil
}

// emit(key[, value]); a missing value emits null.
func (task *mapTask) emit(call otto.FunctionCall) otto.Value {
	key, err := call.Argument(0).Export()
	if err == nil {
		var value interface{}
		if value, err = call.Argument(1).Export(); err == nil {
			task.emitted = append(task.emitted, &ViewRow{Key: key, Value: value})
			return otto.UndefinedValue()
		}
	}
	panic(call.Otto.MakeTypeError(fmt.Sprintf("emit() can't export its arguments: %v", err)))
}

func (task *mapTask) collect(_ otto.Value, err error) (interface{}, error) {
	rows := task.emitted
	task.emitted = nil
	return rows, err
}

// JSMapFunction runs a CouchDB-style map function from any goroutine.
type JSMapFunction struct {
	*JSServer
}

func NewJSMapFunction(source string, timeout time.Duration, maxTasks int) *JSMapFunction {
	return &JSMapFunction{JSServer: NewJSServer(source, timeout, maxTasks, newMapTask)}
}

// Maps one JSON document body to the rows it emits, each tagged with docid.
// The body's _id defaults to docid.
func (fn *JSMapFunction) CallFunction(ctx context.Context, doc string, docid string) ([]*ViewRow, error) {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &body); err != nil {
		return nil, fmt.Errorf("Unparseable document %q: %w", docid, err)
	}
	if body == nil {
		return nil, fmt.Errorf("Document %q is not a JSON object", docid)
	}
	if _, found := body["_id"]; !found {
		body["_id"] = docid
	}
	result, err := fn.Call(ctx, body)
	if err != nil {
		return nil, err
	}
	rows, _ := result.([]*ViewRow)
	for _, row := range rows {
		row.ID = docid
	}
	return rows, nil
}
