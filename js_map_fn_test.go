//  Copyright 2013-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package cushion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapFunction(t *testing.T, fnSource string) *JSMapFunction {
	return NewJSMapFunction(fnSource, 0, kTaskCacheSize)
}

// Just verify that the calls to the emit() fn show up in the output.
func TestEmitFunction(t *testing.T) {
	mapper := newTestMapFunction(t, `function(doc) {emit("key", "value"); emit("k2","v2")}`)
	rows, err := mapper.CallFunction(testCtx(t), `{}`, "doc1")
	require.NoError(t, err, "CallFunction failed")
	assert.Equal(t, 2, len(rows))
	assert.Equal(t, &ViewRow{ID: "doc1", Key: "key", Value: "value"}, rows[0])
	assert.Equal(t, &ViewRow{ID: "doc1", Key: "k2", Value: "v2"}, rows[1])
}

func testMap(t *testing.T, mapFn string, doc string) []*ViewRow {
	mapper := newTestMapFunction(t, mapFn)
	rows, err := mapper.CallFunction(testCtx(t), doc, "doc1")
	require.NoError(t, err, "CallFunction failed on %s", doc)
	return rows
}

// Now just make sure the input comes through intact
func TestInputParse(t *testing.T) {
	rows := testMap(t, `function(doc) {emit(doc.key, doc.value);}`,
		`{"key": "k", "value": "v"}`)
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, &ViewRow{ID: "doc1", Key: "k", Value: "v"}, rows[0])
}

// Test different types of keys/values:
func TestKeyTypes(t *testing.T) {
	rows := testMap(t, `function(doc) {emit(doc.key, doc.value);}`,
		`{"ID": "doc1", "key": true, "value": false}`)
	assert.Equal(t, &ViewRow{ID: "doc1", Key: true, Value: false}, rows[0])
	rows = testMap(t, `function(doc) {emit(doc.key, doc.value);}`,
		`{"ID": "doc1", "key": null, "value": 0}`)
	assert.Equal(t, &ViewRow{ID: "doc1", Key: nil, Value: float64(0)}, rows[0])
	rows = testMap(t, `function(doc) {emit(doc.key, doc.value);}`,
		`{"ID": "doc1", "key": ["foo", 23, []], "value": [null]}`)
	assert.Equal(t,
		&ViewRow{
			ID:    "doc1",
			Key:   []interface{}{"foo", 23.0, []interface{}{}},
			Value: []interface{}{nil},
		}, rows[0])
}

// JSON parameters are parsed before the call
func TestCallWithJSON(t *testing.T) {
	mapper := newTestMapFunction(t, `function(doc) {emit(doc._id, doc.n);}`)
	result, err := mapper.CallWithJSON(testCtx(t), `{"_id": "j", "n": 7}`)
	require.NoError(t, err)
	rows := result.([]*ViewRow)
	require.Len(t, rows, 1)
	assert.Equal(t, "j", rows[0].Key)
	assert.Equal(t, float64(7), rows[0].Value)
}

func TestJSServerSetSource(t *testing.T) {
	ctx := testCtx(t)
	server := NewJSServer(`function(x) {return x + 1;}`, 0, 2, nil)
	result, err := server.Call(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, result, "plain runners have no After hook")

	assert.False(t, server.SetSource(`function(x) {return x + 1;}`))
	assert.True(t, server.SetSource(`function(x) {`))
	assert.Equal(t, `function(x) {`, server.Source())
	_, err = server.Call(ctx, 1)
	assert.Error(t, err)
}

// emit() with only a key emits a null value
func TestEmitKeyOnly(t *testing.T) {
	rows := testMap(t, `function(doc) {emit(doc.key);}`, `{"key": "k"}`)
	assert.Equal(t, []*ViewRow{{ID: "doc1", Key: "k"}}, rows)
}

// Empty/no-op map fn
func TestEmptyJSMapFunction(t *testing.T) {
	rows := testMap(t, `function(doc) {}`, `{"key": "k", "value": "v"}`)
	assert.Equal(t, 0, len(rows))
}

// The document ID is visible to the map function as doc._id
func TestDocIDInjected(t *testing.T) {
	rows := testMap(t, `function(doc) {if (doc._id != "doc1") throw("bad ID"); emit(doc._id, null);}`,
		`{"key": "k"}`)
	assert.Equal(t, 1, len(rows))

	rows = testMap(t, `function(doc) {emit(doc._id, null);}`, `{"_id": "kept"}`)
	assert.Equal(t, "kept", rows[0].Key)
}

func TestMapFunctionErrors(t *testing.T) {
	ctx := testCtx(t)
	mapper := newTestMapFunction(t, `function(doc) {throw("nope");}`)
	_, err := mapper.CallFunction(ctx, `{}`, "doc1")
	assert.Error(t, err)

	_, err = mapper.CallFunction(ctx, `not json`, "doc1")
	assert.Error(t, err)
	_, err = mapper.CallFunction(ctx, `null`, "doc1")
	assert.Error(t, err)

	broken := newTestMapFunction(t, `function(doc) {`)
	_, err = broken.CallFunction(ctx, `{}`, "doc1")
	assert.Error(t, err)

	slow := NewJSMapFunction(`function(doc) {while (true) {}}`, 20*time.Millisecond, 1)
	_, err = slow.CallFunction(ctx, `{}`, "doc1")
	assert.ErrorIs(t, err, ErrJSTimeout)
}

// Concurrent callers get their own tasks from the pool
func TestMapFunctionConcurrency(t *testing.T) {
	ctx := testCtx(t)
	mapper := newTestMapFunction(t, `function(doc) {emit(doc.n, null);}`)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := mapper.CallFunction(ctx, `{"n": 1}`, "doc1")
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}
	wg.Wait()
}
