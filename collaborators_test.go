// Copyright 2026-Present Couchbase, Inc.
//
// Use of this software is governed by the Business Source License included
// in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
// in that file, in accordance with the Business Source License, use of this
// software will be governed by the Apache License, Version 2.0, included in
// the file licenses/APL2.txt.

package cushion

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// In-memory Database that records what it was asked to do.
type fakeDatabase struct {
	name      string
	compacted []string
	saved     map[string][]byte
	revs      int
	saveErr   error
	onSave    func() // Runs before the save callback, to simulate edits in flight
}

func newFakeDatabase(name string) *fakeDatabase {
	return &fakeDatabase{name: name, saved: map[string][]byte{}}
}

func (db *fakeDatabase) Name() string { return db.name }

func (db *fakeDatabase) Compact(ctx context.Context, designName string, callback CompactCallback) {
	if _, err := NewValidDesignName(designName); err != nil {
		callback(false, err)
		return
	}
	db.compacted = append(db.compacted, designName)
	callback(true, nil)
}

func (db *fakeDatabase) Save(ctx context.Context, id, rev string, body []byte, callback SaveCallback) {
	if db.onSave != nil {
		db.onSave()
	}
	if db.saveErr != nil {
		callback("", db.saveErr)
		return
	}
	db.revs++
	db.saved[id] = body
	callback(fmt.Sprintf("%d-abc", db.revs), nil)
}

// Connection that answers every request with a canned response.
type fakeConnection struct {
	requests []Request
	response []byte
	err      error
}

func (conn *fakeConnection) Request(ctx context.Context, req Request) {
	conn.requests = append(conn.requests, req)
	if conn.err != nil {
		req.Callback(nil, conn.err)
		return
	}
	req.Callback(conn.response, nil)
}

var errOffline = errors.New("offline")

// testCtx creates a context for the given test which is also cancelled once the test has completed.
func testCtx(t testing.TB) context.Context {
	ctx, cancelCtx := context.WithCancel(context.TODO())
	t.Cleanup(cancelCtx)
	return ctx
}
