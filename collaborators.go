//  Copyright 2026-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package cushion

import (
	"context"
	"errors"
	"fmt"
)

// A Connection issues HTTP-style requests against a CouchDB server.
// Implementations must invoke Request.Callback exactly once per call.
type Connection interface {
	Request(ctx context.Context, req Request)
}

// Callback for a Connection request. result holds the raw response body.
type RequestCallback func(result []byte, err error)

// A single request issued through a Connection.
type Request struct {
	Method   string
	Path     string // Relative to the server root, e.g. "db/_design/foo/_info"
	Body     []byte
	Callback RequestCallback
}

// A Database is the server-side database a document lives in.
type Database interface {
	// Name returns the database's path segment.
	Name() string
	// Compact starts compaction of the views of the named design document
	// (bare name, without the "_design/" prefix).
	Compact(ctx context.Context, designName string, callback CompactCallback)
	// Save stores a document body under id, using rev for conflict detection.
	Save(ctx context.Context, id, rev string, body []byte, callback SaveCallback)
}

// Called once compaction was started, or if there was an error.
type CompactCallback func(started bool, err error)

// Called once a save completed with the new revision, or if there was an error.
type SaveCallback func(rev string, err error)

// Called with the raw `_info` response of a design document.
type ViewInfoCallback func(info []byte, err error)

// Type of error returned when a named document or view is missing
type MissingError struct {
	Key string
}

func (err MissingError) Error() string {
	return fmt.Sprintf("key %q missing", err.Key)
}

// Returned through callbacks when a document has no database to talk to.
var ErrNoDatabase = errors.New("document has no database")

// Returned through callbacks when a document has no connection to talk to.
var ErrNoConnection = errors.New("document has no connection")

// Common query iterator interface, implemented by ViewResult.
type QueryResultIterator interface {
	One(valuePtr interface{}) error // Unmarshal a single result row into valuePtr, and then close the iterator
	Next(valuePtr interface{}) bool // Unmarshal the next result row into valuePtr.  Returns false when reaching end of result set
	NextBytes() []byte              // Retrieve raw bytes for the next result row
	Close() error                   // Closes the iterator.  Returns any row-level errors seen during iteration.
}

// Result of a view query.
type ViewResult struct {
	TotalRows int         `json:"total_rows"`
	Rows      ViewRows    `json:"rows"`
	Errors    []ViewError `json:"errors,omitempty"`
	Collator  JSONCollator
	iterIndex int   // Used to support iterator interface
	iterErr   error // Error encountered during iteration
}

type ViewRows []*ViewRow

// A single result row from a view query.
type ViewRow struct {
	ID    string       `json:"id"`
	Key   interface{}  `json:"key"`
	Value interface{}  `json:"value"`
	Doc   *interface{} `json:"doc,omitempty"`
}

type ViewError struct {
	From   string
	Reason string
}

func (ve ViewError) Error() string {
	return fmt.Sprintf("Doc: %v, reason: %v", ve.From, ve.Reason)
}

// A document to run a local view over: its ID and raw JSON body.
type RawDocument struct {
	ID   string
	Body string
}

var (
	_ QueryResultIterator = &ViewResult{}
	_ error               = MissingError{}
)
