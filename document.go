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
	"encoding/json"
	"fmt"
)

// A Document is an identified, revisioned JSON document whose body maps
// section names to arbitrary JSON values. It is not thread-safe.
type Document struct {
	id         string
	rev        string
	body       map[string]interface{}
	connection Connection
	database   Database
	dirty      bool
	generation uint64 // Bumped on every mutation; used to tell if a save raced an edit
}

// Creates a document with an empty body. id and rev may be empty for a document
// that has never been saved.
func NewDocument(id, rev string, connection Connection, database Database) *Document {
	return &Document{
		id:         id,
		rev:        rev,
		body:       map[string]interface{}{},
		connection: connection,
		database:   database,
	}
}

// Builds a document from a server response. The `_id` and `_rev` properties are
// lifted out of the body.
func ParseDocument(data []byte, connection Connection, database Database) (*Document, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("unparseable document: %w", err)
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	doc := &Document{body: body, connection: connection, database: database}
	doc.id, _ = body["_id"].(string)
	doc.rev, _ = body["_rev"].(string)
	delete(body, "_id")
	delete(body, "_rev")
	return doc, nil
}

func (doc *Document) ID() string  { return doc.id }
func (doc *Document) Rev() string { return doc.rev }

// True if the document was modified since it was loaded or last saved.
func (doc *Document) Dirty() bool { return doc.dirty }

// The live body mapping. Callers that mutate it directly bypass dirty tracking.
func (doc *Document) Body() map[string]interface{} {
	return doc.body
}

// Returns the value of a top-level section.
func (doc *Document) Section(section string) (interface{}, bool) {
	value, ok := doc.body[section]
	return value, ok && value != nil
}

// Returns the value stored under name inside a section mapping.
func (doc *Document) Entry(section, name string) (interface{}, bool) {
	entries, ok := doc.body[section].(map[string]interface{})
	if !ok {
		return nil, false
	}
	value, ok := entries[name]
	return value, ok && value != nil
}

// Replaces a whole section. A nil value deletes the section.
func (doc *Document) SetSection(section string, value interface{}) {
	if value == nil {
		doc.DeleteSection(section)
		return
	}
	doc.body[section] = value
	doc.touch()
}

// Removes a whole section.
func (doc *Document) DeleteSection(section string) {
	delete(doc.body, section)
	doc.touch()
}

// Stores value under name inside a section mapping, creating the mapping if it
// doesn't exist yet. A nil value deletes the entry.
func (doc *Document) SetEntry(section, name string, value interface{}) {
	if value == nil {
		doc.DeleteEntry(section, name)
		return
	}
	entries, ok := doc.body[section].(map[string]interface{})
	if !ok {
		entries = map[string]interface{}{}
		doc.body[section] = entries
	}
	entries[name] = value
	doc.touch()
}

// Removes name from a section mapping. Deleting from an absent section leaves it absent.
func (doc *Document) DeleteEntry(section, name string) {
	if entries, ok := doc.body[section].(map[string]interface{}); ok {
		delete(entries, name)
	}
	doc.touch()
}

func (doc *Document) touch() {
	doc.dirty = true
	doc.generation++
}

// Encodes the body along with `_id` and `_rev`, when set.
func (doc *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(doc.body)+2)
	for key, value := range doc.body {
		out[key] = value
	}
	if doc.id != "" {
		out["_id"] = doc.id
	}
	if doc.rev != "" {
		out["_rev"] = doc.rev
	}
	return json.Marshal(out)
}

// Persists the document through its database. On success the new revision is
// recorded and the document becomes clean, unless it was edited again while the
// save was in flight. The callback is invoked exactly once.
func (doc *Document) Save(ctx context.Context, callback SaveCallback) {
	if doc.database == nil {
		callback("", ErrNoDatabase)
		return
	}
	body, err := json.Marshal(doc)
	if err != nil {
		callback("", err)
		return
	}
	generation := doc.generation
	doc.database.Save(ctx, doc.id, doc.rev, body, func(rev string, err error) {
		if err != nil {
			warn(ctx, "Saving %q failed: %v", doc.id, err)
			callback("", err)
			return
		}
		doc.rev = rev
		if doc.generation == generation {
			doc.dirty = false
		}
		debug(ctx, "Saved %q as rev %s", doc.id, rev)
		callback(rev, nil)
	})
}
