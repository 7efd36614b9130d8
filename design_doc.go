//  Copyright 2013-Present Couchbase, Inc.
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
	"net/http"
)

// Body sections managed by Design.
const (
	SectionViews             = "views"
	SectionLists             = "lists"
	SectionShows             = "shows"
	SectionRewrites          = "rewrites"
	SectionValidateDocUpdate = "validate_doc_update"
	SectionLanguage          = "language"
	SectionOptions           = "options"
)

type ViewDef struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

type ViewMap map[string]ViewDef

// A URL rewrite rule, applied by the server's HTTP layer.
type RewriteRule struct {
	From   string                 `json:"from"`
	To     string                 `json:"to"`
	Method string                 `json:"method,omitempty"`
	Query  map[string]interface{} `json:"query,omitempty"`
}

type DesignDocOptions struct {
	LocalSeq      bool `json:"local_seq,omitempty"`
	IncludeDesign bool `json:"include_design,omitempty"`
}

// Typed snapshot of a design document body.
type DesignDoc struct {
	Language          string            `json:"language,omitempty"`
	Views             ViewMap           `json:"views,omitempty"`
	Lists             map[string]string `json:"lists,omitempty"`
	Shows             map[string]string `json:"shows,omitempty"`
	Rewrites          []RewriteRule     `json:"rewrites,omitempty"`
	ValidateDocUpdate string            `json:"validate_doc_update,omitempty"`
	Options           *DesignDocOptions `json:"options,omitempty"`
}

// A design document, which stores view, list, show, rewrite and validation
// functions as named fields of its body.
//
// Getters return ok == false when the named field isn't defined. Setters and
// deleters mutate the body in memory, mark the document dirty and return the
// Design so calls can be chained; nothing is sent to the server until Save.
type Design struct {
	doc    *Document
	config Config
	mapFns map[string]*JSMapFunction // Compiled map functions, keyed by view name
}

// Creates an empty design document. id should carry the "_design/" prefix.
func NewDesign(id, rev string, connection Connection, database Database) *Design {
	return NewDesignFromDocument(NewDocument(id, rev, connection, database))
}

// Wraps an existing document, e.g. one built by ParseDocument.
func NewDesignFromDocument(doc *Document) *Design {
	return &Design{doc: doc, config: DefaultConfig()}
}

func (design *Design) Document() *Document { return design.doc }
func (design *Design) ID() string          { return design.doc.ID() }

// Sets the options used when running this design's functions locally.
func (design *Design) SetConfig(cfg Config) *Design {
	design.config = cfg
	design.mapFns = nil
	return design
}

//////// LISTS & SHOWS

// Returns the source of a list function.
func (design *Design) List(name string) (string, bool) {
	return design.function(SectionLists, name)
}

// Creates or updates a list function. Empty content leaves the document untouched.
func (design *Design) SetList(name, content string) *Design {
	return design.setFunction(SectionLists, name, content)
}

func (design *Design) DeleteList(name string) *Design {
	return design.deleteFunction(SectionLists, name)
}

// Returns the source of a show function.
func (design *Design) Show(name string) (string, bool) {
	return design.function(SectionShows, name)
}

// Creates or updates a show function. Empty content leaves the document untouched.
func (design *Design) SetShow(name, content string) *Design {
	return design.setFunction(SectionShows, name, content)
}

func (design *Design) DeleteShow(name string) *Design {
	return design.deleteFunction(SectionShows, name)
}

func (design *Design) function(section, name string) (string, bool) {
	value, ok := design.doc.Entry(section, name)
	if !ok {
		return "", false
	}
	source, ok := value.(string)
	return source, ok
}

func (design *Design) setFunction(section, name, content string) *Design {
	if content == "" {
		return design
	}
	design.doc.SetEntry(section, name, content)
	debug(context.TODO(), "Design %q: set %s/%s", design.ID(), section, name)
	return design
}

func (design *Design) deleteFunction(section, name string) *Design {
	design.doc.DeleteEntry(section, name)
	debug(context.TODO(), "Design %q: deleted %s/%s", design.ID(), section, name)
	return design
}

//////// VIEWS

// Returns the map/reduce pair of a view.
func (design *Design) View(name string) (ViewDef, bool) {
	value, ok := design.doc.Entry(SectionViews, name)
	if !ok {
		return ViewDef{}, false
	}
	switch view := value.(type) {
	case ViewDef:
		return view, true
	case map[string]interface{}:
		def := ViewDef{}
		def.Map, _ = view["map"].(string)
		def.Reduce, _ = view["reduce"].(string)
		return def, true
	}
	return ViewDef{}, false
}

// Creates or replaces a view. The stored view only has a reduce function if one
// is given here, even if the previous definition had one.
func (design *Design) SetView(name, mapFn string, reduce ...string) *Design {
	view := map[string]interface{}{"map": mapFn}
	if len(reduce) > 0 && reduce[0] != "" {
		view["reduce"] = reduce[0]
	}
	design.doc.SetEntry(SectionViews, name, view)
	debug(context.TODO(), "Design %q: set view %s", design.ID(), name)
	return design
}

// Removes a view, including its reduce function.
func (design *Design) DeleteView(name string) *Design {
	design.doc.DeleteEntry(SectionViews, name)
	debug(context.TODO(), "Design %q: deleted view %s", design.ID(), name)
	return design
}

// Returns all views, keyed by name.
func (design *Design) Views() ViewMap {
	views := ViewMap{}
	if entries, ok := design.doc.body[SectionViews].(map[string]interface{}); ok {
		for name := range entries {
			if view, ok := design.View(name); ok {
				views[name] = view
			}
		}
	}
	return views
}

//////// REWRITES

// Returns the rewrite rules. Never nil; empty if none were set.
func (design *Design) Rewrites() []RewriteRule {
	rules := []RewriteRule{}
	value, ok := design.doc.Section(SectionRewrites)
	if !ok {
		return rules
	}
	if err := convertJSON(value, &rules); err != nil || rules == nil {
		warn(context.TODO(), "Design %q: ignoring malformed rewrites: %v", design.ID(), err)
		return []RewriteRule{}
	}
	return rules
}

// Replaces the whole rewrites section. A nil slice changes nothing; an empty
// non-nil slice stores an empty rule list.
func (design *Design) SetRewrites(rules []RewriteRule) *Design {
	if rules == nil {
		return design
	}
	var value []interface{}
	if err := convertJSON(rules, &value); err != nil {
		// RewriteRule always encodes; only an unencodable Query value gets here.
		warn(context.TODO(), "Design %q: can't store rewrites: %v", design.ID(), err)
		return design
	}
	if value == nil {
		value = []interface{}{}
	}
	design.doc.SetSection(SectionRewrites, value)
	debug(context.TODO(), "Design %q: set %d rewrites", design.ID(), len(rules))
	return design
}

//////// VALIDATION

// Returns the source of the validate_doc_update handler.
func (design *Design) ValidateHandler() (string, bool) {
	value, ok := design.doc.Section(SectionValidateDocUpdate)
	if !ok {
		return "", false
	}
	source, ok := value.(string)
	return source, ok
}

// Sets the validate_doc_update handler.
func (design *Design) SetValidateHandler(handler string) *Design {
	design.doc.SetSection(SectionValidateDocUpdate, handler)
	debug(context.TODO(), "Design %q: set %s", design.ID(), SectionValidateDocUpdate)
	return design
}

func (design *Design) DeleteValidateHandler() *Design {
	design.doc.DeleteSection(SectionValidateDocUpdate)
	debug(context.TODO(), "Design %q: deleted %s", design.ID(), SectionValidateDocUpdate)
	return design
}

//////// SERVER OPERATIONS

// Starts compaction of this design document's view indexes. The callback is
// invoked once compaction was started or if there was an error.
func (design *Design) Compact(ctx context.Context, callback CompactCallback) {
	if design.doc.database == nil {
		callback(false, ErrNoDatabase)
		return
	}
	name := DesignNameFromID(design.ID())
	debug(ctx, "Compacting design %q", name)
	design.doc.database.Compact(ctx, name, callback)
}

// Fetches information about the design document and its view index. The raw
// response is handed to the callback unchanged; see ParseDesignInfo.
func (design *Design) ViewInfo(ctx context.Context, callback ViewInfoCallback) {
	if design.doc.connection == nil {
		callback(nil, ErrNoConnection)
		return
	}
	if design.doc.database == nil {
		callback(nil, ErrNoDatabase)
		return
	}
	design.doc.connection.Request(ctx, Request{
		Method:   http.MethodGet,
		Path:     design.doc.database.Name() + "/" + design.ID() + "/_info",
		Callback: RequestCallback(callback),
	})
}

// Persists the design document; see Document.Save.
func (design *Design) Save(ctx context.Context, callback SaveCallback) {
	design.doc.Save(ctx, callback)
}

// Response of a design document's `_info` endpoint.
type DesignInfo struct {
	Name      string        `json:"name"`
	ViewIndex ViewIndexInfo `json:"view_index"`
}

type ViewIndexInfo struct {
	Signature      string `json:"signature"`
	Language       string `json:"language"`
	DiskSize       int64  `json:"disk_size"`
	DataSize       int64  `json:"data_size"`
	UpdateSeq      any    `json:"update_seq"` // Number or opaque string, depending on server version
	PurgeSeq       any    `json:"purge_seq"`
	UpdaterRunning bool   `json:"updater_running"`
	CompactRunning bool   `json:"compact_running"`
	WaitingClients int    `json:"waiting_clients"`
	WaitingCommit  bool   `json:"waiting_commit"`
}

// Decodes the raw result passed to a ViewInfoCallback.
func ParseDesignInfo(raw []byte) (*DesignInfo, error) {
	var info DesignInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Converts between JSON-shaped values by encoding and decoding.
func convertJSON(src interface{}, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
