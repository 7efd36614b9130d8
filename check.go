// Copyright 2026-Present Couchbase, Inc.
//
// Use of this software is governed by the Business Source License included
// in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
// in that file, in accordance with the Business Source License, use of this
// software will be governed by the Apache License, Version 2.0, included in
// the file licenses/APL2.txt.

package cushion

import (
	"errors"
	"fmt"
	"sort"
)

// Normalizes a JSON-shaped value (e.g. a parsed design document body) into a
// DesignDoc. Only JavaScript design documents are accepted.
func CheckDesign(value interface{}) (*DesignDoc, error) {
	var design DesignDoc
	if err := convertJSON(value, &design); err != nil {
		return nil, err
	}

	if design.Language != "" && design.Language != "javascript" {
		return nil, fmt.Errorf("Design docs in language %q are not supported",
			design.Language)
	}

	return &design, nil
}

// Returns a typed snapshot of the design document's body.
func (design *Design) DesignDoc() (*DesignDoc, error) {
	return CheckDesign(design.doc.Body())
}

// An error compiling one function of a design document.
type FunctionError struct {
	Section string // e.g. "views", "shows"
	Name    string // Function name; "map"/"reduce" are appended for views
	Err     error
}

func (err *FunctionError) Error() string {
	if err.Name == "" {
		return fmt.Sprintf("%s: %v", err.Section, err.Err)
	}
	return fmt.Sprintf("%s/%s: %v", err.Section, err.Name, err.Err)
}

func (err *FunctionError) Unwrap() error {
	return err.Err
}

// Compiles every function in the design document and reports the ones that
// aren't valid JavaScript functions, as the server would on save. Builtin reduce
// functions such as "_count" are accepted as-is. Returns nil if all compile;
// otherwise a join of *FunctionError.
func (design *Design) Check() error {
	doc, err := design.DesignDoc()
	if err != nil {
		return err
	}

	var errs []error
	check := func(section, name, source string) {
		if _, err := NewJSRunner(source, design.config.JSTimeout); err != nil {
			errs = append(errs, &FunctionError{Section: section, Name: name, Err: err})
		}
	}

	for _, name := range sortedKeys(doc.Views) {
		view := doc.Views[name]
		if view.Map == "" {
			errs = append(errs, &FunctionError{Section: SectionViews, Name: name + "/map", Err: errors.New("missing map function")})
		} else {
			check(SectionViews, name+"/map", view.Map)
		}
		if view.Reduce != "" && !isBuiltinReduce(view.Reduce) {
			check(SectionViews, name+"/reduce", view.Reduce)
		}
	}
	for _, name := range sortedKeys(doc.Lists) {
		check(SectionLists, name, doc.Lists[name])
	}
	for _, name := range sortedKeys(doc.Shows) {
		check(SectionShows, name, doc.Shows[name])
	}
	if doc.ValidateDocUpdate != "" {
		check(SectionValidateDocUpdate, "", doc.ValidateDocUpdate)
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
