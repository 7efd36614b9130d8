// Copyright 2026-Present Couchbase, Inc.
//
// Use of this software is governed by the Business Source License included
// in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
// in that file, in accordance with the Business Source License, use of this
// software will be governed by the Apache License, Version 2.0, included in
// the file licenses/APL2.txt.

package cushion

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Builds an unsaved design document from a definition file, e.g.
//
//	views:
//	  by_name:
//	    map: function(doc) { emit(doc.name, null) }
//	    reduce: _count
//	validate_doc_update: function(newDoc, oldDoc, userCtx) {}
//
// format is "yaml", "yml" or "json". name is the bare design name.
func ReadDesignDefinition(name string, data []byte, format string, connection Connection, database Database) (*Design, error) {
	if _, err := NewValidDesignName(name); err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("design %q: %w", name, err)
		}
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("design %q: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("design %q: unknown definition format %q", name, format)
	}

	// YAML decodes numbers and nested maps into Go types JSON wouldn't produce;
	// normalize so the body looks like one loaded from the server.
	var body map[string]interface{}
	if err := convertJSON(raw, &body); err != nil {
		return nil, fmt.Errorf("design %q: %w", name, err)
	}
	if _, err := CheckDesign(body); err != nil {
		return nil, fmt.Errorf("design %q: %w", name, err)
	}

	design := NewDesign(DesignID(name), "", connection, database)
	for section, value := range body {
		if section == "_id" || section == "_rev" {
			continue
		}
		design.doc.SetSection(section, value)
	}
	return design, nil
}
