// Copyright 2026-Present Couchbase, Inc.
//
// Use of this software is governed by the Business Source License included
// in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
// in that file, in accordance with the Business Source License, use of this
// software will be governed by the Apache License, Version 2.0, included in
// the file licenses/APL2.txt.

package cushion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDefinition = `
views:
  by_name:
    map: |
      function(doc) { emit(doc.name, null); }
    reduce: _count
lists:
  csv: |
    function(head, req) {}
rewrites:
  - from: /people
    to: _view/by_name
    query:
      limit: 10
validate_doc_update: |
  function(newDoc, oldDoc, userCtx) {}
`

func TestReadYAMLDefinition(t *testing.T) {
	design, err := ReadDesignDefinition("people", []byte(yamlDefinition), "yaml", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "_design/people", design.ID())
	assert.True(t, design.Document().Dirty())

	view, ok := design.View("by_name")
	require.True(t, ok)
	assert.Equal(t, ViewDef{Map: "function(doc) { emit(doc.name, null); }\n", Reduce: "_count"}, view)

	list, ok := design.List("csv")
	require.True(t, ok)
	assert.Equal(t, "function(head, req) {}\n", list)

	assert.Equal(t, []RewriteRule{{From: "/people", To: "_view/by_name", Query: map[string]interface{}{"limit": float64(10)}}}, design.Rewrites())

	_, ok = design.ValidateHandler()
	assert.True(t, ok)
	assert.NoError(t, design.Check())
}

func TestReadJSONDefinition(t *testing.T) {
	design, err := ReadDesignDefinition("app", []byte(`{"_id":"ignored","shows":{"page":"function(doc, req){}"}}`), "JSON", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "_design/app", design.ID())
	show, ok := design.Show("page")
	assert.True(t, ok)
	assert.Equal(t, "function(doc, req){}", show)
	assert.NotContains(t, design.Document().Body(), "_id")
}

func TestReadDefinitionErrors(t *testing.T) {
	_, err := ReadDesignDefinition("a/b", []byte(`{}`), "json", nil, nil)
	assert.Error(t, err)
	_, err = ReadDesignDefinition("app", []byte(`{}`), "toml", nil, nil)
	assert.Error(t, err)
	_, err = ReadDesignDefinition("app", []byte(`{`), "json", nil, nil)
	assert.Error(t, err)
	_, err = ReadDesignDefinition("app", []byte("views: [\n"), "yaml", nil, nil)
	assert.Error(t, err)
	_, err = ReadDesignDefinition("app", []byte("language: erlang\n"), "yml", nil, nil)
	assert.Error(t, err)
}
