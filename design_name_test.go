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
)

func TestValidDesignName(t *testing.T) {

	validNames := []string{
		"foo",
		"by-name_2",
		"ABCabc123_-%.~",
	}

	invalidNames := []string{
		"",
		"a/b",
		"_design/foo",
		"with space",
		"a:1",
	}

	for _, name := range validNames {
		assert.True(t, IsValidDesignName(name), "%q should be valid", name)
		_, err := NewValidDesignName(name)
		assert.NoError(t, err)
	}
	for _, name := range invalidNames {
		assert.False(t, IsValidDesignName(name), "%q should be invalid", name)
		_, err := NewValidDesignName(name)
		assert.Error(t, err)
	}
}

func TestDesignNameFromID(t *testing.T) {
	assert.Equal(t, "foo", DesignNameFromID("_design/foo"))
	assert.Equal(t, "foo", DesignNameFromID(DesignID("foo")))
	assert.Equal(t, "", DesignNameFromID("_design/"))
	assert.Equal(t, "", DesignNameFromID("_des"))
	assert.Equal(t, "", DesignNameFromID(""))
}
