// Copyright 2026-Present Couchbase, Inc.
//
// Use of this software is governed by the Business Source License included
// in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
// in that file, in accordance with the Business Source License, use of this
// software will be governed by the Apache License, Version 2.0, included in
// the file licenses/APL2.txt.

package cushion

import (
	"fmt"
	"regexp"
)

// Namespace marker every design document ID starts with.
const DesignPrefix = "_design/"

var designNameRegexp = regexp.MustCompile("^[a-zA-Z0-9%_.~-]{1,250}$")

// Returns the document ID of the design document with the given bare name.
func DesignID(name string) string {
	return DesignPrefix + name
}

// Strips the fixed-length namespace marker from a design document ID. The
// remainder is not checked; IDs shorter than the marker yield "".
func DesignNameFromID(id string) string {
	if len(id) < len(DesignPrefix) {
		return ""
	}
	return id[len(DesignPrefix):]
}

// Returns true if name can be used as a bare design document name.
func IsValidDesignName(name string) bool {
	return designNameRegexp.MatchString(name)
}

// Validates a bare design document name.
func NewValidDesignName(name string) (string, error) {
	if !IsValidDesignName(name) {
		return "", fmt.Errorf("invalid design document name %q", name)
	}
	return name, nil
}
