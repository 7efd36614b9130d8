//  Copyright (c) 2013 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package cushion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollateScalarTypes(t *testing.T) {
	// null < false < true < numbers < strings < arrays < objects
	ordered := []interface{}{nil, false, true, float64(-1), float64(2), "a", "b", []interface{}{"a"}, map[string]interface{}{}}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, CollateJSON(ordered[i], ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
		assert.Equal(t, 1, CollateJSON(ordered[i+1], ordered[i]), "%v > %v", ordered[i+1], ordered[i])
	}
	assert.Equal(t, 0, CollateJSON(nil, nil))
	assert.Equal(t, 0, CollateJSON(true, true))
}

func TestCollateNumbers(t *testing.T) {
	assert.Equal(t, 0, CollateJSON(int64(3), float64(3)))
	assert.Equal(t, -1, CollateJSON(uint64(2), json.Number("2.5")))
	assert.Equal(t, 1, CollateJSON(10, float32(9.5)))
}

func TestCollateArrays(t *testing.T) {
	assert.Equal(t, 0, CollateJSON([]interface{}{"a", 1.0}, []interface{}{"a", 1.0}))
	assert.Equal(t, -1, CollateJSON([]interface{}{"a"}, []interface{}{"a", 1.0}))
	assert.Equal(t, 1, CollateJSON([]interface{}{"b"}, []interface{}{"a", 1.0}))
	assert.Equal(t, -1, CollateJSON([]float64{1, 2}, []interface{}{1.0, 3.0}))
}

func TestCollateStrings(t *testing.T) {
	var collator JSONCollator
	assert.Equal(t, -1, collator.Collate("a", "B"))
	assert.Equal(t, -1, collator.Collate("B", "c"))
	assert.Equal(t, 0, collator.Collate("same", "same"))
	collator.Clear()
	assert.Equal(t, 1, collator.Collate("b", "a"))
}
