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
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// JSON value classes, in collation order.
type token int

const (
	kNull token = iota
	kFalse
	kTrue
	kNumber
	kString
	kArray
	kObject
)

// JSONCollator orders view keys the way CouchDB does. The string collator it
// caches is not safe for concurrent use, so neither is a JSONCollator.
type JSONCollator struct {
	strings *collate.Collator
}

// Compares two keys with a throwaway collator.
func CollateJSON(key1, key2 interface{}) int {
	var collator JSONCollator
	return collator.Collate(key1, key2)
}

// Drops the cached string collator.
func (c *JSONCollator) Clear() {
	c.strings = nil
}

// Returns -1, 0 or 1. Values of different classes order as
// null < false < true < numbers < strings < arrays < objects; objects compare equal.
func (c *JSONCollator) Collate(key1, key2 interface{}) int {
	class1, class2 := collationType(key1), collationType(key2)
	if class1 != class2 {
		return cmp.Compare(class1, class2)
	}
	switch class1 {
	case kNumber:
		return cmp.Compare(collationToFloat64(key1), collationToFloat64(key2))
	case kString:
		return c.compareStrings(key1.(string), key2.(string))
	case kArray:
		array1, array2 := asArray(key1), asArray(key2)
		for i := 0; i < len(array1) && i < len(array2); i++ {
			if order := c.Collate(array1[i], array2[i]); order != 0 {
				return order
			}
		}
		return cmp.Compare(len(array1), len(array2))
	}
	return 0
}

func collationType(value interface{}) token {
	switch v := value.(type) {
	case nil:
		return kNull
	case bool:
		if v {
			return kTrue
		}
		return kFalse
	case string:
		return kString
	case []interface{}:
		return kArray
	case map[string]interface{}:
		return kObject
	case json.Number:
		return kNumber
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kNumber
	case reflect.Slice, reflect.Array:
		return kArray
	case reflect.Map, reflect.Struct:
		return kObject
	}
	panic(fmt.Sprintf("collationType doesn't understand %+v (%T)", value, value))
}

func (c *JSONCollator) compareStrings(s1, s2 string) int {
	if c.strings == nil {
		c.strings = collate.New(language.Und)
	}
	return c.strings.CompareString(s1, s2)
}

func collationToFloat64(value interface{}) float64 {
	if n, ok := value.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			panic(err)
		}
		return f
	}
	v := reflect.ValueOf(value)
	switch {
	case v.CanFloat():
		return v.Float()
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	}
	panic(fmt.Sprintf("collationToFloat64 doesn't understand %+v", value))
}

// Rows built from Go values may carry typed slices such as []float64.
func asArray(value interface{}) []interface{} {
	if array, ok := value.([]interface{}); ok {
		return array
	}
	v := reflect.ValueOf(value)
	array := make([]interface{}, v.Len())
	for i := range array {
		array[i] = v.Index(i).Interface()
	}
	return array
}
