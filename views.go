/*
Copyright 2013-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package cushion

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/couchbase/gocb.v1"
)

// Runs one of the design's views over in-memory documents, the way the server
// would index and query them. A map function that doesn't compile fails with
// a *FunctionError; documents whose map call throws are skipped.
// Supported params: key, keys, startkey/start_key, endkey/end_key,
// inclusive_end, descending, skip, limit, include_docs, reduce, group, group_level.
func (design *Design) RunView(ctx context.Context, name string, docs []RawDocument, params map[string]interface{}) (ViewResult, error) {
	view, ok := design.View(name)
	if !ok {
		return ViewResult{}, MissingError{Key: design.ID() + "/_view/" + name}
	}
	mapper := design.mapFunction(name, view.Map)
	if err := mapper.Compile(); err != nil {
		return ViewResult{}, &FunctionError{Section: SectionViews, Name: name + "/map", Err: err}
	}

	includeDesign := design.options().IncludeDesign
	bodies := make(map[string]string, len(docs))
	indexed := make([]RawDocument, 0, len(docs))
	for _, doc := range docs {
		if !includeDesign && strings.HasPrefix(doc.ID, DesignPrefix) {
			continue
		}
		bodies[doc.ID] = doc.Body
		indexed = append(indexed, doc)
	}

	rows, failures := mapDocuments(func(doc RawDocument) ([]*ViewRow, error) {
		return mapper.CallFunction(ctx, doc.Body, doc.ID)
	}, indexed, design.config.MapParallelism)
	if err := ctx.Err(); err != nil {
		return ViewResult{}, err
	}
	for _, failure := range failures {
		warn(ctx, "View %s/%s skipped doc %q: %s", design.ID(), name, failure.From, failure.Reason)
	}

	result := ViewResult{Rows: rows}
	sort.Sort(&result)
	debug(ctx, "View %s/%s mapped %d docs to %d rows", design.ID(), name, len(indexed), len(rows))
	return ProcessViewResult(result, params, bodies, view.Reduce)
}

func (design *Design) mapFunction(view, source string) *JSMapFunction {
	if mapper, found := design.mapFns[view]; found {
		if mapper.SetSource(source) {
			debug(context.TODO(), "Recompiling map function of view %q", view)
		}
		return mapper
	}
	if design.mapFns == nil {
		design.mapFns = map[string]*JSMapFunction{}
	}
	maxTasks := design.config.JSMaxTasks
	if maxTasks <= 0 {
		maxTasks = kTaskCacheSize
	}
	mapper := NewJSMapFunction(source, design.config.JSTimeout, maxTasks)
	design.mapFns[view] = mapper
	return mapper
}

func (design *Design) options() DesignDocOptions {
	var options DesignDocOptions
	if value, ok := design.doc.Section(SectionOptions); ok {
		_ = convertJSON(value, &options)
	}
	return options
}

// Query parameters understood by ProcessViewResult.
type viewQuery struct {
	startKey, endKey interface{}
	inclusiveEnd     bool
	keys             []interface{}
	hasKeys          bool
	descending       bool
	skip, limit      int
	includeDocs      bool
	reduce           bool
	groupLevel       int // -1 groups by the whole key
}

func parseViewQuery(params map[string]interface{}) (viewQuery, error) {
	query := viewQuery{inclusiveEnd: true, reduce: true}
	query.includeDocs, _ = params["include_docs"].(bool)
	query.descending, _ = params["descending"].(bool)
	if reduce, found := params["reduce"].(bool); found {
		query.reduce = reduce
	}
	query.keys, query.hasKeys = params["keys"].([]interface{})

	query.startKey = params["startkey"]
	if query.startKey == nil {
		query.startKey = params["start_key"]
	}
	query.endKey = params["endkey"]
	if query.endKey == nil {
		query.endKey = params["end_key"]
	}
	if key := params["key"]; key != nil {
		query.startKey, query.endKey = key, key
	} else if inclusiveEnd, found := params["inclusive_end"].(bool); found {
		query.inclusiveEnd = inclusiveEnd
	}

	// Bad paging values are ignored, as the server does.
	for name, dst := range map[string]*int{"skip": &query.skip, "limit": &query.limit} {
		if value, found := params[name]; found {
			n, err := interfaceToInt(value)
			if err != nil {
				warn(context.TODO(), "Unsupported type for view %s parameter: %T  %v", name, value, err)
				continue
			}
			*dst = n
		}
	}

	if group, _ := params["group"].(bool); group {
		query.groupLevel = -1
	} else if level, found := params["group_level"]; found && level != nil {
		n, err := interfaceToInt(level)
		if err != nil {
			return query, fmt.Errorf("Invalid group_level: %w", err)
		}
		query.groupLevel = n
	}
	return query, nil
}

// Applies view params (key ranges, keys, paging, reduce, include_docs) to rows
// already in collation order. docs maps document IDs to raw bodies, for include_docs.
func ProcessViewResult(result ViewResult, params map[string]interface{},
	docs map[string]string, reduceFunction string) (ViewResult, error) {
	query, err := parseViewQuery(params)
	if err != nil {
		return result, err
	}

	var collator JSONCollator
	if query.hasKeys {
		result.Rows = selectKeys(&collator, result.Rows, query.keys)
	}
	result.Rows = selectRange(&collator, result.Rows, query)

	reduced := query.reduce && reduceFunction != ""
	if reduced {
		if result.Rows, err = reduceRows(&collator, reduceFunction, query.groupLevel, result.Rows); err != nil {
			return result, err
		}
	}

	if query.descending {
		slices.Reverse(result.Rows)
	}
	result.Rows = result.Rows[min(max(query.skip, 0), len(result.Rows)):]
	if query.limit > 0 && len(result.Rows) > query.limit {
		result.Rows = result.Rows[:query.limit]
	}

	if query.includeDocs && !reduced {
		if result.Rows, err = attachDocs(result.Rows, docs); err != nil {
			return result, err
		}
	}

	result.TotalRows = len(result.Rows)
	debug(context.TODO(), "\t... view returned %d rows", result.TotalRows)
	return result, nil
}

// Rows matching any of keys, grouped in the order the keys are given.
func selectKeys(collator *JSONCollator, rows ViewRows, keys []interface{}) ViewRows {
	selected := make(ViewRows, 0)
	for _, key := range keys {
		i := sort.Search(len(rows), func(i int) bool {
			return collator.Collate(rows[i].Key, key) >= 0
		})
		for ; i < len(rows) && collator.Collate(rows[i].Key, key) == 0; i++ {
			selected = append(selected, rows[i])
		}
	}
	return selected
}

// Trims rows to the key range. Rows are ascending, so a descending query
// bounds the low end with its end key.
func selectRange(collator *JSONCollator, rows ViewRows, query viewQuery) ViewRows {
	low, high := query.startKey, query.endKey
	lowInclusive, highInclusive := true, query.inclusiveEnd
	if query.descending {
		low, high = high, low
		lowInclusive, highInclusive = highInclusive, lowInclusive
	}
	if low != nil {
		i := sort.Search(len(rows), func(i int) bool {
			order := collator.Collate(rows[i].Key, low)
			return order > 0 || (order == 0 && lowInclusive)
		})
		rows = rows[i:]
	}
	if high != nil {
		i := sort.Search(len(rows), func(i int) bool {
			order := collator.Collate(rows[i].Key, high)
			return order > 0 || (order == 0 && !highInclusive)
		})
		rows = rows[:i]
	}
	return rows
}

func attachDocs(rows ViewRows, docs map[string]string) (ViewRows, error) {
	withDocs := make(ViewRows, len(rows))
	for i, row := range rows {
		body, found := docs[row.ID]
		if !found {
			return rows, MissingError{Key: row.ID}
		}
		var doc interface{}
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return rows, err
		}
		withDocs[i] = &ViewRow{ID: row.ID, Key: row.Key, Value: row.Value, Doc: &doc}
	}
	return withDocs, nil
}

// Reduces sorted rows into one row per group. groupLevel 0 reduces everything
// into a single keyless row. No input rows yields no output rows.
func reduceRows(collator *JSONCollator, reduceFunction string, groupLevel int, rows ViewRows) (ViewRows, error) {
	reduce, err := ReduceFunc(reduceFunction)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return ViewRows{}, nil
	}
	if groupLevel == 0 {
		row, err := reduce(rows)
		if err != nil {
			return nil, err
		}
		return ViewRows{row}, nil
	}

	reduced := ViewRows{}
	start := 0
	for start < len(rows) {
		key := keyPrefix(groupLevel, rows[start].Key)
		end := start + 1
		for end < len(rows) && collator.Collate(keyPrefix(groupLevel, rows[end].Key), key) == 0 {
			end++
		}
		row, err := reduce(rows[start:end])
		if err != nil {
			return nil, err
		}
		row.Key = key
		reduced = append(reduced, row)
		start = end
	}
	return reduced, nil
}

// Truncates array keys to groupLevel items; -1 (group=true) and non-array keys are kept whole.
func keyPrefix(groupLevel int, key interface{}) interface{} {
	array, ok := key.([]interface{})
	if groupLevel < 0 || !ok || len(array) <= groupLevel {
		return key
	}
	return array[:groupLevel]
}

// Builtin reduce functions the server runs natively.
var builtinReduces = map[string]bool{"_count": true, "_sum": true, "_stats": true, "_approx_count_distinct": true}

func isBuiltinReduce(reduceFunction string) bool {
	return builtinReduces[reduceFunction]
}

// Returns the Go implementation of a builtin reduce. Every name in
// builtinReduces has one.
func ReduceFunc(reduceFunction string) (func([]*ViewRow) (*ViewRow, error), error) {
	switch reduceFunction {
	case "_count":
		return func(rows []*ViewRow) (*ViewRow, error) {
			return &ViewRow{Value: float64(len(rows))}, nil
		}, nil
	case "_sum":
		return func(rows []*ViewRow) (*ViewRow, error) {
			var total float64
			for _, row := range rows {
				if collationType(row.Value) != kNumber {
					return nil, fmt.Errorf("_sum can't add non-numeric value %v of doc %q", row.Value, row.ID)
				}
				total += collationToFloat64(row.Value)
			}
			return &ViewRow{Value: total}, nil
		}, nil
	case "_stats":
		return func(rows []*ViewRow) (*ViewRow, error) {
			var sum, sumsqr float64
			var lo, hi float64
			for i, row := range rows {
				if collationType(row.Value) != kNumber {
					return nil, fmt.Errorf("_stats can't aggregate non-numeric value %v of doc %q", row.Value, row.ID)
				}
				n := collationToFloat64(row.Value)
				if i == 0 || n < lo {
					lo = n
				}
				if i == 0 || n > hi {
					hi = n
				}
				sum += n
				sumsqr += n * n
			}
			return &ViewRow{Value: map[string]interface{}{
				"sum":    sum,
				"count":  float64(len(rows)),
				"min":    lo,
				"max":    hi,
				"sumsqr": sumsqr,
			}}, nil
		}, nil
	case "_approx_count_distinct":
		// Exact here; rows arrive in collation order, so equal keys are adjacent.
		return func(rows []*ViewRow) (*ViewRow, error) {
			var collator JSONCollator
			distinct := 0
			for i, row := range rows {
				if i == 0 || collator.Collate(rows[i-1].Key, row.Key) != 0 {
					distinct++
				}
			}
			return &ViewRow{Value: float64(distinct)}, nil
		}, nil
	}
	// TODO: Run JavaScript reduce functions through a JSServer, including rereduce.
	return nil, fmt.Errorf("Local views only support builtin reduce functions, not %q", reduceFunction)
}

func interfaceToInt(value interface{}) (int, error) {
	switch n := value.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("Unable to convert %v (%T) -> int.", value, value)
}

// sort.Interface

func (result *ViewResult) Len() int {
	return len(result.Rows)
}

func (result *ViewResult) Swap(i, j int) {
	result.Rows[i], result.Rows[j] = result.Rows[j], result.Rows[i]
}

// Orders by key collation, then by document ID.
func (result *ViewResult) Less(i, j int) bool {
	cmp := result.Collator.Collate(result.Rows[i].Key, result.Rows[j].Key)
	if cmp == 0 {
		return result.Rows[i].ID < result.Rows[j].ID
	}
	return cmp < 0
}

// QueryResultIterator. iterIndex counts rows already returned.
func (r *ViewResult) NextBytes() []byte {
	if len(r.Errors) > 0 || r.iterErr != nil {
		return nil
	}

	if r.iterIndex >= len(r.Rows) {
		return nil
	}
	r.iterIndex++

	var rowBytes []byte
	rowBytes, r.iterErr = json.Marshal(r.Rows[r.iterIndex-1])
	if r.iterErr != nil {
		return nil
	}

	return rowBytes
}

func (r *ViewResult) Next(valuePtr interface{}) bool {
	if len(r.Errors) > 0 || r.iterErr != nil {
		return false
	}

	row := r.NextBytes()
	if row == nil {
		return false
	}

	r.iterErr = json.Unmarshal(row, valuePtr)
	return r.iterErr == nil
}

func (r *ViewResult) Close() error {
	if r.iterErr != nil {
		return r.iterErr
	}

	if len(r.Errors) > 0 {
		return r.Errors[0]
	}

	return nil
}

func (r *ViewResult) One(valuePtr interface{}) error {
	if !r.Next(valuePtr) {
		err := r.Close()
		if err != nil {
			return err
		}
		return gocb.ErrNoResults // Same error gocb's iterators return, so callers can handle both alike
	}

	// Ignore any errors occurring after we already have our result
	_ = r.Close()
	return nil
}
