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
	"runtime"
	"sync"
)

// Handles one input item, sending any number of results to output.
type PipelineFunc[In, Out any] func(input In, output chan<- Out)

// Feeds input through parallelism concurrent copies of f; zero or less means
// GOMAXPROCS. Returns at once. The returned channel closes after input is
// closed and every worker has drained it.
func Parallelize[In, Out any](f PipelineFunc[In, Out], parallelism int, input <-chan In) <-chan Out {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	output := make(chan Out, len(input))
	var workers sync.WaitGroup
	workers.Add(parallelism)
	for range parallelism {
		go func() {
			defer workers.Done()
			for item := range input {
				f(item, output)
			}
		}()
	}
	go func() {
		workers.Wait()
		close(output)
	}()
	return output
}

type mappedDoc struct {
	docID string
	rows  []*ViewRow
	err   error
}

// Maps every document in parallel. A document whose map call fails contributes
// no rows; its failure is reported instead.
func mapDocuments(mapper func(doc RawDocument) ([]*ViewRow, error), docs []RawDocument, parallelism int) (ViewRows, []ViewError) {
	input := make(chan RawDocument, len(docs))
	for _, doc := range docs {
		input <- doc
	}
	close(input)

	mapped := Parallelize(func(doc RawDocument, output chan<- mappedDoc) {
		rows, err := mapper(doc)
		output <- mappedDoc{docID: doc.ID, rows: rows, err: err}
	}, parallelism, input)

	rows := ViewRows{}
	var failures []ViewError
	for result := range mapped {
		if result.err != nil {
			failures = append(failures, ViewError{From: result.docID, Reason: result.err.Error()})
			continue
		}
		rows = append(rows, result.rows...)
	}
	return rows, failures
}
