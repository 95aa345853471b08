package main

import (
	"fmt"
	"strings"

	"hareql.dev/value"
)

// printRecord renders a record as a single line of comma-separated
// values. Vector-typed values print their length rather than their
// full contents — a kNN result's vector column is typically the
// longest field and rarely what an operator wants dumped to a
// terminal.
func printRecord(rec value.Record) {
	parts := make([]string, rec.Arity())
	for i, v := range rec.Values {
		if n := v.Len(); n > 0 {
			parts[i] = fmt.Sprintf("<vector[%d]>", n)
			continue
		}
		parts[i] = v.String()
	}
	fmt.Printf("%d: %s\n", rec.Tid, strings.Join(parts, ", "))
}
