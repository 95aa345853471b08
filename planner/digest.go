package planner

import (
	"fmt"
	"hash/fnv"
	"strings"

	"hareql.dev/value"
)

// Digest computes a structural fingerprint of a logical tree, used as
// the plan cache key. hash/fnv is enough for a small in-memory tree —
// no cryptographic property is needed, only low collision odds across
// the handful of distinct trees one process plans concurrently.
func Digest(l Logical) string {
	var sb strings.Builder
	writeDigest(&sb, l)
	h := fnv.New64a()
	_, _ = h.Write([]byte(sb.String()))
	return fmt.Sprintf("%x", h.Sum64())
}

func writeDigest(sb *strings.Builder, l Logical) {
	switch n := l.(type) {
	case *LogicalScan:
		fmt.Fprintf(sb, "scan(%p,%v)", n.Entity, n.Columns)
	case *LogicalSample:
		fmt.Fprintf(sb, "sample(%p,%d,%d)", n.Entity, n.Size, n.Seed)
	case *LogicalFilter:
		fmt.Fprintf(sb, "filter(%s,", digestPredicate(n.Predicate))
		writeDigest(sb, n.Input)
		sb.WriteByte(')')
	case *LogicalKnn:
		pre := "-"
		if n.Prefilter != nil {
			pre = digestPredicate(n.Prefilter)
		}
		fmt.Fprintf(sb, "knn(%d,%d,%d,%v,%v,%s,", n.Query.Column, n.Query.K, n.Query.Distance, n.Query.Queries, n.Query.Weights, pre)
		writeDigest(sb, n.Input)
		sb.WriteByte(')')
	case *LogicalProjection:
		fmt.Fprintf(sb, "proj(%d,%v,", n.Op, n.Columns)
		writeDigest(sb, n.Input)
		sb.WriteByte(')')
	case *LogicalLimit:
		fmt.Fprintf(sb, "limit(%d,%d,", n.Skip, n.Limit)
		writeDigest(sb, n.Input)
		sb.WriteByte(')')
	default:
		sb.WriteString("?")
	}
}

func digestPredicate(p value.Predicate) string {
	switch pr := p.(type) {
	case value.Atomic:
		return fmt.Sprintf("a(%d,%d,%v,%v)", pr.Column, pr.Op, pr.Not, pr.Values)
	case value.Compound:
		return fmt.Sprintf("c(%d,%s,%s)", pr.Connector, digestPredicate(pr.Left), digestPredicate(pr.Right))
	default:
		return "?"
	}
}
