package planner

import (
	"hareql.dev/query"
	"hareql.dev/value"
)

// RewriteStage1 applies the logical→logical rewrites from spec.md §4.7:
// projection pushdown, LIMIT pushdown, and constant folding. kNN-before-
// where is not a rewrite here — Bind already fuses a query's Boolean
// prefilter into LogicalKnn.Prefilter rather than emitting a separate
// downstream Filter, so there is never a Filter-after-Knn shape to undo.
func RewriteStage1(l Logical) Logical {
	l = pushdownProjection(l)
	l = foldRedundantCompounds(l)
	l = pushdownLimit(l)
	return l
}

// pushdownProjection walks the tree once to collect every column index
// any node actually reads, then narrows the LogicalScan (or, for
// LogicalSample, leaves the column set to FetchColumns) to exactly that
// set. A scan that reads only the columns a query touches skips the
// I/O and latch traffic of fetching columns the query will discard.
func pushdownProjection(l Logical) Logical {
	needed := make(map[int]bool)
	collectColumns(l, needed)
	cols := make([]int, 0, len(needed))
	for c := range needed {
		cols = append(cols, c)
	}
	setScanColumns(l, cols)
	return l
}

func collectColumns(l Logical, out map[int]bool) {
	switch n := l.(type) {
	case *LogicalScan, *LogicalSample:
		// leaves; nothing of their own to contribute
	case *LogicalFilter:
		collectPredicateColumns(n.Predicate, out)
		collectColumns(n.Input, out)
	case *LogicalKnn:
		out[n.Query.Column] = true
		if n.Prefilter != nil {
			collectPredicateColumns(n.Prefilter, out)
		}
		collectColumns(n.Input, out)
	case *LogicalProjection:
		for _, c := range n.Columns {
			out[c] = true
		}
		collectColumns(n.Input, out)
	case *LogicalLimit:
		collectColumns(n.Input, out)
	}
}

func collectPredicateColumns(p value.Predicate, out map[int]bool) {
	switch pr := p.(type) {
	case value.Atomic:
		out[pr.Column] = true
	case value.Compound:
		collectPredicateColumns(pr.Left, out)
		collectPredicateColumns(pr.Right, out)
	}
}

// setScanColumns finds the LogicalScan leaf, if any, and sets its
// Columns field. LogicalSample is left alone: a sample is materialized
// by FetchColumns downstream of sampling, not by the sample step itself.
func setScanColumns(l Logical, cols []int) {
	switch n := l.(type) {
	case *LogicalScan:
		if n.Columns == nil {
			n.Columns = cols
		}
	default:
		for _, c := range l.Children() {
			setScanColumns(c, cols)
		}
	}
}

// foldRedundantCompounds collapses an AND/OR of two structurally
// identical predicates into one side, the one constant-folding shape
// that actually arises here since Atomic operands are always literal
// values (there are no sub-expressions to evaluate at plan time).
func foldRedundantCompounds(l Logical) Logical {
	switch n := l.(type) {
	case *LogicalFilter:
		n.Predicate = foldPredicate(n.Predicate)
		foldRedundantCompounds(n.Input)
	case *LogicalKnn:
		if n.Prefilter != nil {
			n.Prefilter = foldPredicate(n.Prefilter)
		}
		foldRedundantCompounds(n.Input)
	default:
		for _, c := range l.Children() {
			foldRedundantCompounds(c)
		}
	}
	return l
}

func foldPredicate(p value.Predicate) value.Predicate {
	c, ok := p.(value.Compound)
	if !ok {
		return p
	}
	c.Left = foldPredicate(c.Left)
	c.Right = foldPredicate(c.Right)
	if digestPredicate(c.Left) == digestPredicate(c.Right) {
		return c.Left
	}
	return c
}

// pushdownLimit moves a LogicalLimit as close to the scan as the
// pipeline shape allows: through a Select projection (which neither
// drops nor reorders rows) but never through a Filter or Knn (which
// change which rows survive, so applying Limit first would be wrong)
// and never through a non-Select projection (Count/Exists/aggregates
// collapse the whole stream into one row, so limiting their input
// early changes the answer).
func pushdownLimit(l Logical) Logical {
	lim, ok := l.(*LogicalLimit)
	if !ok {
		for _, c := range l.Children() {
			pushdownLimit(c)
		}
		return l
	}
	proj, ok := lim.Input.(*LogicalProjection)
	if !ok || proj.Op != query.Select {
		pushdownLimit(lim.Input)
		return l
	}
	switch proj.Input.(type) {
	case *LogicalScan, *LogicalSample:
		inner := &LogicalLimit{Input: proj.Input, Skip: lim.Skip, Limit: lim.Limit}
		proj.Input = inner
		lim.Skip, lim.Limit = 0, -1
	default:
		pushdownLimit(proj.Input)
	}
	return l
}
