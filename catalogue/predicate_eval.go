package catalogue

import "hareql.dev/value"

// EvalPredicate evaluates a resolved predicate against a materialized
// record, used by LinearScanFilter's in-process fallback when no
// index can answer it.
func EvalPredicate(p value.Predicate, rec value.Record) bool {
	switch pr := p.(type) {
	case value.Atomic:
		return evalAtomic(pr, rec)
	case value.Compound:
		left := EvalPredicate(pr.Left, rec)
		if pr.Connector == value.And {
			return left && EvalPredicate(pr.Right, rec)
		}
		return left || EvalPredicate(pr.Right, rec)
	}
	return false
}

func evalAtomic(a value.Atomic, rec value.Record) bool {
	v := rec.Get(a.Column)
	result := evalOp(a, v)
	if a.Not {
		return !result
	}
	return result
}

func evalOp(a value.Atomic, v value.Value) bool {
	switch a.Op {
	case value.IsNull:
		return v.Null
	}
	if v.Null {
		return false
	}
	switch a.Op {
	case value.Equal:
		return len(a.Values) > 0 && value.Equal(v, a.Values[0])
	case value.NotEqual:
		return len(a.Values) > 0 && !value.Equal(v, a.Values[0])
	case value.Less:
		return len(a.Values) > 0 && value.Compare(v, a.Values[0]) < 0
	case value.LessEqual:
		return len(a.Values) > 0 && value.Compare(v, a.Values[0]) <= 0
	case value.Greater:
		return len(a.Values) > 0 && value.Compare(v, a.Values[0]) > 0
	case value.GreaterEqual:
		return len(a.Values) > 0 && value.Compare(v, a.Values[0]) >= 0
	case value.Between:
		return len(a.Values) >= 2 && value.Compare(v, a.Values[0]) >= 0 && value.Compare(v, a.Values[1]) <= 0
	case value.In:
		for _, cand := range a.Values {
			if value.Equal(v, cand) {
				return true
			}
		}
		return false
	case value.Like:
		return len(a.Values) > 0 && likeMatch(v.Str(), a.Values[0].Str())
	case value.Match:
		return len(a.Values) > 0 && likeMatch(v.Str(), a.Values[0].Str())
	}
	return false
}

// likeMatch implements a minimal SQL-LIKE ('%' wildcard) match; the
// planner routes anything index-backed through InvertedText instead,
// so this only runs on the LinearScanFilter fallback path.
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	if p[0] == '%' {
		if likeMatchRunes(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatchRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	}
	if len(s) == 0 {
		return false
	}
	if p[0] == '_' || p[0] == s[0] {
		return likeMatchRunes(s[1:], p[1:])
	}
	return false
}
