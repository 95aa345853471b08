package main

import (
	"encoding/json"
	"fmt"

	"hareql.dev/query"
	"hareql.dev/value"
)

// queryDTO is the JSON-over-the-wire shape the query subcommand reads
// from a file, mirroring cli/consumer.go's pattern of decoding an
// external payload into a domain type before handing it to the
// service layer. query.BooleanPredicate is an interface, so Where is
// decoded through predicateDTO's Kind discriminant rather than
// json.Unmarshal-ing straight into the interface.
type queryDTO struct {
	Entity     string          `json:"entity"`
	Sample     *sampleDTO      `json:"sample,omitempty"`
	Where      *predicateDTO   `json:"where,omitempty"`
	Knn        *knnDTO         `json:"knn,omitempty"`
	Projection *projectionDTO  `json:"projection,omitempty"`
	Limit      *int64          `json:"limit,omitempty"`
	Skip       *int64          `json:"skip,omitempty"`
}

type sampleDTO struct {
	Size int   `json:"size"`
	Seed int64 `json:"seed"`
}

type predicateDTO struct {
	Kind      string          `json:"kind"` // "atomic" | "and" | "or"
	Column    string          `json:"column,omitempty"`
	Op        string          `json:"op,omitempty"`
	Not       bool            `json:"not,omitempty"`
	Values    []any           `json:"values,omitempty"`
	Left      *predicateDTO   `json:"left,omitempty"`
	Right     *predicateDTO   `json:"right,omitempty"`
}

type knnDTO struct {
	Column   string      `json:"column"`
	K        int         `json:"k"`
	Queries  [][]float64 `json:"queries"`
	Weights  []float64   `json:"weights,omitempty"`
	Distance string      `json:"distance"`
	Hint     string      `json:"hint,omitempty"`
}

type projectionDTO struct {
	Op      string      `json:"op"`
	Columns []columnDTO `json:"columns,omitempty"`
}

type columnDTO struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

var opNames = map[string]value.Op{
	"eq": value.Equal, "neq": value.NotEqual, "lt": value.Less, "lte": value.LessEqual,
	"gt": value.Greater, "gte": value.GreaterEqual, "in": value.In, "like": value.Like,
	"isnull": value.IsNull, "match": value.Match, "between": value.Between,
}

var distanceNames = map[string]value.Distance{
	"l1": value.L1, "l2": value.L2, "l2squared": value.L2Squared,
	"cosine": value.Cosine, "innerproduct": value.InnerProduct,
	"hamming": value.Hamming, "chisquared": value.ChiSquared,
}

var projectionOps = map[string]query.ProjectionOp{
	"select": query.Select, "count": query.Count, "exists": query.Exists,
	"sum": query.Sum, "max": query.Max, "min": query.Min, "mean": query.Mean,
}

func (d *queryDTO) toQuery() (query.Query, error) {
	q := query.Query{From: query.From{Entity: d.Entity}, Limit: d.Limit, Skip: d.Skip}

	if d.Sample != nil {
		q.From.Sample = &query.Sample{Entity: d.Entity, Size: d.Sample.Size, Seed: d.Sample.Seed}
	}

	if d.Where != nil {
		pred, err := d.Where.toPredicate()
		if err != nil {
			return query.Query{}, err
		}
		q.Where = pred
	}

	if d.Knn != nil {
		dist, ok := distanceNames[d.Knn.Distance]
		if !ok {
			return query.Query{}, fmt.Errorf("unknown distance kind %q", d.Knn.Distance)
		}
		q.Knn = &query.KnnPredicate{
			Column: d.Knn.Column, K: d.Knn.K, Queries: d.Knn.Queries,
			Weights: d.Knn.Weights, Distance: dist, Hint: d.Knn.Hint,
		}
	}

	if d.Projection != nil {
		op, ok := projectionOps[d.Projection.Op]
		if !ok {
			return query.Query{}, fmt.Errorf("unknown projection op %q", d.Projection.Op)
		}
		cols := make([]query.Column, len(d.Projection.Columns))
		for i, c := range d.Projection.Columns {
			cols[i] = query.Column{Name: c.Name, Alias: c.Alias}
		}
		q.Projection = &query.Projection{Op: op, Columns: cols}
	}

	return q, nil
}

func (p *predicateDTO) toPredicate() (query.BooleanPredicate, error) {
	switch p.Kind {
	case "and", "or":
		if p.Left == nil || p.Right == nil {
			return nil, fmt.Errorf("compound predicate %q needs left and right", p.Kind)
		}
		left, err := p.Left.toPredicate()
		if err != nil {
			return nil, err
		}
		right, err := p.Right.toPredicate()
		if err != nil {
			return nil, err
		}
		connector := value.And
		if p.Kind == "or" {
			connector = value.Or
		}
		return query.Compound{Connector: connector, Left: left, Right: right}, nil
	case "atomic", "":
		op, ok := opNames[p.Op]
		if !ok {
			return nil, fmt.Errorf("unknown predicate op %q", p.Op)
		}
		vals := make([]value.Value, len(p.Values))
		for i, raw := range p.Values {
			vals[i] = scalarToValue(raw)
		}
		return query.Atomic{Column: p.Column, Op: op, Not: p.Not, Values: vals}, nil
	default:
		return nil, fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
}

// scalarToValue widens a decoded JSON scalar (string, float64, bool)
// into a value.Value. JSON numbers always decode as float64; the
// planner's binder compares predicate values against the column's
// declared type, not this DTO's encoding, so a float64 standing in for
// an integer column is resolved correctly downstream.
func scalarToValue(raw any) value.Value {
	switch v := raw.(type) {
	case string:
		return value.OfString(v)
	case float64:
		return value.OfDouble(v)
	case bool:
		return value.OfBool(v)
	case nil:
		return value.Value{Null: true}
	default:
		return value.OfString(fmt.Sprintf("%v", v))
	}
}

func decodeQueryFile(data []byte) (query.Query, error) {
	var dto queryDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return query.Query{}, fmt.Errorf("decoding query file: %w", err)
	}
	return dto.toQuery()
}
