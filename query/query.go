// Copyright 2024 The kuery Authors
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package query defines the search query tree shared by the KQL
// front-end and the ES-JSON document codec.
//
// A Query value owns its children outright: trees have no sharing and
// no cycles, and a node is never mutated after construction. Equality
// is structural, see Equal.
package query

import "reflect"

// Query is a node of the search query tree.
//
// The variant set is closed: Boolean, Exists, MatchAll, MatchPhrase,
// Match, MultiMatch, Nested, QueryString and Range.
type Query interface {
	// Encode renders the query as its ES-JSON document shape:
	// a single-key map keyed by the query's type tag.
	Encode() map[string]any
}

// Equal reports whether two query trees are structurally equal.
func Equal(a, b Query) bool {
	return reflect.DeepEqual(a, b)
}

// Boolean is a compound query combining sub-queries with
// must/filter/should/must_not semantics.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-bool-query.html
type Boolean struct {
	Must    []Query
	Filter  []Query
	Should  []Query
	MustNot []Query

	// MinimumShouldMatch is the number of should clauses a matching
	// document must satisfy; 0 means unset.
	MinimumShouldMatch int
}

// normalize applies the construction-time invariants: a
// minimum_should_match of 1 is redundant when should is the only
// populated positive clause, and 0 always means unset.
func (b *Boolean) normalize() {
	if len(b.Should) > 0 && len(b.Must) == 0 && len(b.Filter) == 0 {
		if b.MinimumShouldMatch == 1 {
			b.MinimumShouldMatch = 0
		}
	}
}

func (b *Boolean) Encode() map[string]any {
	result := map[string]any{}
	clauses := []struct {
		name    string
		queries []Query
	}{
		{"must", b.Must},
		{"filter", b.Filter},
		{"should", b.Should},
		{"must_not", b.MustNot},
	}
	for _, c := range clauses {
		switch len(c.queries) {
		case 0:
		case 1:
			result[c.name] = c.queries[0].Encode()
		default:
			encoded := make([]any, 0, len(c.queries))
			for _, q := range c.queries {
				encoded = append(encoded, q.Encode())
			}
			result[c.name] = encoded
		}
	}
	if b.MinimumShouldMatch != 0 {
		result["minimum_should_match"] = b.MinimumShouldMatch
	}
	return map[string]any{"bool": result}
}

// Exists matches documents that contain a value for a field.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-exists-query.html
type Exists struct {
	Field string
}

func (e *Exists) Encode() map[string]any {
	return map[string]any{"exists": map[string]any{"field": e.Field}}
}

// MatchAll matches every document.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-match-all-query.html
type MatchAll struct{}

func (m *MatchAll) Encode() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// MatchPhrase matches documents containing an exact phrase.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-match-query-phrase.html
type MatchPhrase struct {
	Field string
	Query Literal
}

func (m *MatchPhrase) Encode() map[string]any {
	return map[string]any{"match_phrase": map[string]any{m.Field: m.Query.scalar()}}
}

// Match is a standard full-text match on a single field.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-match-query.html
type Match struct {
	Field string
	Query Literal
}

func (m *Match) Encode() map[string]any {
	return map[string]any{"match": map[string]any{m.Field: m.Query.scalar()}}
}

// MultiMatchType selects how a multi-field match combines per-field
// scores.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-multi-match-query.html#multi-match-types
type MultiMatchType string

const (
	BestFields   MultiMatchType = "best_fields"
	MostFields   MultiMatchType = "most_fields"
	CrossFields  MultiMatchType = "cross_fields"
	Phrase       MultiMatchType = "phrase"
	PhrasePrefix MultiMatchType = "phrase_prefix"
	BoolPrefix   MultiMatchType = "bool_prefix"
)

// MultiMatch runs a match against several fields at once. A nil Fields
// list means the search engine's implicit default field set.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-multi-match-query.html
type MultiMatch struct {
	Type    MultiMatchType // BestFields when left empty
	Query   string
	Fields  []string
	Lenient bool
}

func (m *MultiMatch) Encode() map[string]any {
	typ := m.Type
	if typ == "" {
		typ = BestFields
	}
	result := map[string]any{
		"type":  string(typ),
		"query": m.Query,
	}
	if m.Fields != nil {
		result["fields"] = m.Fields
	}
	if m.Lenient {
		result["lenient"] = true
	}
	return map[string]any{"multi_match": result}
}

// NestedScoreMode selects how a nested query's per-child relevance
// scores combine into the parent document's score.
type NestedScoreMode string

const (
	ScoreAvg  NestedScoreMode = "avg"
	ScoreMax  NestedScoreMode = "max"
	ScoreMin  NestedScoreMode = "min"
	ScoreNone NestedScoreMode = "none"
	ScoreSum  NestedScoreMode = "sum"
)

// Nested scopes a query to a sub-object path; field names inside the
// wrapped query carry the path as a prefix.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-nested-query.html
type Nested struct {
	Path      string
	Query     Query
	ScoreMode NestedScoreMode // ScoreAvg when left empty
}

func (n *Nested) Encode() map[string]any {
	mode := n.ScoreMode
	if mode == "" {
		mode = ScoreAvg
	}
	return map[string]any{"nested": map[string]any{
		"path":       n.Path,
		"query":      n.Query.Encode(),
		"score_mode": string(mode),
	}}
}

// QueryString holds an unparsed query in the search engine's own
// query-string syntax.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-query-string-query.html
type QueryString struct {
	Query string
}

func (q *QueryString) Encode() map[string]any {
	return map[string]any{"query_string": map[string]any{"query": q.Query}}
}

// Range constrains a field with open or closed bounds; absent bounds
// are nil.
// https://www.elastic.co/guide/en/elasticsearch/reference/current/query-dsl-range-query.html
type Range struct {
	Field string

	Gt  *Literal
	Gte *Literal
	Lt  *Literal
	Lte *Literal
}

func (r *Range) Encode() map[string]any {
	bounds := map[string]any{}
	for _, b := range []struct {
		name  string
		value *Literal
	}{{"gt", r.Gt}, {"gte", r.Gte}, {"lt", r.Lt}, {"lte", r.Lte}} {
		if b.value != nil {
			bounds[b.name] = b.value.scalar()
		}
	}
	return map[string]any{"range": map[string]any{r.Field: bounds}}
}
