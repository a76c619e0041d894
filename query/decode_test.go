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

package query

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		doc  map[string]any
		want Query
	}{
		{
			map[string]any{"bool": map[string]any{
				"filter": map[string]any{"match": map[string]any{"message": "hello world"}},
			}},
			&Boolean{Filter: []Query{
				&Match{Field: "message", Query: Literal{Value: "hello world"}},
			}},
		},
		{
			map[string]any{"bool": map[string]any{
				"filter": []any{
					map[string]any{"match": map[string]any{
						"message": map[string]any{"query": "hello world"},
					}},
				},
			}},
			&Boolean{Filter: []Query{
				&Match{Field: "message", Query: Literal{Value: "hello world"}},
			}},
		},
		{
			map[string]any{"exists": map[string]any{"field": "hello"}},
			&Exists{Field: "hello"},
		},
		{
			map[string]any{"match_all": map[string]any{}},
			&MatchAll{},
		},
		{
			map[string]any{"match_phrase": map[string]any{"hello": "world"}},
			&MatchPhrase{Field: "hello", Query: Literal{Value: "world"}},
		},
		{
			map[string]any{"match_phrase": map[string]any{
				"hello": map[string]any{"query": "world"},
			}},
			&MatchPhrase{Field: "hello", Query: Literal{Value: "world"}},
		},
		{
			map[string]any{"multi_match": map[string]any{
				"query":   "hello world",
				"lenient": true,
			}},
			&MultiMatch{Type: BestFields, Query: "hello world", Lenient: true},
		},
		{
			map[string]any{"nested": map[string]any{
				"path":  "user.names",
				"query": map[string]any{"match": map[string]any{"first": "Thomas"}},
			}},
			&Nested{
				Path:      "user.names",
				Query:     &Match{Field: "first", Query: Literal{Value: "Thomas"}},
				ScoreMode: ScoreAvg,
			},
		},
		{
			map[string]any{"query_string": map[string]any{"query": "a: b"}},
			&QueryString{Query: "a: b"},
		},
		{
			map[string]any{"range": map[string]any{
				"hello": map[string]any{"lt": "200", "gt": "200"},
			}},
			&Range{
				Field: "hello",
				Lt:    &Literal{Value: "200"},
				Gt:    &Literal{Value: "200"},
			},
		},
	}
	for _, tc := range tests {
		got, err := Decode(tc.doc)
		if err != nil {
			t.Errorf("%#v: %v", tc.doc, err)
			continue
		}
		if !Equal(got, tc.want) {
			t.Errorf("%#v:\n got: %#v\nwant: %#v", tc.doc, got, tc.want)
		}
	}
}

func TestUnmarshal(t *testing.T) {
	got, err := Unmarshal([]byte(`{"match":{"hello":"world"}}`))
	if err != nil {
		t.Fatal(err)
	}
	want := &Match{Field: "hello", Query: Literal{Value: "world"}}
	if !Equal(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	// JSON numbers must keep integer precision.
	got, err = Unmarshal([]byte(`{"range":{"year":{"gte":2000}}}`))
	if err != nil {
		t.Fatal(err)
	}
	r, ok := got.(*Range)
	if !ok {
		t.Fatalf("got %T, want *Range", got)
	}
	if r.Gte == nil || r.Gte.Value != int64(2000) {
		t.Fatalf("gte = %#v, want int64 2000", r.Gte)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		doc     map[string]any
		context string
	}{
		{map[string]any{"first_key": "wow", "second_key": "wow"}, "."},
		{map[string]any{"first_key": "wow"}, "."},
		{map[string]any{"bool": map[string]any{"must": map[string]any{"first_key": nil}}}, ".bool[must0]."},
		{map[string]any{"unknown_query": map[string]any{}}, "."},
		{map[string]any{"match_all": map[string]any{"hello": "world"}}, "."},
		{map[string]any{"nested": map[string]any{
			"path":  "user",
			"query": map[string]any{"match": 5},
		}}, ".nested[query]."},
	}
	for _, tc := range tests {
		_, err := Decode(tc.doc)
		var ierr *InvalidQueryError
		if !errors.As(err, &ierr) {
			t.Errorf("%#v: got %v, want *InvalidQueryError", tc.doc, err)
			continue
		}
		if ierr.Context != tc.context {
			t.Errorf("%#v: error context %q, want %q", tc.doc, ierr.Context, tc.context)
		}
	}

	if _, err := Unmarshal([]byte(`5`)); err == nil {
		t.Error("scalar document decoded successfully")
	}
}

func TestDecodeNormalizesMinimumShouldMatch(t *testing.T) {
	got, err := Decode(map[string]any{"bool": map[string]any{
		"should": []any{
			map[string]any{"match": map[string]any{"a": "b"}},
			map[string]any{"match": map[string]any{"c": "d"}},
		},
		"minimum_should_match": 1,
	}})
	if err != nil {
		t.Fatal(err)
	}
	b, ok := got.(*Boolean)
	if !ok {
		t.Fatalf("got %T, want *Boolean", got)
	}
	if b.MinimumShouldMatch != 0 {
		t.Fatalf("minimum_should_match = %d, want 0", b.MinimumShouldMatch)
	}
}

func TestInvalidQueryErrorMessage(t *testing.T) {
	_, err := Decode(map[string]any{"bool": map[string]any{
		"must": []any{
			map[string]any{"match": map[string]any{"a": "b"}},
			map[string]any{"huh": map[string]any{}},
		},
	}})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, ".bool[must1].") {
		t.Fatalf("error %q does not carry its breadcrumb context", msg)
	}
}
