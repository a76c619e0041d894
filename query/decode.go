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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// InvalidQueryError reports an ES-JSON document that cannot be turned
// into a query tree. Context is a dotted/bracketed breadcrumb locating
// the offending fragment, e.g. ".bool[must2].".
type InvalidQueryError struct {
	Context string
	Raw     any
	Message string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query at %s: %s\n    %v", e.Context, e.Message, e.Raw)
}

// Marshal renders a query tree as a JSON-encoded ES query document.
func Marshal(q Query) ([]byte, error) {
	return json.Marshal(q.Encode())
}

// Unmarshal parses a JSON-encoded ES query document into a query tree.
func Unmarshal(data []byte) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return Decode(doc)
}

// Decode parses an already-decoded ES query document (a single-key
// mapping keyed by the query's type tag) into a query tree.
func Decode(doc any) (Query, error) {
	return decode(doc, ".")
}

func decode(doc any, ctx string) (Query, error) {
	fail := func(format string, args ...any) (Query, error) {
		return nil, &InvalidQueryError{
			Context: ctx,
			Raw:     doc,
			Message: fmt.Sprintf(format, args...),
		}
	}

	m, ok := doc.(map[string]any)
	if !ok || len(m) != 1 {
		return fail("could not retrieve query type")
	}
	var tag string
	var raw any
	for k, v := range m {
		tag, raw = k, v
	}
	content, ok := raw.(map[string]any)
	if !ok {
		return fail("query contents was not an object")
	}

	q, err := decodeTagged(tag, content, ctx)
	if err != nil {
		var inv *InvalidQueryError
		if errors.As(err, &inv) {
			// already carries the inner context
			return nil, err
		}
		return fail("%v", err)
	}
	return q, nil
}

func decodeTagged(tag string, content map[string]any, ctx string) (Query, error) {
	switch tag {
	case "bool":
		return decodeBoolean(content, ctx)
	case "exists":
		if err := onlyKeys(content, "field"); err != nil {
			return nil, err
		}
		field, err := stringValue(content, "field")
		if err != nil {
			return nil, err
		}
		return &Exists{Field: field}, nil
	case "match_all":
		if len(content) != 0 {
			return nil, errors.New("match_all does not take arguments")
		}
		return &MatchAll{}, nil
	case "match_phrase":
		field, lit, err := decodeFieldScalar(content)
		if err != nil {
			return nil, err
		}
		return &MatchPhrase{Field: field, Query: lit}, nil
	case "match":
		field, lit, err := decodeFieldScalar(content)
		if err != nil {
			return nil, err
		}
		return &Match{Field: field, Query: lit}, nil
	case "multi_match":
		return decodeMultiMatch(content)
	case "nested":
		return decodeNested(content, ctx)
	case "query_string":
		if err := onlyKeys(content, "query"); err != nil {
			return nil, err
		}
		q, err := stringValue(content, "query")
		if err != nil {
			return nil, err
		}
		return &QueryString{Query: q}, nil
	case "range":
		return decodeRange(content)
	default:
		return nil, fmt.Errorf("unimplemented query type %q", tag)
	}
}

func decodeBoolean(content map[string]any, ctx string) (Query, error) {
	err := onlyKeys(content, "must", "filter", "should", "must_not", "minimum_should_match")
	if err != nil {
		return nil, err
	}

	b := &Boolean{}
	if b.Must, err = decodeClause(content, "must", ctx); err != nil {
		return nil, err
	}
	if b.Filter, err = decodeClause(content, "filter", ctx); err != nil {
		return nil, err
	}
	if b.Should, err = decodeClause(content, "should", ctx); err != nil {
		return nil, err
	}
	if b.MustNot, err = decodeClause(content, "must_not", ctx); err != nil {
		return nil, err
	}
	if raw, ok := content["minimum_should_match"]; ok {
		n, err := intValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field 'minimum_should_match': %w", err)
		}
		b.MinimumShouldMatch = n
	}
	b.normalize()
	return b, nil
}

// decodeClause parses one of the bool clause slots, accepting either a
// single query object or a sequence of them.
func decodeClause(content map[string]any, key, ctx string) ([]Query, error) {
	raw, ok := content[key]
	if !ok {
		return nil, nil
	}
	if list, ok := raw.([]any); ok {
		out := make([]Query, 0, len(list))
		for i, el := range list {
			q, err := decode(el, fmt.Sprintf("%sbool[%s%d].", ctx, key, i))
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	}
	q, err := decode(raw, fmt.Sprintf("%sbool[%s0].", ctx, key))
	if err != nil {
		return nil, err
	}
	return []Query{q}, nil
}

// decodeFieldScalar handles the match/match_phrase content shape: a
// single field key whose value is either a bare scalar or an object
// spelling out the query explicitly.
func decodeFieldScalar(content map[string]any) (string, Literal, error) {
	if len(content) != 1 {
		return "", Literal{}, errors.New("expected exactly one field")
	}
	var field string
	var raw any
	for k, v := range content {
		field, raw = k, v
	}
	if field == "" {
		return "", Literal{}, errors.New("field name cannot be empty")
	}
	if inner, ok := raw.(map[string]any); ok {
		if err := onlyKeys(inner, "query"); err != nil {
			return "", Literal{}, err
		}
		qv, ok := inner["query"]
		if !ok {
			return "", Literal{}, errors.New("missing 'query' argument")
		}
		lit, err := NewLiteral(qv)
		return field, lit, err
	}
	lit, err := NewLiteral(raw)
	return field, lit, err
}

func decodeMultiMatch(content map[string]any) (Query, error) {
	if err := onlyKeys(content, "type", "query", "fields", "lenient"); err != nil {
		return nil, err
	}
	m := &MultiMatch{Type: BestFields}
	q, err := stringValue(content, "query")
	if err != nil {
		return nil, err
	}
	m.Query = q
	if raw, ok := content["type"]; ok {
		s, ok := raw.(string)
		if !ok || !MultiMatchType(s).valid() {
			return nil, fmt.Errorf("invalid multi_match type %v", raw)
		}
		m.Type = MultiMatchType(s)
	}
	if raw, ok := content["fields"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, errors.New("field 'fields': expected a sequence of strings")
		}
		fields := make([]string, 0, len(list))
		for _, el := range list {
			s, ok := el.(string)
			if !ok || s == "" {
				return nil, errors.New("field 'fields': expected a sequence of non-empty strings")
			}
			fields = append(fields, s)
		}
		m.Fields = fields
	}
	if raw, ok := content["lenient"]; ok {
		v, ok := raw.(bool)
		if !ok {
			return nil, errors.New("field 'lenient': expected a boolean")
		}
		m.Lenient = v
	}
	return m, nil
}

func decodeNested(content map[string]any, ctx string) (Query, error) {
	if err := onlyKeys(content, "path", "query", "score_mode"); err != nil {
		return nil, err
	}
	path, err := stringValue(content, "path")
	if err != nil {
		return nil, err
	}
	inner, err := decode(content["query"], ctx+"nested[query].")
	if err != nil {
		return nil, err
	}
	n := &Nested{Path: path, Query: inner, ScoreMode: ScoreAvg}
	if raw, ok := content["score_mode"]; ok {
		s, ok := raw.(string)
		if !ok || !NestedScoreMode(s).valid() {
			return nil, fmt.Errorf("invalid score mode %v", raw)
		}
		n.ScoreMode = NestedScoreMode(s)
	}
	return n, nil
}

func decodeRange(content map[string]any) (Query, error) {
	if len(content) != 1 {
		return nil, errors.New("expected exactly one field")
	}
	var field string
	var raw any
	for k, v := range content {
		field, raw = k, v
	}
	if field == "" {
		return nil, errors.New("field name cannot be empty")
	}
	bounds, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("range bounds were not an object")
	}
	r := &Range{Field: field}
	for k, bv := range bounds {
		lit, err := NewLiteral(bv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		switch k {
		case "gt":
			r.Gt = &lit
		case "gte":
			r.Gte = &lit
		case "lt":
			r.Lt = &lit
		case "lte":
			r.Lte = &lit
		default:
			return nil, fmt.Errorf("unknown range bound %q", k)
		}
	}
	return r, nil
}

func (t MultiMatchType) valid() bool {
	switch t {
	case BestFields, MostFields, CrossFields, Phrase, PhrasePrefix, BoolPrefix:
		return true
	}
	return false
}

func (m NestedScoreMode) valid() bool {
	switch m {
	case ScoreAvg, ScoreMax, ScoreMin, ScoreNone, ScoreSum:
		return true
	}
	return false
}

func onlyKeys(content map[string]any, allowed ...string) error {
	for k := range content {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown argument %q", k)
		}
	}
	return nil
}

func stringValue(content map[string]any, key string) (string, error) {
	raw, ok := content[key]
	if !ok {
		return "", fmt.Errorf("missing %q argument", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("field %q: expected a non-empty string", key)
	}
	return s, nil
}

func intValue(raw any) (int, error) {
	switch v := raw.(type) {
	case json.Number:
		i, err := v.Int64()
		return int(i), err
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %v", raw)
	}
}
