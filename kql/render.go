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

package kql

import (
	"fmt"
	"strings"

	"github.com/kueryql/kuery/query"
)

// Renderer renders query trees back into KQL text. Only trees whose
// shape has a KQL spelling can be rendered; anything else yields a
// RenderError.
type Renderer struct {
	// FiltersInMustClause expects implicit conjunctions in the boolean
	// 'must' clause instead of 'filter'. It must match the setting the
	// tree was produced with, or boolean queries will fail to render.
	FiltersInMustClause bool
}

// Render renders a query tree as KQL text with the default
// configuration, expecting conjunctions in the filter clause.
func Render(q query.Query) (string, error) {
	var r Renderer
	return r.Render(q)
}

// Render renders a query tree as KQL text.
func (r *Renderer) Render(q query.Query) (string, error) {
	return r.render(q, "", false, false)
}

// render produces the KQL text for q. prefix is the field prefix
// introduced by enclosing nested scopes. inAnd and inNot tell whether
// the expression sits inside a conjunction or a negation, which
// decides parenthesization.
func (r *Renderer) render(q query.Query, prefix string, inAnd, inNot bool) (string, error) {
	switch q := q.(type) {
	case *query.Boolean:
		return r.renderBoolean(q, prefix, inAnd, inNot)
	case *query.Exists:
		field, err := stripPrefix(q.Field, prefix)
		if err != nil {
			return "", err
		}
		return escapeLiteral(field) + ": *", nil
	case *query.MatchAll:
		return "*", nil
	case *query.Match:
		field, err := stripPrefix(q.Field, prefix)
		if err != nil {
			return "", err
		}
		return escapeLiteral(field) + ": " + escapeLiteral(q.Query.String()), nil
	case *query.MatchPhrase:
		field, err := stripPrefix(q.Field, prefix)
		if err != nil {
			return "", err
		}
		return escapeLiteral(field) + `: "` + escapePhrase(q.Query.String()) + `"`, nil
	case *query.MultiMatch:
		return r.renderMultiMatch(q)
	case *query.Nested:
		return r.renderNested(q, prefix)
	case *query.Range:
		return r.renderRange(q, prefix, inNot)
	default:
		return "", &RenderError{Message: fmt.Sprintf("no KQL form for %T", q)}
	}
}

func (r *Renderer) renderBoolean(q *query.Boolean, prefix string, inAnd, inNot bool) (string, error) {
	conj := q.Must
	if !r.FiltersInMustClause {
		conj = q.Filter
	}
	if r.FiltersInMustClause && len(q.Filter) > 0 {
		return "", &RenderError{Message: "filter clause present, expected filters_in_must_clause conjunctions"}
	}
	if !r.FiltersInMustClause && len(q.Must) > 0 {
		return "", &RenderError{Message: "must clause present without filters_in_must_clause"}
	}

	// With minimum_should_match covering every should member, the
	// alternatives are all required and fold into the conjunction.
	// A value of 1 asks for at least one match, which is exactly what
	// the disjunction spelling means, so it reads like unset. Any
	// other value has no KQL spelling.
	allShould := len(q.Should) > 0 && q.MinimumShouldMatch == len(q.Should)
	if !allShould && q.MinimumShouldMatch != 0 && q.MinimumShouldMatch != 1 {
		return "", &RenderError{Message: fmt.Sprintf("no KQL form for minimum_should_match %d over %d should clauses", q.MinimumShouldMatch, len(q.Should))}
	}

	// Pure disjunction.
	if !allShould && len(q.Should) > 0 && len(conj) == 0 && len(q.MustNot) == 0 {
		childAnd, childNot := inAnd, inNot
		if len(q.Should) > 1 {
			childAnd, childNot = false, false
		}
		parts := make([]string, len(q.Should))
		var err error
		for i, sub := range q.Should {
			if parts[i], err = r.render(sub, prefix, childAnd, childNot); err != nil {
				return "", err
			}
		}
		result := strings.Join(parts, " or ")
		if len(parts) > 1 && (inAnd || inNot) {
			result = "(" + result + ")"
		}
		return result, nil
	}

	n := len(conj)
	if allShould {
		n += len(q.Should)
	} else if len(q.Should) > 0 {
		n++
	}
	if len(q.MustNot) > 0 {
		n++
	}
	if n == 0 {
		return "", &RenderError{Message: "empty boolean query"}
	}

	childAnd, childNot := true, false
	if n == 1 {
		childAnd, childNot = inAnd, inNot
	}

	var parts []string
	members := conj
	if allShould {
		members = append(append([]query.Query{}, conj...), q.Should...)
	}
	for _, sub := range members {
		s, err := r.render(sub, prefix, childAnd, childNot)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if !allShould && len(q.Should) > 0 {
		group := make([]string, len(q.Should))
		var err error
		for i, sub := range q.Should {
			single := len(q.Should) == 1
			if group[i], err = r.render(sub, prefix, childAnd && single, childNot && single); err != nil {
				return "", err
			}
		}
		s := strings.Join(group, " or ")
		if len(group) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	if len(q.MustNot) > 0 {
		s, err := r.renderNegation(q.MustNot, prefix)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}

	result := strings.Join(parts, " and ")
	if n > 1 && inNot {
		result = "(" + result + ")"
	}
	return result, nil
}

// renderNegation renders the must_not members as a single negated
// group: "not x" for one member, "not (a or b)" for several.
func (r *Renderer) renderNegation(subs []query.Query, prefix string) (string, error) {
	if len(subs) == 1 {
		s, err := r.render(subs[0], prefix, false, true)
		if err != nil {
			return "", err
		}
		return "not " + s, nil
	}
	parts := make([]string, len(subs))
	var err error
	for i, sub := range subs {
		if parts[i], err = r.render(sub, prefix, false, false); err != nil {
			return "", err
		}
	}
	return "not (" + strings.Join(parts, " or ") + ")", nil
}

func (r *Renderer) renderMultiMatch(q *query.MultiMatch) (string, error) {
	if q.Fields != nil {
		return "", &RenderError{Message: "multi-match with explicit fields"}
	}
	if !q.Lenient {
		return "", &RenderError{Message: "multi-match must be lenient"}
	}
	switch q.Type {
	case query.BestFields, "":
		return escapeLiteral(q.Query), nil
	case query.Phrase:
		return `"` + escapePhrase(q.Query) + `"`, nil
	default:
		return "", &RenderError{Message: fmt.Sprintf("cannot express multi-match with type %q", q.Type)}
	}
}

func (r *Renderer) renderNested(q *query.Nested, prefix string) (string, error) {
	if q.ScoreMode != query.ScoreNone {
		return "", &RenderError{Message: fmt.Sprintf("unsupported nested score mode %q", q.ScoreMode)}
	}
	path, err := stripPrefix(q.Path, prefix)
	if err != nil {
		return "", err
	}
	inner, err := r.render(q.Query, q.Path+".", false, false)
	if err != nil {
		return "", err
	}
	return escapeLiteral(path) + ": { " + inner + " }", nil
}

func (r *Renderer) renderRange(q *query.Range, prefix string, inNot bool) (string, error) {
	field, err := stripPrefix(q.Field, prefix)
	if err != nil {
		return "", err
	}
	name := escapeLiteral(field)

	var parts []string
	add := func(op string, bound *query.Literal) {
		if bound != nil {
			parts = append(parts, name+" "+op+" "+escapeLiteral(bound.String()))
		}
	}
	add(">", q.Gt)
	add(">=", q.Gte)
	add("<", q.Lt)
	add("<=", q.Lte)
	if len(parts) == 0 {
		return "", &RenderError{Message: "range query without bounds"}
	}
	result := strings.Join(parts, " and ")
	if len(parts) > 1 && inNot {
		result = "(" + result + ")"
	}
	return result, nil
}

// stripPrefix removes the field prefix a nested scope imposes on the
// fields beneath it.
func stripPrefix(field, prefix string) (string, error) {
	if prefix == "" {
		return field, nil
	}
	rest, ok := strings.CutPrefix(field, prefix)
	if !ok || rest == "" {
		return "", &RenderError{Message: fmt.Sprintf("field %q lacks nested path prefix %q", field, prefix)}
	}
	return rest, nil
}

const escapedChars = `\(){}:<>"`

// escapeLiteral backslash-escapes the characters that would otherwise
// terminate or structure an unquoted literal.
func escapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(escapedChars, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// escapePhrase escapes only what a quoted literal cannot contain raw.
func escapePhrase(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
