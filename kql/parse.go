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
	"strings"

	"golang.org/x/exp/slices"

	"github.com/kueryql/kuery/query"
)

// Parser parses KQL text into query trees.
//
// Each grammar rule consumes tokens up to and including the first
// token that does not belong to its production, and hands that token
// back to its caller alongside the parsed result.
type Parser struct {
	// AllowLeadingWildcards permits values that start with '*'.
	AllowLeadingWildcards bool

	// FiltersInMustClause places implicit conjunctions in the boolean
	// 'must' clause instead of 'filter'.
	FiltersInMustClause bool
}

// Parse parses a KQL expression with the default configuration:
// leading wildcards allowed, conjunctions in the filter clause.
func Parse(src string) (query.Query, error) {
	p := Parser{AllowLeadingWildcards: true}
	return p.Parse(src)
}

// Parse parses a KQL expression into a query tree. Input consisting
// only of whitespace yields a match-all query.
func (p *Parser) Parse(src string) (query.Query, error) {
	toks := &tokenCursor{lex: NewLexer(src)}

	first, err := toks.next()
	if err != nil {
		return nil, err
	}
	if first.Type == TokenEnd {
		return &query.MatchAll{}, nil
	}
	toks.unread(first)

	q, tok, err := p.parseOrQuery(toks, "")
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenEnd {
		return nil, &UnexpectedTokenError{Token: tok}
	}
	return q, nil
}

// tokenCursor is a token source with a single-token pushback slot, so
// a lookahead token can be re-presented to the next grammar rule.
type tokenCursor struct {
	lex  *Lexer
	back *Token
}

func (t *tokenCursor) next() (Token, error) {
	if t.back != nil {
		tok := *t.back
		t.back = nil
		return tok, nil
	}
	return t.lex.Next()
}

func (t *tokenCursor) unread(tok Token) {
	t.back = &tok
}

// or-query := and-query ( OR and-query )*
func (p *Parser) parseOrQuery(toks *tokenCursor, prefix string) (query.Query, Token, error) {
	var elements []query.Query
	for {
		q, tok, err := p.parseAndQuery(toks, prefix)
		if err != nil {
			return nil, Token{}, err
		}
		elements = append(elements, q)
		if tok.Type != TokenOr {
			if len(elements) == 1 {
				return elements[0], tok, nil
			}
			return &query.Boolean{Should: elements}, tok, nil
		}
	}
}

// and-query := expression ( AND expression )*
func (p *Parser) parseAndQuery(toks *tokenCursor, prefix string) (query.Query, Token, error) {
	var elements []query.Query
	for {
		q, tok, err := p.parseExpression(toks, prefix)
		if err != nil {
			return nil, Token{}, err
		}
		elements = append(elements, q)
		if tok.Type != TokenAnd {
			if len(elements) == 1 {
				return elements[0], tok, nil
			}
			return p.conjunction(elements), tok, nil
		}
	}
}

// conjunction wraps two or more queries in the boolean clause selected
// by the parser configuration.
func (p *Parser) conjunction(elements []query.Query) *query.Boolean {
	if p.FiltersInMustClause {
		return &query.Boolean{Must: elements}
	}
	return &query.Boolean{Filter: elements}
}

// expression := [NOT] ( "(" or-query ")" | field-or-bare-term )
func (p *Parser) parseExpression(toks *tokenCursor, prefix string) (query.Query, Token, error) {
	tok, err := toks.next()
	if err != nil {
		return nil, Token{}, err
	}
	isNot := false
	if tok.Type == TokenNot {
		isNot = true
		if tok, err = toks.next(); err != nil {
			return nil, Token{}, err
		}
	}

	var result query.Query
	switch tok.Type {
	case TokenUnquotedLiteral, TokenQuotedLiteral:
		result, tok, err = p.parseFieldOrBareTerm(toks, tok, prefix, isNot)
		if err != nil {
			return nil, Token{}, err
		}
	case TokenLpar:
		var end Token
		result, end, err = p.parseOrQuery(toks, prefix)
		if err != nil {
			return nil, Token{}, err
		}
		if end.Type != TokenRpar {
			return nil, Token{}, &UnexpectedTokenError{Token: end}
		}
		if tok, err = toks.next(); err != nil {
			return nil, Token{}, err
		}
	default:
		return nil, Token{}, &UnexpectedTokenError{Token: tok}
	}

	if isNot {
		result = &query.Boolean{MustNot: []query.Query{result}}
	}
	return result, tok, nil
}

// parseFieldOrBareTerm disambiguates, by one token of lookahead, a
// leading literal between a range comparison, a field query and a
// field-less bare term.
func (p *Parser) parseFieldOrBareTerm(toks *tokenCursor, fieldTok Token, prefix string, isNot bool) (query.Query, Token, error) {
	op, err := toks.next()
	if err != nil {
		return nil, Token{}, err
	}

	switch op.Type {
	case TokenGt, TokenGte, TokenLt, TokenLte:
		comp, err := toks.next()
		if err != nil {
			return nil, Token{}, err
		}
		if comp.Type != TokenUnquotedLiteral {
			return nil, Token{}, &UnexpectedTokenError{Token: comp}
		}
		bound := query.Literal{Value: comp.Value}
		r := &query.Range{Field: prefix + fieldTok.Value}
		switch op.Type {
		case TokenGt:
			r.Gt = &bound
		case TokenGte:
			r.Gte = &bound
		case TokenLt:
			r.Lt = &bound
		case TokenLte:
			r.Lte = &bound
		}
		tok, err := toks.next()
		return r, tok, err

	case TokenColon:
		return p.parseFieldValue(toks, fieldTok, op, prefix, isNot)

	default:
		// Bare term: the literal, plus any directly following
		// unquoted-literal run, forms a field-less match.
		parts := []string{fieldTok.Value}
		for op.Type == TokenUnquotedLiteral {
			parts = append(parts, op.Value)
			if op, err = toks.next(); err != nil {
				return nil, Token{}, err
			}
		}
		check := parts
		typ := query.BestFields
		if fieldTok.Type == TokenQuotedLiteral {
			typ = query.Phrase
			check = parts[1:]
		}
		if err := p.checkLeadingWildcards(check); err != nil {
			return nil, Token{}, err
		}
		return &query.MultiMatch{
			Type:    typ,
			Query:   strings.Join(parts, " "),
			Lenient: true,
		}, op, nil
	}
}

// parseFieldValue parses what follows "field:": a braced nested
// sub-query, a parenthesized value list, a quoted phrase, or an
// unquoted-literal run.
func (p *Parser) parseFieldValue(toks *tokenCursor, fieldTok, colon Token, prefix string, isNot bool) (query.Query, Token, error) {
	comp, err := toks.next()
	if err != nil {
		return nil, Token{}, err
	}

	switch comp.Type {
	case TokenLbrace:
		// negating a whole nested sub-query is not part of the grammar
		if isNot {
			return nil, Token{}, &UnexpectedTokenError{Token: colon}
		}
		path := prefix + fieldTok.Value
		inner, end, err := p.parseOrQuery(toks, path+".")
		if err != nil {
			return nil, Token{}, err
		}
		if end.Type != TokenRbrace {
			return nil, Token{}, &UnexpectedTokenError{Token: end}
		}
		tok, err := toks.next()
		return &query.Nested{
			Path:      path,
			Query:     inner,
			ScoreMode: query.ScoreNone,
		}, tok, err

	case TokenLpar:
		result, end, err := p.parseOrValueList(toks, prefix+fieldTok.Value)
		if err != nil {
			return nil, Token{}, err
		}
		if end.Type != TokenRpar {
			return nil, Token{}, &UnexpectedTokenError{Token: end}
		}
		tok, err := toks.next()
		return result, tok, err

	case TokenQuotedLiteral:
		var result query.Query
		if fieldTok.Value == "*" {
			// a lone wildcard field stands for "all default fields",
			// even inside a nested scope
			result = &query.MultiMatch{
				Type:    query.Phrase,
				Query:   comp.Value,
				Lenient: true,
			}
		} else {
			result = &query.MatchPhrase{
				Field: prefix + fieldTok.Value,
				Query: query.Literal{Value: comp.Value},
			}
		}
		tok, err := toks.next()
		return result, tok, err

	case TokenUnquotedLiteral:
		parts := []string{comp.Value}
		tok, err := toks.next()
		if err != nil {
			return nil, Token{}, err
		}
		for tok.Type == TokenUnquotedLiteral {
			parts = append(parts, tok.Value)
			if tok, err = toks.next(); err != nil {
				return nil, Token{}, err
			}
		}
		if err := p.checkLeadingWildcards(parts); err != nil {
			return nil, Token{}, err
		}

		var result query.Query
		switch {
		case fieldTok.Value == "*":
			if slices.Contains(parts, "*") {
				result = &query.MatchAll{}
			} else {
				result = &query.MultiMatch{
					Type:    query.BestFields,
					Query:   strings.Join(parts, " "),
					Lenient: true,
				}
			}
		case slices.Contains(parts, "*"):
			result = &query.Exists{Field: prefix + fieldTok.Value}
		default:
			result = &query.Match{
				Field: prefix + fieldTok.Value,
				Query: query.Literal{Value: strings.Join(parts, " ")},
			}
		}
		return result, tok, nil

	default:
		return nil, Token{}, &UnexpectedTokenError{Token: comp}
	}
}

// or-value-list := and-value-list ( OR and-value-list )*
func (p *Parser) parseOrValueList(toks *tokenCursor, field string) (query.Query, Token, error) {
	var elements []query.Query
	for {
		q, tok, err := p.parseAndValueList(toks, field)
		if err != nil {
			return nil, Token{}, err
		}
		elements = append(elements, q)
		if tok.Type != TokenOr {
			if len(elements) == 1 {
				return elements[0], tok, nil
			}
			return &query.Boolean{Should: elements}, tok, nil
		}
	}
}

// and-value-list := value ( AND value )*, where every value queries
// the same field.
func (p *Parser) parseAndValueList(toks *tokenCursor, field string) (query.Query, Token, error) {
	var elements []query.Query
	for {
		tok, err := toks.next()
		if err != nil {
			return nil, Token{}, err
		}
		isNot := false
		if tok.Type == TokenNot {
			isNot = true
			if tok, err = toks.next(); err != nil {
				return nil, Token{}, err
			}
		}

		var result query.Query
		switch tok.Type {
		case TokenLpar:
			var end Token
			result, end, err = p.parseOrValueList(toks, field)
			if err != nil {
				return nil, Token{}, err
			}
			if end.Type != TokenRpar {
				return nil, Token{}, &UnexpectedTokenError{Token: end}
			}
			if tok, err = toks.next(); err != nil {
				return nil, Token{}, err
			}

		case TokenQuotedLiteral:
			if field == "*" {
				result = &query.MultiMatch{
					Type:    query.Phrase,
					Query:   tok.Value,
					Lenient: true,
				}
			} else {
				result = &query.MatchPhrase{
					Field: field,
					Query: query.Literal{Value: tok.Value},
				}
			}
			if tok, err = toks.next(); err != nil {
				return nil, Token{}, err
			}

		case TokenUnquotedLiteral:
			parts := []string{tok.Value}
			if tok, err = toks.next(); err != nil {
				return nil, Token{}, err
			}
			for tok.Type == TokenUnquotedLiteral {
				parts = append(parts, tok.Value)
				if tok, err = toks.next(); err != nil {
					return nil, Token{}, err
				}
			}
			if err := p.checkLeadingWildcards(parts); err != nil {
				return nil, Token{}, err
			}
			if field == "*" {
				result = &query.MultiMatch{
					Type:    query.BestFields,
					Query:   strings.Join(parts, " "),
					Lenient: true,
				}
			} else {
				result = &query.Match{
					Field: field,
					Query: query.Literal{Value: strings.Join(parts, " ")},
				}
			}

		default:
			return nil, Token{}, &UnexpectedTokenError{Token: tok}
		}

		if isNot {
			result = &query.Boolean{MustNot: []query.Query{result}}
		}
		elements = append(elements, result)

		if tok.Type != TokenAnd {
			if len(elements) == 1 {
				return elements[0], tok, nil
			}
			return p.conjunction(elements), tok, nil
		}
	}
}

func (p *Parser) checkLeadingWildcards(parts []string) error {
	if p.AllowLeadingWildcards {
		return nil
	}
	if slices.ContainsFunc(parts, func(s string) bool { return strings.HasPrefix(s, "*") }) {
		return ErrLeadingWildcards
	}
	return nil
}
