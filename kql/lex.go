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

// Package kql tokenizes, parses and renders KQL, the human-typed
// boolean filter language understood by Kibana's search bar.
// https://www.elastic.co/guide/en/kibana/current/kuery-query.html
package kql

import (
	"fmt"
	"strings"
)

// TokenType identifies one of the KQL lexemes.
type TokenType int

const (
	TokenEnd TokenType = iota
	TokenUnquotedLiteral
	TokenQuotedLiteral
	TokenLte
	TokenGte
	TokenLt
	TokenGt
	TokenColon
	TokenLpar
	TokenRpar
	TokenLbrace
	TokenRbrace
	TokenOr
	TokenAnd
	TokenNot
)

var tokenNames = map[TokenType]string{
	TokenEnd:             "END",
	TokenUnquotedLiteral: "UNQUOTED_LITERAL",
	TokenQuotedLiteral:   "QUOTED_LITERAL",
	TokenLte:             "<=",
	TokenGte:             ">=",
	TokenLt:              "<",
	TokenGt:              ">",
	TokenColon:           ":",
	TokenLpar:            "(",
	TokenRpar:            ")",
	TokenLbrace:          "{",
	TokenRbrace:          "}",
	TokenOr:              "OR",
	TokenAnd:             "AND",
	TokenNot:             "NOT",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token%d", int(t))
}

// Token is a single KQL lexeme stamped with the position at which it
// starts. Value holds the unescaped contents of literal tokens.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
	Offset int
}

// position tracks line, column and byte offset while the lexer
// consumes input. It must be fed every consumed slice, leading
// whitespace included, in document order.
type position struct {
	line   int
	column int
	offset int
}

func (p *position) advance(s string) {
	p.offset += len(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.line += strings.Count(s, "\n")
		p.column = len(s) - i
	} else {
		p.column += len(s)
	}
}

// Lexer turns KQL text into a lazy sequence of tokens. Tokens are
// produced once; re-tokenizing requires a new Lexer over the original
// text.
type Lexer struct {
	src string
	pos position
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src, pos: position{line: 1, column: 1}}
}

// excerptLen bounds how much remaining input a lexical error message
// shows.
const excerptLen = 30

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// Next returns the next token. After the input is exhausted it yields
// an END token stamped with the final position.
func (l *Lexer) Next() (Token, error) {
	start := 0
	for start < len(l.src) && isSpace(l.src[start]) {
		start++
	}
	l.pos.advance(l.src[:start])
	l.src = l.src[start:]

	tok := Token{Line: l.pos.line, Column: l.pos.column, Offset: l.pos.offset}
	if l.src == "" {
		tok.Type = TokenEnd
		return tok, nil
	}

	raw, typ, ok := l.match()
	if !ok {
		excerpt := l.src
		if len(excerpt) > excerptLen {
			excerpt = excerpt[:excerptLen-3] + "..."
		}
		return Token{}, &DecodeError{
			Message: fmt.Sprintf("could not parse query starting from: %s", excerpt),
			Line:    l.pos.line,
			Column:  l.pos.column,
			Offset:  l.pos.offset,
		}
	}

	tok.Type = typ
	switch typ {
	case TokenQuotedLiteral:
		tok.Value = unescape(raw[1 : len(raw)-1])
	case TokenUnquotedLiteral:
		tok.Value = unescape(raw)
	}
	l.pos.advance(raw)
	l.src = l.src[len(raw):]
	return tok, nil
}

// match finds the longest lexeme at the start of the input. The three
// alternatives are tried in priority order: fixed punctuation, quoted
// literal, unquoted literal.
func (l *Lexer) match() (raw string, typ TokenType, ok bool) {
	src := l.src
	if len(src) >= 2 {
		switch src[:2] {
		case "<=":
			return src[:2], TokenLte, true
		case ">=":
			return src[:2], TokenGte, true
		}
	}
	switch src[0] {
	case '<':
		return src[:1], TokenLt, true
	case '>':
		return src[:1], TokenGt, true
	case ':':
		return src[:1], TokenColon, true
	case '(':
		return src[:1], TokenLpar, true
	case ')':
		return src[:1], TokenRpar, true
	case '{':
		return src[:1], TokenLbrace, true
	case '}':
		return src[:1], TokenRbrace, true
	case '"':
		return l.scanQuoted()
	}
	return l.scanUnquoted()
}

// scanQuoted scans a double-quoted literal; a backslash escapes the
// character that follows it. A missing closing quote is a lexical
// failure.
func (l *Lexer) scanQuoted() (string, TokenType, bool) {
	src := l.src
	for i := 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return src[:i+1], TokenQuotedLiteral, true
		}
	}
	return "", 0, false
}

// scanUnquoted scans a maximal run of characters that are neither
// whitespace nor one of the reserved punctuation characters, except
// where backslash-escaped. The raw text of the run doubles as the
// keyword lookup key, so an escaped keyword (e.g. \or) stays a
// literal.
func (l *Lexer) scanUnquoted() (string, TokenType, bool) {
	src := l.src
	i := 0
	for i < len(src) {
		c := src[i]
		if c == '\\' {
			if i+1 >= len(src) {
				break
			}
			i += 2
			continue
		}
		if isSpace(c) || strings.IndexByte(`:()<>"{}`, c) >= 0 {
			break
		}
		i++
	}
	if i == 0 {
		return "", 0, false
	}
	raw := src[:i]
	switch {
	case strings.EqualFold(raw, "or"):
		return raw, TokenOr, true
	case strings.EqualFold(raw, "and"):
		return raw, TokenAnd, true
	case strings.EqualFold(raw, "not"):
		return raw, TokenNot, true
	}
	return raw, TokenUnquotedLiteral, true
}

// unescape replaces each backslash-escape with the escaped character.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
