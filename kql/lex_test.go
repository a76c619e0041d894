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
	"errors"
	"strings"
	"testing"
)

type tok struct {
	t TokenType
	v string
}

func lexAll(t *testing.T, src string) []tok {
	t.Helper()
	lex := NewLexer(src)
	var out []tok
	for {
		token, err := lex.Next()
		if err != nil {
			t.Fatalf("lexing %q: %v", src, err)
		}
		if token.Type == TokenEnd {
			return out
		}
		out = append(out, tok{token.Type, token.Value})
	}
}

func TestLexer(t *testing.T) {
	// Inputs mostly lifted from the Kibana query language
	// documentation examples.
	tests := []struct {
		src  string
		want []tok
	}{
		{
			"http.request.method: *",
			[]tok{
				{TokenUnquotedLiteral, "http.request.method"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "*"},
			},
		},
		{
			"http.request.method: GET",
			[]tok{
				{TokenUnquotedLiteral, "http.request.method"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "GET"},
			},
		},
		{
			"Hello",
			[]tok{{TokenUnquotedLiteral, "Hello"}},
		},
		{
			"http.request.body.content: null pointer",
			[]tok{
				{TokenUnquotedLiteral, "http.request.body.content"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "null"},
				{TokenUnquotedLiteral, "pointer"},
			},
		},
		{
			`http.request.body.content: "null pointer"`,
			[]tok{
				{TokenUnquotedLiteral, "http.request.body.content"},
				{TokenColon, ""},
				{TokenQuotedLiteral, "null pointer"},
			},
		},
		{
			`http.request.referrer: "https://example.com"`,
			[]tok{
				{TokenUnquotedLiteral, "http.request.referrer"},
				{TokenColon, ""},
				{TokenQuotedLiteral, "https://example.com"},
			},
		},
		{
			`http.request.referrer: https\://example.com`,
			[]tok{
				{TokenUnquotedLiteral, "http.request.referrer"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "https://example.com"},
			},
		},
		{
			"http.response.bytes < 10000",
			[]tok{
				{TokenUnquotedLiteral, "http.response.bytes"},
				{TokenLt, ""},
				{TokenUnquotedLiteral, "10000"},
			},
		},
		{
			"http.response.bytes > 10000 and http.response.bytes <= 20000",
			[]tok{
				{TokenUnquotedLiteral, "http.response.bytes"},
				{TokenGt, ""},
				{TokenUnquotedLiteral, "10000"},
				{TokenAnd, ""},
				{TokenUnquotedLiteral, "http.response.bytes"},
				{TokenLte, ""},
				{TokenUnquotedLiteral, "20000"},
			},
		},
		{
			"@timestamp < now-2w",
			[]tok{
				{TokenUnquotedLiteral, "@timestamp"},
				{TokenLt, ""},
				{TokenUnquotedLiteral, "now-2w"},
			},
		},
		{
			"http.response.status_code: 4*",
			[]tok{
				{TokenUnquotedLiteral, "http.response.status_code"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "4*"},
			},
		},
		{
			"NOT http.request.method: GET",
			[]tok{
				{TokenNot, ""},
				{TokenUnquotedLiteral, "http.request.method"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "GET"},
			},
		},
		{
			"http.request.method: GET OR http.response.status_code: 400",
			[]tok{
				{TokenUnquotedLiteral, "http.request.method"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "GET"},
				{TokenOr, ""},
				{TokenUnquotedLiteral, "http.response.status_code"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "400"},
			},
		},
		{
			"(a: GET AND b: 200) OR\n(a: POST AND b: 400)",
			[]tok{
				{TokenLpar, ""},
				{TokenUnquotedLiteral, "a"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "GET"},
				{TokenAnd, ""},
				{TokenUnquotedLiteral, "b"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "200"},
				{TokenRpar, ""},
				{TokenOr, ""},
				{TokenLpar, ""},
				{TokenUnquotedLiteral, "a"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "POST"},
				{TokenAnd, ""},
				{TokenUnquotedLiteral, "b"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "400"},
				{TokenRpar, ""},
			},
		},
		{
			"http.request.method: (GET OR POST OR DELETE)",
			[]tok{
				{TokenUnquotedLiteral, "http.request.method"},
				{TokenColon, ""},
				{TokenLpar, ""},
				{TokenUnquotedLiteral, "GET"},
				{TokenOr, ""},
				{TokenUnquotedLiteral, "POST"},
				{TokenOr, ""},
				{TokenUnquotedLiteral, "DELETE"},
				{TokenRpar, ""},
			},
		},
		{
			"datastream.*: logs",
			[]tok{
				{TokenUnquotedLiteral, "datastream.*"},
				{TokenColon, ""},
				{TokenUnquotedLiteral, "logs"},
			},
		},
		{
			`user:{ first: "Alice" and last: "White" }`,
			[]tok{
				{TokenUnquotedLiteral, "user"},
				{TokenColon, ""},
				{TokenLbrace, ""},
				{TokenUnquotedLiteral, "first"},
				{TokenColon, ""},
				{TokenQuotedLiteral, "Alice"},
				{TokenAnd, ""},
				{TokenUnquotedLiteral, "last"},
				{TokenColon, ""},
				{TokenQuotedLiteral, "White"},
				{TokenRbrace, ""},
			},
		},
		{
			`\or \and \not`,
			[]tok{
				{TokenUnquotedLiteral, "or"},
				{TokenUnquotedLiteral, "and"},
				{TokenUnquotedLiteral, "not"},
			},
		},
		{
			`a: "esc \" ok"`,
			[]tok{
				{TokenUnquotedLiteral, "a"},
				{TokenColon, ""},
				{TokenQuotedLiteral, `esc " ok`},
			},
		},
	}
	for _, tc := range tests {
		got := lexAll(t, tc.src)
		if len(got) != len(tc.want) {
			t.Errorf("%q: got %d tokens, want %d: %v", tc.src, len(got), len(tc.want), got)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%q: token %d = %v, want %v", tc.src, i, got[i], tc.want[i])
			}
		}
	}
}

func TestLexerInvalid(t *testing.T) {
	lex := NewLexer(`"` + strings.Repeat("the end is never ", 8))
	for {
		token, err := lex.Next()
		if err != nil {
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Fatalf("got %T, want *DecodeError", err)
			}
			if derr.Line != 1 || derr.Column != 1 {
				t.Fatalf("error at line %d column %d, want 1:1", derr.Line, derr.Column)
			}
			if !strings.HasSuffix(derr.Message, "...") {
				t.Fatalf("long input not truncated: %q", derr.Message)
			}
			return
		}
		if token.Type == TokenEnd {
			t.Fatal("unterminated quote lexed successfully")
		}
	}
}

func TestLexerPositions(t *testing.T) {
	lex := NewLexer("a:\n  b")
	want := []struct {
		line, column, offset int
	}{
		{1, 1, 0}, // a
		{1, 2, 1}, // :
		{2, 3, 5}, // b
		{2, 4, 6}, // END
	}
	for i, pos := range want {
		token, err := lex.Next()
		if err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
		if token.Line != pos.line || token.Column != pos.column || token.Offset != pos.offset {
			t.Errorf("token %d at %d:%d (offset %d), want %d:%d (offset %d)",
				i, token.Line, token.Column, token.Offset, pos.line, pos.column, pos.offset)
		}
	}
}
