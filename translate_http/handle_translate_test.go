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

package translate_http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

func newTestContext(t *testing.T, config *Config, method, target, body string) (*HandlerContext, *httptest.ResponseRecorder) {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	return NewHandlerContext(config, w, r, false, func(string, ...any) {}), w
}

func assertJSONEqual(t *testing.T, got, want []byte) {
	t.Helper()
	var gotMap, wantMap map[string]any
	if err := json.Unmarshal(got, &gotMap); err != nil {
		t.Fatalf("response is not a JSON object: %v\n%s", err, got)
	}
	if err := json.Unmarshal(want, &wantMap); err != nil {
		t.Fatal(err)
	}
	diff := gojsondiff.New().CompareObjects(wantMap, gotMap)
	if !diff.Modified() {
		return
	}
	text, _ := formatter.NewAsciiFormatter(wantMap, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	}).Format(diff)
	t.Errorf("unexpected response:\n%s", text)
}

func TestTranslateKQL(t *testing.T) {
	tests := []struct {
		kql  string
		want string
	}{
		{
			"http.request.method: GET",
			`{"match":{"http.request.method":"GET"}}`,
		},
		{
			"a: b and c: d",
			`{"bool":{"filter":[{"match":{"a":"b"}},{"match":{"c":"d"}}]}}`,
		},
		{
			`user:{ first: "Alice" }`,
			`{"nested":{"path":"user","query":{"match_phrase":{"user.first":"Alice"}},"score_mode":"none"}}`,
		},
	}
	for _, tc := range tests {
		body, _ := json.Marshal(translateRequest{Query: tc.kql})
		c, w := newTestContext(t, &Config{}, http.MethodPost, "/translate/kql", string(body))
		if !TranslateKQL(c) {
			t.Fatalf("%q: request not handled", tc.kql)
		}
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status %d: %s", tc.kql, w.Code, w.Body.String())
		}
		assertJSONEqual(t, w.Body.Bytes(), []byte(tc.want))
	}
}

func TestTranslateKQLMustClause(t *testing.T) {
	config := &Config{}
	config.Translate.FiltersInMustClause = true

	c, w := newTestContext(t, config, http.MethodPost, "/translate/kql", `{"query": "a: b and c: d"}`)
	TranslateKQL(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	assertJSONEqual(t, w.Body.Bytes(),
		[]byte(`{"bool":{"must":[{"match":{"a":"b"}},{"match":{"c":"d"}}]}}`))
}

func TestTranslateKQLErrors(t *testing.T) {
	tests := []struct {
		name   string
		config func(c *Config)
		body   string
	}{
		{"syntax error", nil, `{"query": "hello:"}`},
		{"empty body", nil, ``},
		{"not json", nil, `hello`},
		{
			"leading wildcard",
			func(c *Config) { c.Translate.StrictWildcards = true },
			`{"query": "*hello"}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := &Config{}
			if tc.config != nil {
				tc.config(config)
			}
			c, w := newTestContext(t, config, http.MethodPost, "/translate/kql", tc.body)
			TranslateKQL(c)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestTranslateES(t *testing.T) {
	tests := []struct {
		doc  string
		want string
	}{
		{
			`{"match":{"http.request.method":"GET"}}`,
			"http.request.method: GET",
		},
		{
			`{"bool":{"filter":[{"match":{"a":"b"}},{"match":{"c":"d"}}]}}`,
			"a: b and c: d",
		},
		{
			`{"range":{"year":{"gte":2000,"lt":2021}}}`,
			"year >= 2000 and year < 2021",
		},
	}
	for _, tc := range tests {
		c, w := newTestContext(t, &Config{}, http.MethodPost, "/translate/es", tc.doc)
		if !TranslateES(c) {
			t.Fatalf("%s: request not handled", tc.doc)
		}
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", tc.doc, w.Code, w.Body.String())
		}
		var resp renderResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Query != tc.want {
			t.Errorf("%s: got %q, want %q", tc.doc, resp.Query, tc.want)
		}
	}
}

func TestTranslateESErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a query", `{"first_key":"wow","second_key":"wow"}`},
		{"no KQL form", `{"multi_match":{"query":"a b"}}`},
		{"empty body", ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newTestContext(t, &Config{}, http.MethodPost, "/translate/es", tc.doc)
			TranslateES(c)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestTranslateAuth(t *testing.T) {
	config := &Config{}
	config.Auth.User = "kuery"
	config.Auth.Password = "hunter2"

	c, w := newTestContext(t, config, http.MethodPost, "/translate/kql", `{"query": "a: b"}`)
	TranslateKQL(c)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want %d", w.Code, http.StatusUnauthorized)
	}

	c, w = newTestContext(t, config, http.MethodPost, "/translate/kql", `{"query": "a: b"}`)
	c.Request.SetBasicAuth("kuery", "hunter2")
	TranslateKQL(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestVersionHandler(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	VersionHandler(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["version"] != Version {
		t.Fatalf("version = %q, want %q", resp["version"], Version)
	}
}
