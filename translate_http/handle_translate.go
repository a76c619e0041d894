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
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kueryql/kuery/kql"
	"github.com/kueryql/kuery/query"
)

// request/response body limit; KQL expressions are small
const maxBodySize = 1 << 20

type translateRequest struct {
	Query string `json:"query"`
}

type renderResponse struct {
	Query string `json:"query"`
}

// TranslateKQL handles POST /translate/kql: a KQL expression in,
// the equivalent ES query document out.
func TranslateKQL(c *HandlerContext) bool {
	if !c.CheckAuth() {
		return true
	}

	req, ok := readTranslateRequest(c)
	if !ok {
		return true
	}
	c.Logging.KQL = req.Query
	c.EnableCache()

	cacheKey := fmt.Sprintf("kql:%t:%t:%s",
		c.Config.Translate.StrictWildcards,
		c.Config.Translate.FiltersInMustClause,
		req.Query)
	if cached := fetchCached(c, cacheKey); cached != nil {
		writeDocument(c, cached)
		return true
	}

	q, err := c.Config.Parser().Parse(req.Query)
	if err != nil {
		var derr *kql.DecodeError
		switch {
		case errors.Is(err, kql.ErrLeadingWildcards):
			c.BadRequest("cannot translate query: %v", err)
		case errors.As(err, &derr):
			c.BadRequest("cannot translate query: %v", err)
		default:
			c.InternalServerError("cannot translate query: %v", err)
		}
		return true
	}

	doc := q.Encode()
	c.Logging.Document = doc
	var buf []byte
	if c.Config.Translate.Pretty {
		buf, err = json.MarshalIndent(doc, "", "  ")
	} else {
		buf, err = json.Marshal(doc)
	}
	if err != nil {
		c.InternalServerError("cannot encode document: %v", err)
		return true
	}

	storeCached(c, cacheKey, buf)
	writeDocument(c, buf)
	return true
}

// TranslateES handles POST /translate/es: an ES query document in,
// the equivalent KQL expression out.
func TranslateES(c *HandlerContext) bool {
	if !c.CheckAuth() {
		return true
	}

	body, ok := readBody(c)
	if !ok {
		return true
	}
	c.EnableCache()

	cacheKey := fmt.Sprintf("es:%t:%s",
		c.Config.Translate.FiltersInMustClause,
		body)
	if cached := fetchCached(c, cacheKey); cached != nil {
		writeDocument(c, cached)
		return true
	}

	q, err := query.Unmarshal(body)
	if err != nil {
		c.BadRequest("cannot parse query document: %v", err)
		return true
	}
	c.Logging.Document = q.Encode()

	text, err := c.Config.Renderer().Render(q)
	if err != nil {
		var rerr *kql.RenderError
		if errors.As(err, &rerr) {
			c.BadRequest("%v", err)
		} else {
			c.InternalServerError("%v", err)
		}
		return true
	}
	c.Logging.KQL = text

	buf, err := json.Marshal(renderResponse{Query: text})
	if err != nil {
		c.InternalServerError("cannot encode response: %v", err)
		return true
	}

	storeCached(c, cacheKey, buf)
	writeDocument(c, buf)
	return true
}

func readBody(c *HandlerContext) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.BadRequest("cannot read request body: %v", err)
		return nil, false
	}
	if len(body) == 0 {
		c.BadRequest("empty request body")
		return nil, false
	}
	return body, true
}

func readTranslateRequest(c *HandlerContext) (*translateRequest, bool) {
	body, ok := readBody(c)
	if !ok {
		return nil, false
	}
	req := &translateRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		c.BadRequest("cannot parse request body: %v", err)
		return nil, false
	}
	return req, true
}

func fetchCached(c *HandlerContext, key string) []byte {
	cached, err := c.Cache.Fetch(key)
	if err != nil {
		c.VerboseLog("cache fetch failed: %v", err)
		return nil
	}
	if cached != nil {
		c.Logging.CacheHit = true
	}
	return cached
}

func storeCached(c *HandlerContext, key string, output []byte) {
	if err := c.Cache.Store(key, output); err != nil {
		c.VerboseLog("cache store failed: %v", err)
	}
}

func writeDocument(c *HandlerContext, buf []byte) {
	c.Logging.HttpStatusCode = http.StatusOK
	c.Logging.Duration = time.Since(c.Logging.Start)
	c.AddHeader("Content-Type", "application/json; charset=UTF-8")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Write(buf)
}
