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

// Package translate_http is the HTTP front-end of the KQL/ES-JSON
// translator: per-tenant configuration, the translation endpoints and
// an optional memcache-backed cache of translation results.
package translate_http

import (
	"fmt"
	"log"
	"net/http"

	"github.com/bradfitz/gomemcache/memcache"
)

// HandlerContext is all data required to process an HTTP request.
type HandlerContext struct {
	Request *http.Request
	Writer  http.ResponseWriter
	Config  *Config
	Logging *Logging
	Cache   TranslationCache

	// function performing verbose logging
	VerboseLog func(string, ...any)

	// Flag indicating we're using verbose logging;
	// provided in case some logging activities might
	// cost more than a single VerboseLog call.
	Verbose bool

	Memcache struct {
		// Optional memcache client
		Client *memcache.Client
		// The ID used to distinguish translator instances
		TenantID string
		// A string used to create a crypto key
		Secret string
		// Item expiration timeout
		ExpirationTime int
	}
}

var dummyCache DummyCache

// NewHandlerContext creates a new context for the handled request.
func NewHandlerContext(config *Config, w http.ResponseWriter, r *http.Request, verbose bool, verboseLog func(format string, v ...any)) *HandlerContext {
	return &HandlerContext{
		Config:     config,
		Logging:    newLogging(r),
		Request:    r,
		Writer:     w,
		Cache:      dummyCache,
		Verbose:    verbose,
		VerboseLog: verboseLog,
	}
}

// EnableCache switches the context from the dummy cache to the
// memcache-backed one, when a memcache client is configured.
func (c *HandlerContext) EnableCache() {
	if c.Memcache.Client != nil && c.Cache == dummyCache {
		expiration := c.Memcache.ExpirationTime
		if c.Config.CacheExpiration != 0 {
			expiration = c.Config.CacheExpiration
		}
		c.Cache = NewMemcacheTranslationCache(
			c.Memcache.Client,
			c.Memcache.TenantID,
			c.Memcache.Secret,
			expiration)
	}
}

func (c *HandlerContext) AddHeader(k, v string) {
	c.Writer.Header().Add(k, v)
}

func (c *HandlerContext) Error(status int, s string, args ...any) {
	msg := fmt.Sprintf(s, args...)
	c.Logging.HttpStatusCode = status
	http.Error(c.Writer, msg, status)
	r := c.Request
	log.Printf("%s %v[%s]: %s", r.Method, r.URL, r.RemoteAddr, msg)
}

func (c *HandlerContext) InternalServerError(s string, args ...any) {
	c.Error(http.StatusInternalServerError, s, args...)
}

func (c *HandlerContext) BadRequest(s string, args ...any) {
	c.Error(http.StatusBadRequest, s, args...)
}

// CheckAuth enforces the tenant's basic auth settings, writing the
// challenge response itself when credentials are missing or wrong.
func (c *HandlerContext) CheckAuth() bool {
	if !c.Config.NeedsAuthentication() {
		return true
	}
	user, password, ok := c.Request.BasicAuth()
	if !ok || !c.Config.Authenticate(user, password) {
		c.Writer.Header().Add("WWW-Authenticate", `Basic realm="kuery"`)
		c.Error(http.StatusUnauthorized, "authentication required")
		return false
	}
	return true
}
