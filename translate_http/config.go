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
	"fmt"

	"github.com/kueryql/kuery/kql"
)

// Config holds the per-tenant settings of the translation service.
// The on-disk file is YAML; field names follow the JSON tags. The zero
// value is a working configuration: no authentication, leading
// wildcards allowed, conjunctions in the filter clause.
type Config struct {
	Auth struct {
		User     string `json:"user,omitempty"`
		Password string `json:"password,omitempty"`
	} `json:"auth,omitempty"`
	Translate struct {
		// StrictWildcards rejects values with a leading '*'.
		StrictWildcards bool `json:"strictWildcards,omitempty"`
		// FiltersInMustClause places conjunctions in the boolean
		// 'must' clause instead of 'filter'.
		FiltersInMustClause bool `json:"filtersInMustClause,omitempty"`
		// Pretty indents translated documents.
		Pretty bool `json:"pretty,omitempty"`
	} `json:"translate,omitempty"`

	// CacheExpiration is the lifetime, in seconds, of cached
	// translations. 0 selects the daemon default.
	CacheExpiration int `json:"cacheExpiration,omitempty"`
}

func (c *Config) Validate() error {
	if c.CacheExpiration < 0 {
		return fmt.Errorf("field 'cacheExpiration': cannot be negative")
	}
	return nil
}

// Parser returns a KQL parser configured for this tenant.
func (c *Config) Parser() *kql.Parser {
	return &kql.Parser{
		AllowLeadingWildcards: !c.Translate.StrictWildcards,
		FiltersInMustClause:   c.Translate.FiltersInMustClause,
	}
}

// Renderer returns a KQL renderer configured for this tenant.
func (c *Config) Renderer() *kql.Renderer {
	return &kql.Renderer{
		FiltersInMustClause: c.Translate.FiltersInMustClause,
	}
}

// NeedsAuthentication reports whether requests must carry basic auth
// credentials.
func (c *Config) NeedsAuthentication() bool {
	return c.Auth.User != "" || c.Auth.Password != ""
}

func (c *Config) Authenticate(username, password string) bool {
	return username == c.Auth.User && password == c.Auth.Password
}
