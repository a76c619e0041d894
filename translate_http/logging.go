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
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logging collects the per-request record the daemon can write out
// when a log folder is configured.
type Logging struct {
	Revision       string         `json:"revision"`
	SourceIP       string         `json:"sourceIp"`
	TenantID       string         `json:"tenantId,omitempty"`
	RequestID      string         `json:"requestId"`
	Start          time.Time      `json:"start"`
	Duration       time.Duration  `json:"duration"`
	HttpStatusCode int            `json:"httpStatusCode"`
	KQL            string         `json:"kql,omitempty"`
	Document       map[string]any `json:"document,omitempty"`
	CacheHit       bool           `json:"cacheHit,omitempty"`
}

func newLogging(r *http.Request) *Logging {
	sourceIP := r.Header.Get("X-Forwarded-For")
	if sourceIP != "" {
		ips := strings.Split(sourceIP, ",")
		sourceIP = strings.TrimSpace(ips[0])
	} else {
		// only useful when there is no reverse proxy
		remoteAddr := r.RemoteAddr
		parts := strings.Split(remoteAddr, ":")
		sourceIP = parts[0]
	}

	return &Logging{
		Revision:  Version,
		SourceIP:  sourceIP,
		RequestID: uuid.New().String(),
		Start:     time.Now(),
	}
}
