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

// Command kueryd serves the KQL/ES-JSON translation endpoints over
// HTTP, with per-tenant configuration selected by the Host header.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path"
	"sync"
	"time"

	"github.com/kueryql/kuery/translate_http"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/acme/autocert"
	"sigs.k8s.io/yaml"
)

type config struct {
	translate_http.Config
	LogFolder string `json:"logFolder,omitempty"`

	syncMutex        sync.Mutex
	lastTimestamp    string
	timestampCounter int
}

func (c *config) baseName(t time.Time) string {
	c.syncMutex.Lock()
	defer c.syncMutex.Unlock()

	timestamp := t.Format("20060102-1504")
	if timestamp != c.lastTimestamp {
		c.timestampCounter = 0
		c.lastTimestamp = timestamp
	}
	name := fmt.Sprintf("%s-%03d", timestamp, c.timestampCounter)
	c.timestampCounter++
	return name
}

type tenantConfig map[string]*config

var (
	verbose    bool = false
	verboseLog      = func(format string, v ...any) {}
)

const (
	memcacheItemTimeout = 60 * 60
)

func main() {
	ver, ok := Version()
	if ok {
		translate_http.Version = ver
	}

	useTLS := flag.Bool("tls", false, "Enable TLS (automatically gets TLS certificates)")
	configFile := flag.String("config", "config.yaml", "Configuration file")
	endpoint := flag.String("endpoint", "localhost:8888", "Default endpoint (only for non-TLS mode)")
	memcacheEndpoint := flag.String("memcache", "", "Optional memcache address")
	verboseFlag := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if *verboseFlag {
		verboseLog = log.Printf
		verbose = true
	}

	tenants, err := loadTenantConfiguration(*configFile)
	if err != nil {
		log.Fatalf("can't load %q: %v", *configFile, err)
	}

	var memcacheClient *memcache.Client
	if *memcacheEndpoint != "" {
		memcacheClient = memcache.New(*memcacheEndpoint)
	}

	withTenantConfig := func(f func(c *translate_http.HandlerContext) bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Host
			t, ok := tenants[r.Host]
			if !ok {
				if t, ok = tenants["*"]; !ok {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				tenantID = "*"
			}

			c := translate_http.NewHandlerContext(&t.Config, w, r, verbose, verboseLog)
			c.Logging.TenantID = tenantID
			if memcacheClient != nil {
				c.Memcache.Client = memcacheClient
				c.Memcache.TenantID = tenantID
				c.Memcache.Secret = tenantID
				c.Memcache.ExpirationTime = memcacheItemTimeout
			}

			handled := f(c)
			if !handled {
				w.WriteHeader(http.StatusNotFound)
			} else if t.LogFolder != "" {
				baseName := path.Join(t.LogFolder, t.baseName(c.Logging.Start))
				writeIndentedJSON(baseName+"-request.json", c.Logging)
			}
		}
	}

	r := mux.NewRouter()
	r.HandleFunc("/version", translate_http.VersionHandler).Methods(http.MethodGet)
	r.HandleFunc("/translate/kql", withTenantConfig(translate_http.TranslateKQL)).Methods(http.MethodPost)
	r.HandleFunc("/translate/es", withTenantConfig(translate_http.TranslateES)).Methods(http.MethodPost)
	r.PathPrefix("/").Handler(http.HandlerFunc(withTenantConfig(func(c *translate_http.HandlerContext) bool {
		return false
	})))

	var l net.Listener
	if *useTLS {
		var hosts []string
		for host := range tenants {
			if host == "*" {
				log.Fatal("cannot use host '*' in TLS mode")
			}
			hosts = append(hosts, host)
			verboseLog("listening on https://%s", host)
		}
		certManager := autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(hosts...),
			Cache:      autocert.DirCache("certs"),
		}
		l = certManager.Listener()
	} else {
		verboseLog("listening on http://%s", *endpoint)
		l, err = net.Listen("tcp", *endpoint)
		if err != nil {
			log.Fatalf("can't listen on %q: %v", *endpoint, err)
		}
	}

	err = http.Serve(l, &handler{r})
	if err != nil {
		log.Fatal(err)
	}
}

type handler struct {
	http.Handler
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if verbose {
		start := time.Now()
		ww := loggingResponseWriter{ResponseWriter: w}
		defer func() {
			duration := time.Since(start).Milliseconds()
			log.Printf("%s %s (remote: %s, result: %d, took: %dms)", r.Method, r.Host+r.URL.Path, r.RemoteAddr, ww.statusCode, duration)
		}()
		w = &ww
	}
	h.Handler.ServeHTTP(w, r)
}

func loadTenantConfiguration(path string) (tenantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tenants tenantConfig
	err = yaml.Unmarshal(data, &tenants)
	if err != nil {
		return nil, err
	}

	for host, t := range tenants {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tenant %q: %w", host, err)
		}

		if t.LogFolder != "" {
			err := os.MkdirAll(t.LogFolder, 0755)
			if err != nil {
				log.Printf("Unable to create folder %q (logs may be missing)", t.LogFolder)
			}
		}
	}

	return tenants, nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func writeIndentedJSON(fileName string, v any) {
	w, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	defer w.Close()
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	e.Encode(v)
}
