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
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/klauspost/compress/zstd"
)

// TranslationCache caches translation results.
//
// Key is the source text plus the translation options that influenced
// the result.
type TranslationCache interface {
	// Store saves the translated output for the given source key.
	Store(key string, output []byte) error

	// Fetch loads the translated output for the given source key.
	// It returns nil, nil if no entry was found.
	Fetch(key string) ([]byte, error)
}

// DummyCache is a TranslationCache that does not support storing
// and always fetches nothing.
type DummyCache struct{}

func (d DummyCache) Store(key string, output []byte) error {
	return nil
}

func (d DummyCache) Fetch(key string) ([]byte, error) {
	return nil, nil
}

// MemcacheTranslationCache is a TranslationCache backed by memcached.
// Entries are zstd-compressed and encrypted, so a shared memcached
// instance never holds tenant queries in the clear.
type MemcacheTranslationCache struct {
	client            *memcache.Client
	tenantID          string
	secret            []byte // input entropy for key creation
	defaultExpiration int32  // default expiration time; see memcache.Item.Expiration
}

// NewMemcacheTranslationCache creates a new MemcacheTranslationCache
// instance.
func NewMemcacheTranslationCache(client *memcache.Client, tenantID string, secret string, defaultExpiration int) *MemcacheTranslationCache {
	return &MemcacheTranslationCache{
		client:            client,
		tenantID:          tenantID,
		secret:            []byte(secret),
		defaultExpiration: int32(defaultExpiration),
	}
}

// key calculates value for use as memcache.Item.Key
func (m *MemcacheTranslationCache) key(src string) string {
	strid := fmt.Sprintf("%s:%s", m.tenantID, src)
	hash := sha512.Sum512([]byte(strid))
	return fmt.Sprintf("kuery:translation:%x", hash)
}

func (m *MemcacheTranslationCache) Store(key string, output []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(output, nil)
	enc.Close()

	entry, err := seal(compressed, m.secret)
	if err != nil {
		return err
	}

	serialized, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	item := &memcache.Item{
		Key:        m.key(key),
		Value:      serialized,
		Expiration: m.defaultExpiration,
	}

	return m.client.Set(item)
}

func (m *MemcacheTranslationCache) Fetch(key string) ([]byte, error) {
	v, err := m.client.Get(m.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, nil
		}

		return nil, err
	}

	entry := new(sealedEntry)
	err = json.Unmarshal(v.Value, entry)
	if err != nil {
		return nil, err
	}

	compressed, err := entry.open(m.secret)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
