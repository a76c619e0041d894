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
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealedEntry is the encrypted form a translation takes before it
// leaves for memcached.
type sealedEntry struct {
	Nonce   []byte `json:"nonce"`
	Payload []byte `json:"payload"`
}

// seal encrypts plaintext with a key derived from the tenant secret.
func seal(plaintext, secret []byte) (*sealedEntry, error) {
	aead, err := entryAEAD(secret)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return &sealedEntry{
		Nonce:   nonce,
		Payload: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// open decrypts the entry in place and returns the plaintext.
func (e *sealedEntry) open(secret []byte) ([]byte, error) {
	aead, err := entryAEAD(secret)
	if err != nil {
		return nil, err
	}
	if len(e.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("sealed entry: invalid nonce size %d", len(e.Nonce))
	}
	return aead.Open(e.Payload[:0], e.Nonce, e.Payload, nil)
}

// entryAEAD builds the XChaCha20-Poly1305 AEAD for a tenant secret.
// The key is an hkdf expansion of the secret, so the secret itself is
// never used as key material.
func entryAEAD(secret []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, nil, nil), key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
