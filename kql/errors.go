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
	"fmt"
)

// ErrLeadingWildcards is reported when a value starts with a wildcard
// while the parser is configured to reject leading wildcards.
var ErrLeadingWildcards = errors.New("leading wildcards are forbidden")

// DecodeError reports input that cannot be tokenized, with the
// position at which decoding failed. Lines and columns count from 1,
// offsets from 0.
type DecodeError struct {
	Message string
	Line    int
	Column  int
	Offset  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// UnexpectedTokenError reports a syntactically valid token in a place
// the grammar does not allow it.
type UnexpectedTokenError struct {
	Token Token
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("unexpected token %s at line %d, column %d",
		e.Token.Type, e.Token.Line, e.Token.Column)
}

// Unwrap exposes the failure as a DecodeError at the token's position,
// since an unexpected token is one of the ways decoding fails.
func (e *UnexpectedTokenError) Unwrap() error {
	return &DecodeError{
		Message: fmt.Sprintf("unexpected token %s", e.Token.Type),
		Line:    e.Token.Line,
		Column:  e.Token.Column,
		Offset:  e.Token.Offset,
	}
}

// RenderError reports a query tree that cannot be expressed in KQL.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return "cannot render query as KQL: " + e.Message
}
