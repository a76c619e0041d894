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

package query

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// DateLayout is the calendar-date form used when a time value is
// rendered into a document or into KQL text.
const DateLayout = "2006-01-02"

var ErrUnsupportedLiteralType = errors.New("unsupported literal type")

// Literal is a scalar query value.
type Literal struct {
	// string, bool, int64, float64 or time.Time
	Value any
}

func NewLiteral(v any) (Literal, error) {
	l := Literal{}
	if err := l.set(v); err != nil {
		return l, err
	}
	return l, nil
}

func (l *Literal) set(v any) error {
	switch v := v.(type) {
	case bool, string, float64, time.Time, int64:
		l.Value = v
	case int:
		l.Value = int64(v)
	case json.Number:
		// prefer int64 over float64
		if i, err := v.Int64(); err == nil {
			l.Value = i
			return nil
		}
		f, err := v.Float64()
		if err != nil {
			return err
		}
		l.Value = f
	default:
		return ErrUnsupportedLiteralType
	}
	return nil
}

// String returns the textual form of the literal, as it appears in a
// KQL expression before escaping. Times render as calendar dates.
func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(DateLayout)
	case string:
		return v
	default:
		panic("unsupported type in literal")
	}
}

// scalar returns the value as it appears in an encoded document.
func (l Literal) scalar() any {
	if t, ok := l.Value.(time.Time); ok {
		return t.Format(DateLayout)
	}
	return l.Value
}

func (l Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.scalar())
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	// we prefer int64 over float64, so we'll explicitly
	// unmarshal as an int64 before doing the generic
	// unmarshal that prefers float64 over int64.
	var vi int64
	if err := json.Unmarshal(data, &vi); err == nil {
		return l.set(vi)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return l.set(v)
}
