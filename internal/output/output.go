// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output encodes extraction results and filters them with
// jq expressions.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

// Output formats.
const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat returns the [Format] matching a name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", JSON:
		return JSON, nil
	case YAML, "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType returns the HTTP content type of a format.
func (f Format) ContentType() string {
	if f == YAML {
		return "application/yaml; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Encode writes a value in the given format.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// MaxResults is the number of results a query may return.
const MaxResults = 100_000

// ErrTooManyResults is returned when a query yields more than
// [MaxResults] values.
var ErrTooManyResults = errors.New("too many query results")

// Query is a compiled jq expression.
type Query struct {
	src  string
	code *gojq.Code
}

// NewQuery compiles a jq expression.
func NewQuery(src string) (*Query, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	return &Query{src: src, code: code}, nil
}

func (q *Query) String() string {
	return q.src
}

// Run applies the query to a value and returns every result. The value
// is first converted to plain JSON values. The query stops when ctx is
// done.
func (q *Query) Run(ctx context.Context, v any) ([]any, error) {
	input, err := plain(v)
	if err != nil {
		return nil, err
	}

	res := []any{}
	iter := q.code.RunWithContext(ctx, input)
	for {
		x, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := x.(error); ok {
			var herr *gojq.HaltError
			if errors.As(err, &herr) && herr.Value() == nil {
				break
			}
			return nil, err
		}
		if len(res) == MaxResults {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyResults, MaxResults)
		}
		res = append(res, x)
	}
	return res, nil
}

// plain converts a value to the generic types produced by JSON decoding.
func plain(v any) (any, error) {
	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(v); err != nil {
		return nil, err
	}

	var res any
	dec := json.NewDecoder(b)
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return normalizeNumbers(res), nil
}

// normalizeNumbers converts the [json.Number] values to int or float64,
// the only numeric types gojq handles.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, x := range v {
			v[k] = normalizeNumbers(x)
		}
	case []any:
		for i, x := range v {
			v[i] = normalizeNumbers(x)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		f, _ := v.Float64()
		return f
	}
	return v
}
