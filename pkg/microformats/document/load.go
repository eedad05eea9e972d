// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the maximum size of a loaded document.
const MaxSize = 32 << 20

var (
	// ErrNotHTML is returned when a loaded resource is not an HTML
	// (or at least text) document.
	ErrNotHTML = errors.New("not an HTML document")

	// ErrTooLarge is returned when a loaded resource exceeds [MaxSize].
	ErrTooLarge = errors.New("document too large")
)

// acceptedTypes are the content types a document may have. Any type
// inheriting from one of them is accepted.
var acceptedTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"text/xml",
	"text/plain",
}

// IsURL reports whether a source is an http or https URL.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Load reads and parses a document from a file, or from an http(s) URL
// using the given client. "-" reads the standard input.
func Load(ctx context.Context, client *http.Client, src string) (*Document, error) {
	var data []byte
	var contentType string
	var err error

	switch {
	case src == "-":
		data, err = readAll(os.Stdin)
	case IsURL(src):
		data, contentType, err = fetch(ctx, client, src)
	default:
		var fp *os.File
		if fp, err = os.Open(src); err != nil {
			return nil, err
		}
		defer fp.Close() //nolint:errcheck
		data, err = readAll(fp)
	}
	if err != nil {
		return nil, err
	}

	return parseData(data, contentType, src)
}

// Read reads and parses a document after checking its type.
func Read(r io.Reader, contentType string) (*Document, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	return parseData(data, contentType, "")
}

func parseData(data []byte, contentType, src string) (*Document, error) {
	mtype := mimetype.Detect(data)
	if !accepted(mtype) {
		return nil, fmt.Errorf("%w (%s)", ErrNotHTML, mtype.String())
	}
	if contentType == "" {
		contentType = mtype.String()
	}

	d, err := Parse(bytes.NewReader(data), contentType)
	if err != nil {
		return nil, err
	}
	d.Source = src
	return d, nil
}

func accepted(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		for _, t := range acceptedTypes {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

func fetch(ctx context.Context, client *http.Client, src string) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}

	rsp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer rsp.Body.Close() //nolint:errcheck

	if rsp.StatusCode/100 != 2 {
		return nil, "", fmt.Errorf("%s: invalid status code (%d)", src, rsp.StatusCode)
	}

	data, err := readAll(rsp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, rsp.Header.Get("Content-Type"), nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
