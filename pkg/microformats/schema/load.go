// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package schema

import (
	"bytes"
	_ "embed" // mf.xml
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/komkom/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownEncoding is returned when a catalog file encoding is not supported.
var ErrUnknownEncoding = errors.New("unknown catalog encoding")

// Catalog file encodings.
const (
	EncodingXML  = "xml"
	EncodingYAML = "yaml"
	EncodingJSON = "json"
	EncodingTOML = "toml"
)

//go:embed mf.xml
var defaultSchema []byte

// Default returns the embedded default catalog.
var Default = sync.OnceValue(func() *Catalog {
	c, err := Parse(bytes.NewReader(defaultSchema), EncodingXML)
	if err != nil {
		panic(err)
	}
	return c
})

// Parse reads a catalog from r, using the given encoding.
func Parse(r io.Reader, encoding string) (*Catalog, error) {
	var d definition
	var err error

	switch encoding {
	case EncodingXML:
		d, err = decodeXML(r)
	case EncodingYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&d)
	case EncodingJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&d)
	case EncodingTOML:
		dec := json.NewDecoder(toml.New(r))
		dec.DisallowUnknownFields()
		err = dec.Decode(&d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	return d.catalog()
}

// Load reads a catalog file. The encoding is given by the file
// extension (.xml, .yaml, .yml, .json or .toml).
func Load(name string) (*Catalog, error) {
	encoding, err := EncodingOf(name)
	if err != nil {
		return nil, err
	}

	fp, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fp.Close() //nolint:errcheck

	c, err := Parse(fp, encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// EncodingOf returns the catalog encoding of a file name.
func EncodingOf(name string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xml":
		return EncodingXML, nil
	case ".yaml", ".yml":
		return EncodingYAML, nil
	case ".json":
		return EncodingJSON, nil
	case ".toml":
		return EncodingTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, ext)
	}
}
