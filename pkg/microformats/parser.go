// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package microformats extracts microformats from HTML documents.
//
// The extraction is driven by a [schema.Catalog] that declares the
// formats and their properties. A [Parser] finds the elements carrying a
// format class (or, for elemental formats, a link relation), then resolves
// every declared property on each of them: nested formats, polymorphic
// "couldbe" formats, value-class-pattern text and fragmented date and
// time values.
//
//	p := microformats.New(schema.Default(), microformats.WithStrict())
//	cards, err := p.ParseFormat("vcard", doc)
package microformats

import (
	"log/slog"

	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

// DefaultMaxDepth is the default nesting limit of format resolutions.
const DefaultMaxDepth = 64

// LineFunc returns the source line of a node, or 0.
type LineFunc func(*html.Node) int

// Parser is an extraction session. It holds the error log of every
// extraction it runs and must not be used concurrently.
type Parser struct {
	catalog    *schema.Catalog
	strict     bool
	collect    bool
	looseDates bool
	maxDepth   int
	logger     *slog.Logger
	lineFunc   LineFunc

	errors ErrorList
	exprs  map[string]*xpath.Expr
	active map[activeKey]bool
	depth  int
}

type activeKey struct {
	node   *html.Node
	format string
}

// New returns a new [Parser] using the given catalog.
func New(catalog *schema.Catalog, options ...func(p *Parser)) *Parser {
	p := &Parser{
		catalog:  catalog,
		maxDepth: DefaultMaxDepth,
		errors:   ErrorList{},
		exprs:    map[string]*xpath.Expr{},
		active:   map[activeKey]bool{},
	}

	for _, fn := range options {
		if fn != nil {
			fn(p)
		}
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// WithStrict enables the strict mode. Mandatory properties, allowed
// values, required title and alt attributes and datetime fragments are
// checked, and any failure is an error.
func WithStrict() func(p *Parser) {
	return func(p *Parser) {
		p.strict = true
	}
}

// WithCollectErrors makes the strict mode collect its errors in
// [Parser.Errors] and carry on instead of stopping on the first one.
func WithCollectErrors() func(p *Parser) {
	return func(p *Parser) {
		p.collect = true
	}
}

// WithLooseDates lets the lenient mode read dates in any format
// understood by dateparse when a value is not an ISO 8601 date.
func WithLooseDates() func(p *Parser) {
	return func(p *Parser) {
		p.looseDates = true
	}
}

// WithMaxDepth sets the nesting limit of format resolutions.
func WithMaxDepth(depth int) func(p *Parser) {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// WithLogger sets the parser logger.
func WithLogger(logger *slog.Logger) func(p *Parser) {
	return func(p *Parser) {
		p.logger = logger
	}
}

// WithLineFunc sets the function giving the source line of nodes.
func WithLineFunc(fn LineFunc) func(p *Parser) {
	return func(p *Parser) {
		p.lineFunc = fn
	}
}

// Catalog returns the parser's catalog.
func (p *Parser) Catalog() *schema.Catalog {
	return p.catalog
}

// Errors returns the errors collected in strict mode
// with [WithCollectErrors].
func (p *Parser) Errors() ErrorList {
	return p.errors
}

// ParseFormat returns the records of a format found in root.
func (p *Parser) ParseFormat(name string, root *html.Node) ([]*Record, error) {
	f, ok := p.catalog.Get(name)
	if !ok {
		return nil, newError(ErrUnknownFormat, 0, "%q", name)
	}
	return p.parseFormat(f, root)
}

// Parse returns the records of every catalog format found in root,
// in catalog order. Formats without any record are left out.
func (p *Parser) Parse(root *html.Node) ([]Item, error) {
	res := []Item{}
	for _, f := range p.catalog.Formats() {
		records, err := p.parseFormat(f, root)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			res = append(res, Item{Format: f.Name, Records: records})
		}
	}
	return res, nil
}

func (p *Parser) parseFormat(f *schema.Format, root *html.Node) ([]*Record, error) {
	if f.Kind == schema.Elemental {
		return p.parseElemental(f, root)
	}

	nodes, err := p.selectNodes(root, schema.DefaultAttribute, f.Name)
	if err != nil {
		return nil, err
	}

	res := make([]*Record, 0, len(nodes))
	for _, n := range nodes {
		r, err := p.resolve(n, f)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func (p *Parser) parseElemental(f *schema.Format, root *html.Node) ([]*Record, error) {
	res := []*Record{}
	for _, v := range f.Variants {
		nodes, err := p.selectNodes(root, v.Attribute, v.Value)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			r := NewRecord(f.Name, p.line(n))
			r.Set("value", Scalar(v.Value))
			r.Set("href", Scalar(attr(n, "href")))
			r.Set("text", Scalar(textContent(n)))
			res = append(res, r)
		}
	}
	return res, nil
}

// report handles an error in strict mode. The error is returned unless
// the parser collects its errors.
func (p *Parser) report(err error) error {
	if !p.collect {
		return err
	}
	p.logger.Debug("extraction error", slog.Any("err", err))
	p.errors = append(p.errors, err)
	return nil
}

func (p *Parser) line(n *html.Node) int {
	if p.lineFunc == nil || n == nil {
		return 0
	}
	return p.lineFunc(n)
}
