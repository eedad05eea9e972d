// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package extractor runs microformats extractions on documents loaded
// from files, URLs or request bodies. It is shared by the command line
// and the HTTP API.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"codeberg.org/microtron/microtron/internal/metrics"
	"codeberg.org/microtron/microtron/pkg/microformats"
	"codeberg.org/microtron/microtron/pkg/microformats/document"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

// Options are the settings of one extraction.
type Options struct {
	Strict        bool
	CollectErrors bool
	LooseDates    bool
	MaxDepth      int
	// Formats restricts the extraction to some formats. Every catalog
	// format is extracted when empty.
	Formats []string
}

// ErrorInfo describes an extraction error.
type ErrorInfo struct {
	Code    string `json:"code" yaml:"code"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// Result is the outcome of one document extraction.
type Result struct {
	Source string              `json:"source,omitempty" yaml:"source,omitempty"`
	Items  []microformats.Item `json:"items" yaml:"items"`
	Errors []ErrorInfo         `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Extractor loads documents and extracts their microformats.
// It is safe for concurrent use.
type Extractor struct {
	catalog *schema.Catalog
	client  *http.Client
	logger  *slog.Logger
}

// New returns an [Extractor] using a catalog and an HTTP client.
func New(catalog *schema.Catalog, client *http.Client, options ...func(e *Extractor)) *Extractor {
	e := &Extractor{
		catalog: catalog,
		client:  client,
	}
	for _, fn := range options {
		fn(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// WithLogger sets the extractor logger.
func WithLogger(logger *slog.Logger) func(e *Extractor) {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// Catalog returns the extractor's catalog.
func (e *Extractor) Catalog() *schema.Catalog {
	return e.catalog
}

// CheckFormats returns an error when a format is not in the catalog.
func (e *Extractor) CheckFormats(names ...string) error {
	errs := []error{}
	for _, name := range names {
		if _, ok := e.catalog.Get(name); !ok {
			errs = append(errs, fmt.Errorf("%w: %q", microformats.ErrUnknownFormat, name))
		}
	}
	return errors.Join(errs...)
}

// Load loads a document and runs the extraction.
func (e *Extractor) Load(ctx context.Context, src string, opts Options) (*Result, error) {
	d, err := document.Load(ctx, e.client, src)
	if err != nil {
		metrics.Extractions.WithLabelValues("error").Inc()
		return nil, err
	}
	return e.Run(d, opts)
}

// Run extracts the microformats of a document.
func (e *Extractor) Run(d *document.Document, opts Options) (*Result, error) {
	logger := e.logger.With(slog.String("source", d.Source))
	options := []func(*microformats.Parser){
		microformats.WithLogger(logger),
		microformats.WithLineFunc(d.Line),
		microformats.WithMaxDepth(opts.MaxDepth),
	}
	if opts.Strict {
		options = append(options, microformats.WithStrict())
	}
	if opts.CollectErrors {
		options = append(options, microformats.WithCollectErrors())
	}
	if opts.LooseDates {
		options = append(options, microformats.WithLooseDates())
	}
	p := microformats.New(e.catalog, options...)

	res := &Result{Source: d.Source}
	items, err := e.parse(p, d, opts.Formats)
	if err != nil {
		metrics.Extractions.WithLabelValues("error").Inc()
		countError(err)
		return nil, err
	}
	res.Items = items

	for _, err := range p.Errors() {
		countError(err)
		res.Errors = append(res.Errors, Describe(err))
	}

	for _, item := range res.Items {
		metrics.Records.WithLabelValues(item.Format).Add(float64(len(item.Records)))
	}
	metrics.Extractions.WithLabelValues("ok").Inc()

	logger.Debug("extraction done",
		slog.Int("items", len(res.Items)),
		slog.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (e *Extractor) parse(p *microformats.Parser, d *document.Document, formats []string) ([]microformats.Item, error) {
	if len(formats) == 0 {
		return p.Parse(d.Root)
	}

	res := []microformats.Item{}
	seen := map[string]struct{}{}
	for _, name := range formats {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		records, err := p.ParseFormat(name, d.Root)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			res = append(res, microformats.Item{Format: name, Records: records})
		}
	}
	return res, nil
}

// Batch loads and extracts several sources with at most workers
// extractions running at once. The results keep the order of sources.
// The first failing source cancels the others.
func (e *Extractor) Batch(ctx context.Context, sources []string, workers int, opts Options) ([]*Result, error) {
	res := make([]*Result, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, src := range sources {
		g.Go(func() error {
			r, err := e.Load(ctx, src, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			res[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// Describe returns the description of an extraction error.
func Describe(err error) ErrorInfo {
	var pe *microformats.ParseError
	if errors.As(err, &pe) {
		return ErrorInfo{Code: string(pe.Code), Line: pe.Line, Message: pe.Message}
	}
	return ErrorInfo{Message: err.Error()}
}

func countError(err error) {
	var pe *microformats.ParseError
	if errors.As(err, &pe) {
		metrics.Errors.WithLabelValues(string(pe.Code)).Inc()
	}
}
