// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package app

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/cristalhq/acmd"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/internal/output"
)

// errExtraction is returned when a strict extraction collected errors.
var errExtraction = errors.New("extraction errors")

func init() {
	commands = append(commands, acmd.Command{
		Name:        "extract",
		Description: "Extract microformats from HTML documents",
		ExecFunc:    runExtract,
	})
}

func runExtract(ctx context.Context, args []string) error {
	var formats stringsFlag
	var schemaFile, outputFormat, query string
	var strict, collectErrors, looseDates bool
	var maxDepth, jobs int

	var flags appFlags
	fs := flags.Flags()
	// nolint: errcheck
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: extract [arguments...] SOURCE...")
		fmt.Fprintln(fs.Output(), "  SOURCE")
		fmt.Fprintln(fs.Output(), "    \tfile, http(s) URL or \"-\" for the standard input")
		fs.PrintDefaults()
	}
	fs.Var(&formats, "format", "format to extract (all formats by default)")
	fs.Var(&formats, "f", "format to extract (shorthand)")
	fs.StringVar(&schemaFile, "schema", "", "schema file (xml, yaml, json or toml)")
	fs.BoolVar(&strict, "strict", false, "strict mode")
	fs.BoolVar(&collectErrors, "collect-errors", false, "collect strict mode errors instead of failing")
	fs.BoolVar(&looseDates, "loose-dates", false, "read non ISO dates in lenient mode")
	fs.IntVar(&maxDepth, "max-depth", 0, "nesting limit")
	fs.StringVar(&outputFormat, "output", "json", "output format (json or yaml)")
	fs.StringVar(&outputFormat, "o", "json", "output format (shorthand)")
	fs.StringVar(&query, "query", "", "jq expression applied to the result")
	fs.StringVar(&query, "q", "", "jq expression (shorthand)")
	fs.IntVar(&jobs, "jobs", 0, "number of parallel extractions")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	sources := fs.Args()
	if len(sources) == 0 {
		return errors.New("at least one source is required")
	}

	f, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	var q *output.Query
	if query != "" {
		if q, err = output.NewQuery(query); err != nil {
			return err
		}
	}

	if err := appPreRun(&flags); err != nil {
		return err
	}

	catalog, err := loadCatalog(schemaFile)
	if err != nil {
		return err
	}

	ex := newExtractor(catalog)
	if err := ex.CheckFormats(formats...); err != nil {
		return err
	}

	cfg := configs.Config.Extract
	opts := extractor.Options{
		Strict:        strict || cfg.Strict,
		CollectErrors: collectErrors || cfg.CollectErrors,
		LooseDates:    looseDates || cfg.LooseDates,
		MaxDepth:      cmp.Or(maxDepth, cfg.MaxDepth),
		Formats:       formats,
	}

	results, err := ex.Batch(ctx, sources, cmp.Or(jobs, cfg.Workers), opts)
	if err != nil {
		return err
	}

	var res any = results
	if len(results) == 1 {
		res = results[0]
	}

	if q == nil {
		if err := output.Encode(stdout, f, res); err != nil {
			return err
		}
	} else {
		values, err := q.Run(ctx, res)
		if err != nil {
			return err
		}
		for _, v := range values {
			if err := output.Encode(stdout, f, v); err != nil {
				return err
			}
		}
	}

	for _, r := range results {
		if len(r.Errors) > 0 {
			return errExtraction
		}
	}
	return nil
}
