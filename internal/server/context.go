// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/internal/output"
	"codeberg.org/microtron/microtron/pkg/ctxr"
)

type ctxOptionsKey struct{}

var withOptions, getOptions = ctxr.WithChecker[*requestOptions](ctxOptionsKey{})

// requestOptions are the extraction settings of a request.
type requestOptions struct {
	extractor.Options
	format output.Format
	query  *output.Query
}

// withExtractOptions reads the extraction settings from the query
// string and adds them to the request's context.
func (s *Server) withExtractOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o, err := s.readOptions(r)
		if err != nil {
			Err(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withOptions(r.Context(), o)))
	})
}

func (s *Server) readOptions(r *http.Request) (*requestOptions, error) {
	q := r.URL.Query()
	cfg := configs.Config.Extract

	o := &requestOptions{
		Options: extractor.Options{
			Strict:        cfg.Strict,
			CollectErrors: cfg.CollectErrors,
			LooseDates:    cfg.LooseDates,
			MaxDepth:      cfg.MaxDepth,
		},
		format: acceptFormat(r),
	}

	for _, x := range []struct {
		name string
		dst  *bool
	}{
		{"strict", &o.Strict},
		{"collect_errors", &o.CollectErrors},
		{"loose_dates", &o.LooseDates},
	} {
		if !q.Has(x.name) {
			continue
		}
		v := q.Get(x.name)
		if v == "" {
			v = "true"
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, NewError(http.StatusBadRequest, fmt.Errorf("invalid %s value %q", x.name, v))
		}
		*x.dst = b
	}

	if q.Has("max_depth") {
		v, err := strconv.Atoi(q.Get("max_depth"))
		if err != nil || v < 1 {
			return nil, NewError(http.StatusBadRequest, fmt.Errorf("invalid max_depth value %q", q.Get("max_depth")))
		}
		o.MaxDepth = v
	}

	for _, v := range q["format"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				o.Formats = append(o.Formats, name)
			}
		}
	}
	if err := s.ex.CheckFormats(o.Formats...); err != nil {
		return nil, NewError(http.StatusBadRequest, err)
	}

	if q.Has("output") {
		f, err := output.ParseFormat(q.Get("output"))
		if err != nil {
			return nil, NewError(http.StatusBadRequest, err)
		}
		o.format = f
	}

	if src := q.Get("q"); src != "" {
		query, err := output.NewQuery(src)
		if err != nil {
			return nil, NewError(http.StatusBadRequest, err)
		}
		o.query = query
	}

	return o, nil
}
