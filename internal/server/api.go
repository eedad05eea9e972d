// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/pkg/microformats"
	"codeberg.org/microtron/microtron/pkg/microformats/document"
)

// apiRoutes returns the API routes.
//
//	GET  /info      service information
//	GET  /formats   catalog in its file form
//	GET  /extract   extraction of the document at the "url" parameter
//	POST /extract   extraction of the request body
func (s *Server) apiRoutes() http.Handler {
	r := chi.NewRouter()

	r.Mount("/info", infoRoutes())
	r.Get("/formats", s.formatList)

	r.With(s.withExtractOptions).Get("/extract", s.extractURL)
	r.With(Csrf, s.withExtractOptions).Post("/extract", s.extractBody)

	return r
}

func (s *Server) formatList(w http.ResponseWriter, r *http.Request) {
	Render(w, r, http.StatusOK, s.ex.Catalog())
}

func (s *Server) extractURL(w http.ResponseWriter, r *http.Request) {
	o, _ := getOptions(r.Context())

	src := r.URL.Query().Get("url")
	if !document.IsURL(src) {
		TextMsg(w, r, http.StatusBadRequest, "the url parameter must be an http or https URL")
		return
	}

	logSource(r, src, o)

	res, err := s.ex.Load(r.Context(), src, o.Options)
	if err != nil {
		s.extractError(w, r, err, http.StatusBadGateway)
		return
	}
	logResult(r, res)
	s.render(w, r, o, res)
}

func (s *Server) extractBody(w http.ResponseWriter, r *http.Request) {
	o, _ := getOptions(r.Context())

	body := http.MaxBytesReader(w, r.Body, configs.Config.Server.MaxBodySize)
	d, err := document.Read(body, r.Header.Get("Content-Type"))
	if err != nil {
		s.extractError(w, r, err, http.StatusBadRequest)
		return
	}
	d.Source = r.URL.Query().Get("source")
	logSource(r, d.Source, o)

	res, err := s.ex.Run(d, o.Options)
	if err != nil {
		s.extractError(w, r, err, http.StatusInternalServerError)
		return
	}
	logResult(r, res)
	s.render(w, r, o, res)
}

// render sends an extraction result, filtered by the request query
// when there is one. The query runs within the fetch timeout.
func (s *Server) render(w http.ResponseWriter, r *http.Request, o *requestOptions, res *extractor.Result) {
	if o.query == nil {
		Render(w, r, http.StatusOK, res)
		return
	}

	ctx := r.Context()
	if timeout := configs.Config.Fetch.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	values, err := o.query.Run(ctx, res)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("query timed out: %w", err)
	}
	if err != nil {
		Err(w, r, NewError(http.StatusUnprocessableEntity, err))
		return
	}
	Render(w, r, http.StatusOK, values)
}

// extractError sends the response of a failed extraction. Errors that are
// not specific to extraction get the fallback status.
func (s *Server) extractError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	var pe *microformats.ParseError
	var mbe *http.MaxBytesError

	switch {
	case errors.As(err, &pe):
		Msg(w, r, &Message{
			Status:  http.StatusUnprocessableEntity,
			Message: "extraction failed",
			Details: []extractor.ErrorInfo{extractor.Describe(pe)},
			Errors:  []error{err},
		})
	case errors.Is(err, document.ErrNotHTML):
		Err(w, r, NewError(http.StatusUnsupportedMediaType, err))
	case errors.Is(err, document.ErrTooLarge), errors.As(err, &mbe):
		Err(w, r, NewError(http.StatusRequestEntityTooLarge, document.ErrTooLarge))
	case fallback == http.StatusInternalServerError:
		Err(w, r, err)
	default:
		Err(w, r, NewError(fallback, err))
	}
}
