// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package server is the Microtron HTTP API.
// It defines common middlewares and the extraction routes.
package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/internal/metrics"
	"codeberg.org/microtron/microtron/pkg/http/request"
)

// Server is a wrapper around chi router.
type Server struct {
	*chi.Mux
	ex *extractor.Extractor
}

// New creates a new server using an extractor. [Server.Init] adds
// the routes.
func New(ex *extractor.Extractor) *Server {
	s := &Server{
		Mux: chi.NewRouter(),
		ex:  ex,
	}

	s.Use(
		middleware.Recoverer,
		request.InitRequest(configs.TrustedProxies()...),
		Logger(),
		metrics.Middleware,
		SetSecurityHeaders,
		CompressResponse,
		CannonicalPaths,
	)

	return s
}

// Init adds the server routes.
func (s *Server) Init() {
	s.Mount("/api", s.apiRoutes())
	s.Method(http.MethodGet, "/metrics", metrics.Handler())
}

// infoRoutes returns the route returning the service information.
func infoRoutes() http.Handler {
	r := chi.NewRouter()

	type versionInfo struct {
		Canonical string `json:"canonical"`
		Release   string `json:"release"`
		Build     string `json:"build"`
	}

	type serviceInfo struct {
		Version versionInfo `json:"version"`
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		canonical := configs.Version()
		release, build, _ := strings.Cut(canonical, "-")

		res := serviceInfo{
			Version: versionInfo{
				Canonical: canonical,
				Release:   release,
				Build:     build,
			},
		}

		Render(w, r, 200, res)
	})

	return r
}

// Log returns a log entry including the request ID.
func Log(r *http.Request) *slog.Logger {
	return slog.With(slog.String("@id", request.RequestID(r)))
}
