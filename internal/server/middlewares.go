// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
)

const (
	gzipEtagSuffix = "-gzip"
)

var (
	errCrossOriginRequest               = errors.New("cross-origin request detected from Sec-Fetch-Site header")
	errCrossOriginRequestFromOldBrowser = errors.New("cross-origin request detected, and/or browser is out of date: " +
		"Sec-Fetch-Site is missing, and Origin does not match Host")
)

// Csrf denies cross-origin browser requests with unsafe methods. It keeps
// web pages from using the extraction API to reach URLs on their behalf.
func Csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := checkOrigin(r); err != nil {
			Log(r).Warn("Cross Origin", slog.Any("err", err))
			Err(w, r, NewError(http.StatusForbidden, err))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkOrigin returns an error when a request with an unsafe method comes
// from another site. It relies on Sec-Fetch-Site and falls back to
// comparing the Origin header with the host for older browsers. Requests
// without any of these headers are not browser requests.
func checkOrigin(r *http.Request) error {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return nil
	}

	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return nil
	case "":
	default:
		return errCrossOriginRequest
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	o, err := url.Parse(origin)
	switch {
	case err != nil || o.Scheme == "":
		return errCrossOriginRequestFromOldBrowser
	case o.Scheme != "http" && o.Scheme != "https":
		return nil
	case o.Host == r.Host:
		return nil
	}
	return errCrossOriginRequestFromOldBrowser
}

// CannonicalPaths redirects requests with an unclean path to the cleaned
// path, keeping a trailing slash. The 308 status keeps the method and
// the body.
func CannonicalPaths(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p string
		rctx := chi.RouteContext(r.Context())
		if rctx != nil && rctx.RoutePath != "" {
			p = rctx.RoutePath
		} else {
			p = r.URL.Path
		}

		if len(p) > 1 {
			p2 := path.Clean(p)
			if strings.HasSuffix(p, "/") {
				p2 += "/"
			}
			if p != p2 {
				if r.URL.RawQuery != "" {
					p2 = fmt.Sprintf("%s?%s", p2, r.URL.RawQuery)
				}
				http.Redirect(w, r, fmt.Sprintf("//%s%s", r.Host, p2), http.StatusPermanentRedirect)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// CompressResponse returns a gzipped response for the API content types.
func CompressResponse(next http.Handler) http.Handler {
	w, err := gzhttp.NewWrapper(
		gzhttp.CompressionLevel(5),
		gzhttp.ContentTypes([]string{
			"application/json", "application/yaml", "text/plain",
		}),
		gzhttp.SuffixETag(gzipEtagSuffix),
		gzhttp.MinSize(1024),
		gzhttp.RandomJitter(32, 0, false),
	)
	if err != nil {
		panic(err)
	}
	return w(next)
}
