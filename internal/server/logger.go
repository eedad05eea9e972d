// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/pkg/http/request"
)

// Logger is a middleware that logs requests with the default logger.
// Handlers add attributes to the final log line with [AddLogAttrs].
func Logger() func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&httpLogger{})
}

type httpLogger struct {
	logger *slog.Logger
}

func (l *httpLogger) log() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

func (l *httpLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	e := &logEntry{
		logger: l.log(),
		attrs: []slog.Attr{
			slog.String("@id", request.RequestID(r)),
			slog.Group("request",
				slog.String("method", r.Method),
				slog.String("path", r.RequestURI),
				slog.String("proto", r.Proto),
				slog.String("remote_addr", request.GetRealIP(r.Context()).String()),
			),
		},
	}
	e.logger.LogAttrs(context.TODO(), slog.LevelDebug, "http "+r.Method, e.attrs...)

	return e
}

// logEntry is the log entry of one request. Only the request goroutine
// touches it.
type logEntry struct {
	logger *slog.Logger
	attrs  []slog.Attr
	extra  []slog.Attr
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	e.logger.LogAttrs(context.TODO(), slog.LevelInfo,
		"http "+strconv.Itoa(status)+" "+http.StatusText(status),
		slices.Concat(e.attrs, e.extra, []slog.Attr{
			slog.Group("response",
				slog.Int("status", status),
				slog.Int("length", bytes),
				slog.Float64("elapsed_ms", float64(elapsed.Nanoseconds())/1000000.0),
			),
		})...,
	)
}

func (e *logEntry) Panic(v any, _ []byte) {
	e.logger.LogAttrs(context.TODO(), slog.LevelError, "http panic",
		slices.Concat(e.attrs, e.extra, []slog.Attr{slog.Any("panic", v)})...,
	)
}

// AddLogAttrs adds attributes to the request log line. It does nothing
// outside of the [Logger] middleware.
func AddLogAttrs(r *http.Request, attrs ...slog.Attr) {
	if e, ok := middleware.GetLogEntry(r).(*logEntry); ok {
		e.extra = append(e.extra, attrs...)
	}
}

// logSource adds the extraction source and options to the request log.
func logSource(r *http.Request, source string, o *requestOptions) {
	attrs := []any{slog.String("source", source)}
	if len(o.Formats) > 0 {
		attrs = append(attrs, slog.String("formats", strings.Join(o.Formats, ",")))
	}
	if o.Strict {
		attrs = append(attrs, slog.Bool("strict", true))
	}
	if o.query != nil {
		attrs = append(attrs, slog.String("query", o.query.String()))
	}
	AddLogAttrs(r, slog.Group("extract", attrs...))
}

// logResult adds the extraction counters to the request log.
func logResult(r *http.Request, res *extractor.Result) {
	records := 0
	for _, item := range res.Items {
		records += len(item.Records)
	}
	AddLogAttrs(r, slog.Group("result",
		slog.Int("items", len(res.Items)),
		slog.Int("records", records),
		slog.Int("errors", len(res.Errors)),
	))
}
