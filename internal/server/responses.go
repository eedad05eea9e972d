// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/internal/output"
)

// Message is used by the server's Msg() function.
type Message struct {
	Status  int                   `json:"status" yaml:"status"`
	Message string                `json:"message" yaml:"message"`
	Details []extractor.ErrorInfo `json:"errors,omitempty" yaml:"errors,omitempty"`
	Errors  []error               `json:"-" yaml:"-"`
}

// Error is an error with an HTTP status.
type Error struct {
	Status int
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the error HTTP status.
func (e *Error) StatusCode() int {
	return e.Status
}

// NewError returns an [Error] with a status.
func NewError(status int, err error) *Error {
	return &Error{Status: status, Err: err}
}

// Render encodes a value in the requested output format (JSON by
// default) and sends the response.
func Render(w http.ResponseWriter, r *http.Request, status int, value any) {
	f := responseFormat(r)

	b := &bytes.Buffer{}
	if err := output.Encode(b, f, value); err != nil {
		Log(r).Error("encoding error", slog.Any("err", err))
		http.Error(w, http.StatusText(500), 500)
		return
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", f.ContentType())
	}
	if status >= 100 {
		w.WriteHeader(status)
	}
	w.Write(b.Bytes()) //nolint:errcheck
}

// Msg sends a formatted message response.
func Msg(w http.ResponseWriter, r *http.Request, message *Message) {
	Render(w, r, message.Status, message)

	// Log errors only in debug
	if message.Status >= 400 && configs.Config.Main.LogLevel <= slog.LevelDebug {
		attrs := make([]slog.Attr, 1+len(message.Errors))
		attrs[0] = slog.Int("status", message.Status)
		for i, e := range message.Errors {
			attrs[i+1] = slog.Any("err", e)
		}
		Log(r).LogAttrs(context.Background(), slog.LevelWarn, message.Message, attrs...)
	}
}

// TextMsg sends a message response with a status and a message.
func TextMsg(w http.ResponseWriter, r *http.Request, status int, msg string) {
	Msg(w, r, &Message{
		Status:  status,
		Message: msg,
	})
}

// Err renders an error.
// If the error provides a StatusCode(), its status and message are sent.
// Any other error is logged and returns a 500 response.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	var e interface{ StatusCode() int }
	if !errors.As(err, &e) {
		Log(r).Error("server error", slog.Any("err", err))
		TextMsg(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	Msg(w, r, &Message{
		Status:  e.StatusCode(),
		Message: err.Error(),
		Errors:  []error{err},
	})
}

// responseFormat returns the output format from the "output" query
// parameter, or from the accept header.
func responseFormat(r *http.Request) output.Format {
	if o, ok := getOptions(r.Context()); ok {
		return o.format
	}
	if f, err := output.ParseFormat(r.URL.Query().Get("output")); err == nil && r.URL.Query().Has("output") {
		return f
	}
	return acceptFormat(r)
}

func acceptFormat(r *http.Request) output.Format {
	for _, v := range r.Header.Values("Accept") {
		if strings.Contains(v, "yaml") {
			return output.YAML
		}
	}
	return output.JSON
}
