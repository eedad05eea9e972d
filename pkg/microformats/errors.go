// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package microformats

import (
	"errors"
	"fmt"
	"strings"

	"codeberg.org/microtron/microtron/pkg/microformats/datetime"
)

// ErrorCode identifies a class of extraction error. Every [ParseError]
// matches its code with [errors.Is].
type ErrorCode string

func (c ErrorCode) Error() string {
	return string(c)
}

// Extraction error codes.
const (
	ErrUnknownFormat               ErrorCode = "unknown format"
	ErrMissingMandatoryProperty    ErrorCode = "missing mandatory property"
	ErrInvalidPropertyValue        ErrorCode = "invalid property value"
	ErrMissingRequiredAttribute    ErrorCode = "missing required attribute"
	ErrMalformedDateTimeFragment   ErrorCode = "malformed datetime fragment"
	ErrMissingDateComponent        ErrorCode = "missing date component"
	ErrUnsupportedFormatDelegation ErrorCode = "unsupported format delegation"
	ErrRecursionLimit              ErrorCode = "recursion limit exceeded"
)

// ParseError is an extraction error, located on a source line when
// it is known.
type ParseError struct {
	Code    ErrorCode
	Message string
	// Line is the source line of the offending element, 0 when unknown.
	Line int
	Err  error
}

func newError(code ErrorCode, line int, format string, args ...any) *ParseError {
	return &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	}
}

func (e *ParseError) Error() string {
	b := new(strings.Builder)
	if e.Line > 0 {
		fmt.Fprintf(b, "line %d: ", e.Line)
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is matches the error code.
func (e *ParseError) Is(target error) bool {
	c, ok := target.(ErrorCode)
	return ok && c == e.Code
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// wrapDateTimeError converts an error from the datetime composer.
func wrapDateTimeError(err error, line int) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}

	var fe *datetime.FragmentError
	switch {
	case errors.As(err, &fe):
		return &ParseError{
			Code:    ErrMalformedDateTimeFragment,
			Message: fmt.Sprintf("%q", fe.Text),
			Line:    fe.Line,
			Err:     err,
		}
	case errors.Is(err, datetime.ErrMissingDate):
		return &ParseError{Code: ErrMissingDateComponent, Line: line, Err: err}
	}
	return &ParseError{Code: ErrMalformedDateTimeFragment, Line: line, Err: err}
}

// ErrorList holds the errors collected during an extraction.
type ErrorList []error

func (e ErrorList) Error() string {
	s := make([]string, len(e))
	for i, err := range e {
		s[i] = err.Error()
	}
	return strings.Join(s, ", ")
}
