// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package ctxr provides typed accessors for context values.
package ctxr

import (
	"context"
)

type (
	// ContextSetter returns a new context holding a value.
	ContextSetter[T any] func(context.Context, T) context.Context
	// ContextChecker returns a context value and whether it was present
	// with the expected type.
	ContextChecker[T any] func(context.Context) (T, bool)
	// ContextGetter returns a context value. It panics when the value
	// is missing.
	ContextGetter[T any] func(context.Context) T
)

// Setter returns a [ContextSetter] for a key.
func Setter[T any](key any) ContextSetter[T] {
	return func(ctx context.Context, val T) context.Context {
		return context.WithValue(ctx, key, val)
	}
}

// Checker returns a [ContextChecker] for a key.
func Checker[T any](key any) ContextChecker[T] {
	return func(ctx context.Context) (v T, ok bool) {
		v, ok = ctx.Value(key).(T)
		return
	}
}

// Getter returns a [ContextGetter] for a key.
func Getter[T any](key any) ContextGetter[T] {
	return func(ctx context.Context) T {
		return ctx.Value(key).(T)
	}
}

// WithChecker returns a [ContextSetter] and a [ContextChecker] sharing a key.
func WithChecker[T any](key any) (ContextSetter[T], ContextChecker[T]) {
	return Setter[T](key), Checker[T](key)
}
