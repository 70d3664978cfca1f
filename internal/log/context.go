// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// IntoContext stores a request-scoped logger in the context.
func IntoContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or the base logger when
// none is attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Base()
}

// WithContext merges a component logger with any request-scoped fields held
// in the context (request id, session id).
func WithContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return l
}

type requestIDKey struct{}

// WithRequestID stores a request id for later log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id attached to the context, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
