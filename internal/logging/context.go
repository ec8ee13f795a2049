// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	operationKey   contextKey = "operation"
	operationIDKey contextKey = "operation_id"
	requestIDKey   contextKey = "request_id"
)

// NewOperationID returns a short random ID for correlating one backup,
// restore or migration run across log lines.
func NewOperationID() string {
	return uuid.New().String()[:8]
}

// ContextWithOperation tags ctx with an operation name and ID.
func ContextWithOperation(ctx context.Context, op, id string) context.Context {
	ctx = context.WithValue(ctx, operationKey, op)
	return context.WithValue(ctx, operationIDKey, id)
}

// OperationFromContext returns the operation name and ID, or empty strings.
func OperationFromContext(ctx context.Context) (op, id string) {
	op, _ = ctx.Value(operationKey).(string)
	id, _ = ctx.Value(operationIDKey).(string)
	return op, id
}

// ContextWithRequestID tags ctx with an HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Ctx returns the global logger with the context's operation and request
// fields attached.
//
//	logging.Ctx(ctx).Info().Msg("Manifest written")
//	// {"level":"info","operation":"backup","operation_id":"1a2b3c4d","message":"Manifest written"}
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	if op, id := OperationFromContext(ctx); op != "" {
		lc = lc.Str("operation", op)
		if id != "" {
			lc = lc.Str("operation_id", id)
		}
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		lc = lc.Str("request_id", rid)
	}
	l := lc.Logger()
	return &l
}
