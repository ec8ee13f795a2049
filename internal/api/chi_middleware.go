// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/metrics"
)

// RouterConfig holds the rate limit settings of the slot routes.
type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// RouterConfigFrom derives router settings from the slot server config.
func RouterConfigFrom(cfg config.SlotServerConfig) RouterConfig {
	return RouterConfig{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}
}

// RateLimit returns a per-IP rate limiter using go-chi/httprate. Rejected
// requests get the standard JSON error body.
func RateLimit(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		cfg.RateLimitRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).TooManyRequests("rate limit exceeded, retry later")
		}),
	)
}

// RequestIDWithLogging adds a request ID to the context and the
// X-Request-ID response header, reusing the client's ID when it sent one.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" || len(requestID) > 64 {
				requestID = logging.NewOperationID()
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), requestID)))
		})
	}
}

// RequestMetrics records slot request counts and latency, and logs each
// request at debug level.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		metrics.RecordSlotRequest(r.Method, strconv.Itoa(status), duration)

		logging.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

type accountKey struct{}

// AccountFromContext returns the authenticated account, or "".
func AccountFromContext(ctx context.Context) string {
	account, _ := ctx.Value(accountKey{}).(string)
	return account
}

// Authenticate requires a valid bearer token and stores its account in the
// request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			NewResponseWriter(w, r).Unauthorized("missing bearer token")
			return
		}

		claims, err := h.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected slot token")
			NewResponseWriter(w, r).Unauthorized("invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey{}, claims.Account())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
