// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
slot_client.go - Slot Service HTTP Client

SlotClient implements Cloud against the DiaryKeeper slot service.

Request Configuration:
  - Authentication: Authorization: Bearer <token> on all requests
  - Timeout: every public call runs under cloud.timeout, body transfer included
  - Circuit Breaker: transport errors, 5xx and 429 count against the breaker
  - Retries: GET and HEAD only, up to cloud.max_retries, paced by one shared
    rate limiter (cloud.retry_rate attempts per second)

Error Mapping:
  - transport error, timeout, 5xx, 429, open breaker -> fault.Unavailable
  - 401, 403 -> fault.Unavailable wrapping ErrUnauthorized
  - 404 on download -> ErrSlotEmpty
  - anything else non-2xx -> *statusError
*/

//nolint:staticcheck // File documentation, not package doc
package channel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/metrics"
	"github.com/tomtom215/diarykeeper/internal/models"
	"github.com/tomtom215/diarykeeper/internal/version"
)

const defaultCloudTimeout = 2 * time.Minute

// errorBodyLimit caps how much of an error response is read.
const errorBodyLimit = 4 << 10

// statusError is a non-2xx answer from the slot service.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("slot service returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("slot service returned %d: %s", e.Code, e.Message)
}

// SlotClient talks to the slot service.
type SlotClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	breaker    *breaker
}

var _ Cloud = (*SlotClient)(nil)

// NewSlotClient creates a client for the service at cfg.URL.
func NewSlotClient(cfg config.CloudConfig) (*SlotClient, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid cloud url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid cloud url %q: scheme must be http or https", cfg.URL)
	}
	if cfg.Token == "" {
		return nil, errors.New("cloud token is not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCloudTimeout
	}
	retryRate := rate.Limit(cfg.RetryRate)
	if cfg.RetryRate <= 0 {
		retryRate = 1
	}

	logging.Debug().
		Str("url", u.String()).
		Str("token", logging.MaskSecret(cfg.Token)).
		Dur("timeout", timeout).
		Int("max_retries", cfg.MaxRetries).
		Msg("Slot client configured")

	return &SlotClient{
		baseURL:    u,
		token:      cfg.Token,
		httpClient: &http.Client{},
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(retryRate, 1),
		breaker:    newBreaker(breakerName),
	}, nil
}

// BreakerState returns "closed", "half-open" or "open".
func (c *SlotClient) BreakerState() string {
	return c.breaker.State()
}

// requestConfig holds configuration for one slot service call.
type requestConfig struct {
	op     string
	method string
	path   string
	body   io.Reader
	size   int64
}

func slotPath(name string) string {
	return models.SlotPathPrefix + url.PathEscape(name)
}

// Available probes the fixed slot. Both a stored and an empty slot prove
// the service is reachable and accepts our token.
func (c *SlotClient) Available(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, requestConfig{op: "cloud probe", method: http.MethodHead, path: slotPath(SlotName)})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil
		}
		return c.classify(ctx, "cloud probe", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Stat returns what the service holds in the named slot.
func (c *SlotClient) Stat(ctx context.Context, name string) (*models.SlotInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, requestConfig{op: "cloud stat", method: http.MethodHead, path: slotPath(name)})
	if err != nil {
		return nil, c.classify(ctx, "cloud stat", err)
	}
	_ = resp.Body.Close()
	return slotInfoFromHeaders(name, resp.Header)
}

// List returns every slot stored for the token's account.
func (c *SlotClient) List(ctx context.Context) (*models.SlotList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, requestConfig{op: "cloud list", method: http.MethodGet, path: strings.TrimSuffix(models.SlotPathPrefix, "/")})
	if err != nil {
		return nil, c.classify(ctx, "cloud list", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data models.SlotList `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode slot list: %w", err)
	}
	return &envelope.Data, nil
}

// Upload replaces the named slot. Uploads are not retried: r can only be
// read once.
func (c *SlotClient) Upload(ctx context.Context, name string, r io.Reader, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hasher := sha256.New()
	resp, err := c.do(ctx, requestConfig{
		op:     "cloud upload",
		method: http.MethodPut,
		path:   slotPath(name),
		body:   io.TeeReader(r, hasher),
		size:   size,
	})
	if err != nil {
		return c.classify(ctx, "cloud upload", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data models.SlotInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	sum := hex.EncodeToString(hasher.Sum(nil))
	if envelope.Data.Size != size || !strings.EqualFold(envelope.Data.SHA256, sum) {
		return fmt.Errorf("cloud upload: stored %d bytes (%s), sent %d (%s): %w",
			envelope.Data.Size, envelope.Data.SHA256, size, sum, ErrChecksumMismatch)
	}

	logging.Ctx(ctx).Info().Str("slot", name).Int64("size", size).Msg("Uploaded archive to cloud slot")
	return nil
}

// Download writes the named slot to w and checks it against the checksum the
// service reports.
func (c *SlotClient) Download(ctx context.Context, name string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, requestConfig{op: "cloud download", method: http.MethodGet, path: slotPath(name)})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return fmt.Errorf("cloud download %s: %w", name, ErrSlotEmpty)
		}
		return c.classify(ctx, "cloud download", err)
	}
	defer func() { _ = resp.Body.Close() }()

	hasher := sha256.New()
	sink := &localWriter{w: w}
	n, err := io.Copy(io.MultiWriter(sink, hasher), resp.Body)
	if sink.err != nil {
		return fault.TransientIO("cloud download", name, sink.err)
	}
	if err != nil {
		return c.classify(ctx, "cloud download", err)
	}

	if want := resp.Header.Get(models.HeaderSlotSHA256); want != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); !strings.EqualFold(got, want) {
			return fmt.Errorf("cloud download %s: got %s, service reports %s: %w", name, got, want, ErrChecksumMismatch)
		}
	}

	logging.Ctx(ctx).Info().Str("slot", name).Int64("size", n).Msg("Downloaded archive from cloud slot")
	return nil
}

// localWriter remembers a failure of the local destination so a full disk is
// not reported as an unreachable service.
type localWriter struct {
	w   io.Writer
	err error
}

func (l *localWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil && l.err == nil {
		l.err = err
	}
	return n, err
}

// do executes one call, retrying idempotent methods on failures that say the
// service is unhealthy. A non-2xx answer is returned as *statusError with the
// body already closed.
func (c *SlotClient) do(ctx context.Context, cfg requestConfig) (*http.Response, error) {
	attempts := 1
	if cfg.method == http.MethodGet || cfg.method == http.MethodHead {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, lastErr
			}
			logging.Ctx(ctx).Debug().Str("op", cfg.op).Int("attempt", attempt+1).Err(lastErr).Msg("Retrying slot service request")
		}

		start := time.Now()
		resp, err := c.breaker.execute(func() (*http.Response, error) {
			return c.send(ctx, cfg)
		})
		metrics.RecordCloudRequest(cfg.method, time.Since(start), unhealthy(err))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if healthyAnswer(err) || isRejected(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// unhealthy drops errors that are ordinary answers, so request metrics count
// only failures of the service.
func unhealthy(err error) error {
	if healthyAnswer(err) {
		return nil
	}
	return err
}

func (c *SlotClient) send(ctx context.Context, cfg requestConfig) (*http.Response, error) {
	body := cfg.body
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, cfg.method, c.baseURL.String()+cfg.path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "diarykeeper/"+version.Version)
	if cfg.body != nil {
		req.ContentLength = cfg.size
		req.Header.Set("Content-Type", "application/zip")
	}

	//nolint:gosec // G107: URL is the configured slot service
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	return nil, &statusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
}

// errorMessage extracts the message of an APIResponse error body.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope models.APIResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// classify maps a failed call onto the fault taxonomy. Cancellation by the
// caller is passed through unchanged.
func (c *SlotClient) classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}

	var se *statusError
	switch {
	case isRejected(err):
		return fault.Unavailable(op, fmt.Errorf("circuit breaker %s: %w", c.breaker.State(), err))
	case errors.As(err, &se):
		switch {
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return fault.Unavailable(op, fmt.Errorf("%w: %w", ErrUnauthorized, se))
		case !healthyAnswer(se):
			return fault.Unavailable(op, se)
		default:
			return fmt.Errorf("%s: %w", op, se)
		}
	default:
		return fault.Unavailable(op, err)
	}
}

func slotInfoFromHeaders(name string, h http.Header) (*models.SlotInfo, error) {
	info := &models.SlotInfo{Name: name, SHA256: h.Get(models.HeaderSlotSHA256)}
	if v := h.Get("Content-Length"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid slot size %q: %w", v, err)
		}
		info.Size = size
	}
	if v := h.Get(models.HeaderSlotUpdatedAt); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid slot time %q: %w", v, err)
		}
		info.UpdatedAt = t
	}
	return info, nil
}
