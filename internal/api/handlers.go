// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/metrics"
	"github.com/tomtom215/diarykeeper/internal/models"
	"github.com/tomtom215/diarykeeper/internal/slotserver"
	"github.com/tomtom215/diarykeeper/internal/validation"
	"github.com/tomtom215/diarykeeper/internal/version"
)

// Handler serves the slot endpoints.
type Handler struct {
	store     *slotserver.Store
	tokens    *slotserver.TokenManager
	startTime time.Time
}

// NewHandler creates a handler over store, authenticating with tokens.
func NewHandler(store *slotserver.Store, tokens *slotserver.TokenManager) *Handler {
	return &Handler{store: store, tokens: tokens, startTime: time.Now()}
}

// slotName returns the validated {name} URL parameter, writing a 400 when
// it is not a valid slot name.
func slotName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if !validation.ValidSlotName(name) {
		NewResponseWriter(w, r).BadRequest(fmt.Sprintf("invalid slot name %q", name))
		return "", false
	}
	return name, true
}

// PutSlot replaces a slot with the request body.
//
// Method: PUT
// Path: /v1/slots/{name}
//
// Responses:
//   - 200: models.SlotInfo of the stored bytes
//   - 400: invalid slot name
//   - 413: body larger than max_upload_size
func (h *Handler) PutSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name, ok := slotName(w, r)
	if !ok {
		return
	}
	if r.ContentLength > h.store.MaxSize() {
		rw.TooLarge(fmt.Sprintf("slot exceeds %d bytes", h.store.MaxSize()))
		return
	}

	account := AccountFromContext(r.Context())
	info, err := h.store.Put(r.Context(), account, name, r.Body)
	switch {
	case errors.Is(err, slotserver.ErrTooLarge):
		rw.TooLarge(fmt.Sprintf("slot exceeds %d bytes", h.store.MaxSize()))
		return
	case errors.Is(err, slotserver.ErrInvalidName):
		rw.BadRequest(err.Error())
		return
	case err != nil:
		rw.StorageError(err)
		return
	}

	metrics.SlotStoredBytes.Add(float64(info.Size))
	rw.Success(info)
}

// GetSlot streams a slot. HEAD returns the same headers without the body.
//
// Method: GET, HEAD
// Path: /v1/slots/{name}
//
// Headers: Content-Length, X-Slot-Sha256, X-Slot-Updated-At. Range requests
// are honoured.
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name, ok := slotName(w, r)
	if !ok {
		return
	}

	f, info, err := h.store.Open(r.Context(), AccountFromContext(r.Context()), name)
	switch {
	case errors.Is(err, slotserver.ErrSlotNotFound):
		rw.NotFound("slot is empty")
		return
	case err != nil:
		rw.StorageError(err)
		return
	}
	defer func() { _ = f.Close() }()

	for k, v := range info.HeaderValues() {
		w.Header().Set(k, v)
	}
	http.ServeContent(w, r, name, info.UpdatedAt, f)
}

// ListSlots returns every slot of the authenticated account.
//
// Method: GET
// Path: /v1/slots
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	account := AccountFromContext(r.Context())

	slots, err := h.store.List(r.Context(), account)
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(models.SlotList{Account: account, Slots: slots})
}

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	Uptime      float64 `json:"uptime_seconds"`
	StoredBytes int64   `json:"stored_bytes"`
}

// Health reports liveness and whether the slot index is readable.
//
// Method: GET
// Path: /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	status := HealthStatus{
		Status:  "healthy",
		Version: version.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
	}

	stored, err := h.store.StoredBytes()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Slot index unreadable")
		rw.Error(http.StatusServiceUnavailable, models.ErrCodeStorage, "slot index unreadable")
		return
	}
	status.StoredBytes = stored
	rw.Success(status)
}
