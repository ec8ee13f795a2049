// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package models

import (
	"strconv"
	"time"
)

// SlotPathPrefix is the route prefix for slot operations: PUT, GET and HEAD
// on SlotPathPrefix + "{name}".
const SlotPathPrefix = "/v1/slots/"

// Headers describing a slot on GET and HEAD responses.
const (
	HeaderSlotSHA256    = "X-Slot-Sha256"
	HeaderSlotUpdatedAt = "X-Slot-Updated-At"
)

// SlotInfo describes the bytes stored in one slot.
type SlotInfo struct {
	Account   string    `json:"account"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotList is the body of GET /v1/slots.
type SlotList struct {
	Account string     `json:"account"`
	Slots   []SlotInfo `json:"slots"`
}

// HeaderValues returns the slot description as response headers.
func (s SlotInfo) HeaderValues() map[string]string {
	return map[string]string{
		"Content-Length":    strconv.FormatInt(s.Size, 10),
		HeaderSlotSHA256:    s.SHA256,
		HeaderSlotUpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
