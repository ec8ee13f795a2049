// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package models defines the wire types shared by the slot service and its
client.

Key Components:

  - APIResponse: standard JSON wrapper with status, data, metadata and error
  - APIError: machine-readable error code plus message
  - SlotInfo: size, checksum and update time of one stored slot
  - SlotList: every slot of an account

Slot bytes themselves travel as raw request and response bodies; SlotInfo is
returned as JSON from PUT and list calls and as headers on GET and HEAD.
*/
package models
