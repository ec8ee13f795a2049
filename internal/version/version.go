// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/tomtom215/diarykeeper/internal/version.Version=1.4.0" ./cmd/diarykeeper
package version

// Version is the running application version. It gates the reference
// migration pass, so every release must set it.
var Version = "dev"

// Commit is the VCS revision the binary was built from.
var Commit = "unknown"
