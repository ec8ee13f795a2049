// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package channel

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tomtom215/diarykeeper/internal/backup"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/logging"
)

// CloudChannel backs up to and restores from the cloud slot.
type CloudChannel struct {
	cloud    Cloud
	builder  Builder
	restorer Restorer
	workDir  string
}

// NewCloudChannel creates a cloud channel. Downloads are staged in workDir.
func NewCloudChannel(cloud Cloud, builder Builder, restorer Restorer, workDir string) *CloudChannel {
	return &CloudChannel{cloud: cloud, builder: builder, restorer: restorer, workDir: workDir}
}

// CloudBackup builds an archive and uploads it to the slot, replacing the
// previous backup. Availability is checked first, so a down channel leaves
// nothing built. The local archive is removed whether or not the upload
// succeeds.
func (c *CloudChannel) CloudBackup(ctx context.Context) (*backup.Result, error) {
	if err := c.cloud.Available(ctx); err != nil {
		return nil, err
	}

	result, err := c.builder.CreateBackup(ctx)
	if err != nil {
		return nil, err
	}
	defer removeArchive(ctx, result.ArchivePath)

	f, err := os.Open(result.ArchivePath)
	if err != nil {
		return nil, fault.TransientIO("cloud backup", result.ArchivePath, err)
	}
	defer func() { _ = f.Close() }()

	if err := c.cloud.Upload(ctx, SlotName, f, result.Size); err != nil {
		return nil, err
	}
	return result, nil
}

// CloudRestore downloads the slot into the work directory and restores from
// it. The downloaded archive is removed afterwards.
func (c *CloudChannel) CloudRestore(ctx context.Context) (*backup.RestoreReport, error) {
	if err := c.cloud.Available(ctx); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.workDir, 0o750); err != nil {
		return nil, fault.TransientIO("cloud restore", c.workDir, err)
	}
	path := filepath.Join(c.workDir, "cloud-"+uuid.NewString()+".zip")

	//nolint:gosec // G304: path is built from the configured work directory
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fault.TransientIO("cloud restore", path, err)
	}
	err = c.cloud.Download(ctx, SlotName, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fault.TransientIO("cloud restore", path, cerr)
	}
	if err != nil {
		removeArchive(ctx, path)
		return nil, err
	}

	return c.restorer.Restore(ctx, path, backup.RestoreOptions{RemoveSource: true})
}

func removeArchive(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("Failed to remove local archive")
	}
}
