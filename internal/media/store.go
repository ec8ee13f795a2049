// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/metrics"
)

// tempPattern names in-progress store files. The sweeper removes stale ones.
const tempPattern = ".store-*.tmp"

// Store copies photo bytes into the durable bucket layout.
type Store struct {
	documentRoot string
	defaultExt   string

	now    func() time.Time
	suffix func() int
}

// NewStore returns a store rooted at documentRoot. defaultExt (".jpg") is used
// for generated filenames when the source has no extension.
func NewStore(documentRoot, defaultExt string) *Store {
	if defaultExt == "" {
		defaultExt = ".jpg"
	}
	return &Store{
		documentRoot: documentRoot,
		defaultExt:   defaultExt,
		now:          time.Now,
		//nolint:gosec // G404: filename uniqueness, not security
		suffix: func() int { return rand.IntN(10000) },
	}
}

// BucketDir returns the directory for bucket.
func (s *Store) BucketDir(bucket Bucket) string {
	return filepath.Join(s.documentRoot, string(bucket))
}

// InitializeDirectories creates both bucket directories if missing. Failures
// are logged and returned joined; startup treats them as non-fatal.
func (s *Store) InitializeDirectories() error {
	var errs []error
	for _, b := range Buckets {
		dir := s.BucketDir(b)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logging.Error().Err(err).Str("dir", dir).Msg("Failed to initialize media directory")
			errs = append(errs, fault.TransientIO("initialize directories", dir, err))
		}
	}
	return errors.Join(errs...)
}

// GenerateFilename returns <unixMillis>_<0..9999><ext>.
func (s *Store) GenerateFilename(ext string) string {
	if ext == "" {
		ext = s.defaultExt
	}
	return fmt.Sprintf("%d_%d%s", s.now().UnixMilli(), s.suffix(), ext)
}

// generatedNameAttempts bounds how often a generated filename is redrawn
// when it collides with an existing bucket file.
const generatedNameAttempts = 5

// Store copies the file at srcPath into bucket and returns its canonical
// reference. An empty filename is generated from the source extension. On
// error nothing is left at the destination and no reference may be saved.
//
// An existing bucket file is never replaced: an explicit filename that is
// already taken fails with ErrFileExists.
func (s *Store) Store(ctx context.Context, srcPath string, bucket Bucket, filename string) (CanonicalRelative, error) {
	//nolint:gosec // G304: source is a user-picked or resolved media path
	src, err := os.Open(srcPath)
	if err != nil {
		metrics.RecordStore(string(bucket), 0, err)
		return CanonicalRelative{}, fault.TransientIO("store", srcPath, err)
	}
	defer func() { _ = src.Close() }()

	return s.store(ctx, src, bucket, filename, strings.ToLower(filepath.Ext(srcPath)))
}

// StoreReader is Store for an io.Reader. An empty filename uses the default
// extension.
func (s *Store) StoreReader(ctx context.Context, r io.Reader, bucket Bucket, filename string) (CanonicalRelative, error) {
	return s.store(ctx, r, bucket, filename, "")
}

func (s *Store) store(ctx context.Context, r io.Reader, bucket Bucket, filename, ext string) (CanonicalRelative, error) {
	var next func() (CanonicalRelative, error)
	if filename == "" {
		next = func() (CanonicalRelative, error) {
			return NewCanonical(bucket, s.GenerateFilename(ext))
		}
		filename = s.GenerateFilename(ext)
	}
	ref, err := NewCanonical(bucket, filename)
	if err != nil {
		return CanonicalRelative{}, err
	}

	ref, n, err := s.write(ctx, r, ref, next)
	metrics.RecordStore(string(bucket), n, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("ref", ref.String()).Msg("Media store failed")
		return CanonicalRelative{}, err
	}

	logging.Ctx(ctx).Debug().Str("ref", ref.String()).Int64("bytes", n).Msg("Media stored")
	return ref, nil
}

// write copies r to a temp file in the bucket directory, syncs it and links
// it into place without replacing an existing file. When the name is taken
// and next is non-nil, next supplies another name.
func (s *Store) write(ctx context.Context, r io.Reader, ref CanonicalRelative, next func() (CanonicalRelative, error)) (CanonicalRelative, int64, error) {
	if err := ctx.Err(); err != nil {
		return ref, 0, err
	}

	dir := s.BucketDir(ref.Bucket)
	dest := filepath.Join(dir, ref.Filename)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ref, 0, fault.TransientIO("store", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return ref, 0, fault.TransientIO("store", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return ref, n, fault.TransientIO("store", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		return ref, n, fault.TransientIO("store", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return ref, n, fault.TransientIO("store", dest, err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return ref, n, fault.TransientIO("store", dest, err)
	}

	for attempt := 1; ; attempt++ {
		err := commitNoReplace(tmpName, dest)
		if err == nil {
			return ref, n, nil
		}
		if !errors.Is(err, ErrFileExists) || next == nil || attempt >= generatedNameAttempts {
			return ref, n, fault.TransientIO("store", dest, err)
		}
		if ref, err = next(); err != nil {
			return ref, n, err
		}
		dest = filepath.Join(dir, ref.Filename)
	}
}

// commitNoReplace makes tmpName visible as dest only if dest does not exist.
// A hard link fails atomically on an existing name. Filesystems without hard
// links fall back to a stat check followed by rename.
func commitNoReplace(tmpName, dest string) error {
	err := os.Link(tmpName, dest)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrFileExists, filepath.Base(dest))
	}
	if _, statErr := os.Lstat(dest); statErr == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, filepath.Base(dest))
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}
	return os.Rename(tmpName, dest)
}

// CopyFile copies src to dst through a temp file in dst's directory, creating
// parent directories. It returns the number of bytes copied.
func CopyFile(src, dst string) (int64, error) {
	//nolint:gosec // G304: paths come from resolved references and staging dirs
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, in)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o640)
	}
	if err == nil {
		err = os.Rename(tmpName, dst)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return n, err
	}
	return n, nil
}
