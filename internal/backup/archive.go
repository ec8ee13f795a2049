// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
archive.go - Archive Writing and Extraction

This file holds the container-level helpers shared by the archiver and the
restore engine. They know nothing about databases or references.

Writing (ZIP):
 1. Setup writers (file -> sha256 tee -> byte counter -> zip)
 2. Walk the staging directory in lexical order, one entry per regular file
 3. Close writers in reverse order so the central directory is flushed
    before the file is synced and closed

Reading:
  - ZIP is the primary format (magic "PK\x03\x04" or "PK\x05\x06")
  - gzip'd tar archives from older tooling are accepted (magic 0x1f 0x8b)
  - Every entry name is joined under the staging directory and rejected if
    it escapes it
  - Every entry is capped at MaxEntrySize bytes after decompression
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type archiveFormat int

const (
	formatUnknown archiveFormat = iota
	formatZip
	formatTarGz
)

func (f archiveFormat) String() string {
	switch f {
	case formatZip:
		return "zip"
	case formatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// archiveWriters holds the writers needed for creating a backup archive
type archiveWriters struct {
	zipWriter *zip.Writer
	hasher    hash.Hash
	counter   *countingWriter
	method    uint16
	closers   []io.Closer
}

// Close closes all writers in reverse order, returning the first error encountered
func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Checksum returns the hex SHA-256 of everything written so far.
func (aw *archiveWriters) Checksum() string {
	return hex.EncodeToString(aw.hasher.Sum(nil))
}

// Size returns the number of archive bytes written so far.
func (aw *archiveWriters) Size() int64 {
	return aw.counter.n
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// syncCloser flushes the file to disk before closing it.
type syncCloser struct {
	f *os.File
}

func (s syncCloser) Close() error {
	if err := s.f.Sync(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

// setupArchiveWriters creates the file, hash and zip writers for a new
// archive at filePath. The file must not exist.
//
//nolint:gosec // G304: filePath is built from the configured work directory
func setupArchiveWriters(filePath string, level int) (*archiveWriters, error) {
	if _, err := flate.NewWriter(io.Discard, level); err != nil {
		return nil, fmt.Errorf("invalid compression level %d: %w", level, err)
	}

	outFile, err := os.OpenFile(filePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	aw := &archiveWriters{
		hasher:  sha256.New(),
		method:  zip.Deflate,
		closers: []io.Closer{syncCloser{outFile}},
	}
	aw.counter = &countingWriter{w: io.MultiWriter(outFile, aw.hasher)}
	aw.zipWriter = zip.NewWriter(aw.counter)

	if level == flate.NoCompression {
		aw.method = zip.Store
	} else {
		aw.zipWriter.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		})
	}
	aw.closers = append(aw.closers, aw.zipWriter)

	return aw, nil
}

// addDirToArchive adds every regular file under root, named by its
// slash-separated path relative to root.
func (aw *archiveWriters) addDirToArchive(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return aw.addFileToArchive(path, filepath.ToSlash(rel))
	})
}

// addFileToArchive adds a file to the zip archive
//
//nolint:gosec // G304: srcPath is inside the staging directory
func (aw *archiveWriters) addFileToArchive(srcPath, name string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", srcPath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", srcPath, err)
	}
	header.Name = name
	header.Method = aw.method

	w, err := aw.zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", name, err)
	}
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to copy %s to archive: %w", srcPath, err)
	}
	return nil
}

// detectFormat reads the leading magic bytes of the file at path.
//
//nolint:gosec // G304: path is an archive chosen by the caller
func detectFormat(path string) (archiveFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return formatUnknown, err
	}
	defer file.Close() //nolint:errcheck // Read-only

	head := make([]byte, 4)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return formatUnknown, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return formatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return formatTarGz, nil
	default:
		return formatUnknown, ErrUnknownFormat
	}
}

// CheckArchive reports whether the file at path looks like a backup archive
// this package can read. It only inspects the magic bytes.
func CheckArchive(path string) error {
	_, err := detectFormat(path)
	return err
}

// extractArchive extracts every regular file of the archive at path into
// destDir.
func extractArchive(ctx context.Context, path, destDir string, maxEntrySize int64) (archiveFormat, error) {
	format, err := detectFormat(path)
	if err != nil {
		return format, err
	}
	switch format {
	case formatZip:
		return format, extractZip(ctx, path, destDir, maxEntrySize)
	default:
		return format, extractTarGz(ctx, path, destDir, maxEntrySize)
	}
}

func extractZip(ctx context.Context, path, destDir string, maxEntrySize int64) error {
	reader, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		reader.Close() //nolint:errcheck // Read-only
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer reader.Close() //nolint:errcheck // Read-only

	for _, f := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
			continue
		}
		if f.UncompressedSize64 > uint64(maxEntrySize) {
			return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrEntryTooLarge, f.Name, f.UncompressedSize64, maxEntrySize)
		}
		if err := extractZipEntry(f, destDir, maxEntrySize); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, destDir string, maxEntrySize int64) error {
	destPath, err := validateAndBuildDestPath(destDir, f.Name)
	if err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	defer rc.Close() //nolint:errcheck // Read-only

	if err := extractFile(rc, destPath, maxEntrySize); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// openArchiveReader opens a gzip'd tar archive and returns a tar reader.
// The caller is responsible for closing the returned closers in reverse order
//
//nolint:gosec // G304: filePath is an archive chosen by the caller
func openArchiveReader(filePath string) (*tar.Reader, []io.Closer, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}

	return tar.NewReader(gzReader), []io.Closer{file, gzReader}, nil
}

// closeAll closes all closers in reverse order
func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close() //nolint:errcheck // Best effort cleanup
	}
}

//nolint:gosec // G110: entry size is capped by extractFile
func extractTarGz(ctx context.Context, path, destDir string, maxEntrySize int64) error {
	tarReader, closers, err := openArchiveReader(path)
	if err != nil {
		return err
	}
	defer closeAll(closers)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %v", ErrUnsafePath, err)
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxEntrySize {
			return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrEntryTooLarge, header.Name, header.Size, maxEntrySize)
		}

		destPath, err := validateAndBuildDestPath(destDir, header.Name)
		if err != nil {
			return err
		}
		if err := extractFile(tarReader, destPath, maxEntrySize); err != nil {
			return fmt.Errorf("failed to extract %s: %w", header.Name, err)
		}
	}
}

// validateAndBuildDestPath validates and builds the destination path for
// an archive-relative name
func validateAndBuildDestPath(baseDir, name string) (string, error) {
	clean := filepath.Clean(baseDir)
	destPath := filepath.Join(clean, filepath.FromSlash(name))

	// Validate path to prevent directory traversal (G305)
	if !strings.HasPrefix(destPath, clean+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	return destPath, nil
}

// extractFile writes at most maxSize bytes from reader to a new file at
// destPath, creating parent directories.
func extractFile(reader io.Reader, destPath string, maxSize int64) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return err
	}

	//nolint:gosec // G304: destPath was validated by validateAndBuildDestPath
	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}

	// Use LimitReader to prevent decompression bomb attacks
	n, err := io.Copy(outFile, io.LimitReader(reader, maxSize+1))
	closeErr := outFile.Close()

	if err == nil && n > maxSize {
		err = fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, maxSize)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return nil
}
