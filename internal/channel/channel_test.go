// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package channel

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/diarykeeper/internal/backup"
	"github.com/tomtom215/diarykeeper/internal/fault"
)

// fakeCloud keeps one slot in memory.
type fakeCloud struct {
	availErr    error
	uploadErr   error
	downloadErr error
	slot        []byte
	uploads     int
}

func (f *fakeCloud) Available(context.Context) error { return f.availErr }

func (f *fakeCloud) Upload(_ context.Context, _ string, r io.Reader, size int64) error {
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("short upload")
	}
	f.slot = data
	return nil
}

func (f *fakeCloud) Download(_ context.Context, _ string, w io.Writer) error {
	if f.downloadErr != nil {
		_, _ = w.Write([]byte("partial"))
		return f.downloadErr
	}
	_, err := w.Write(f.slot)
	return err
}

// fakeBuilder writes a small zip into its work directory.
type fakeBuilder struct {
	workDir string
	err     error
	calls   int
}

func (b *fakeBuilder) CreateBackup(context.Context) (*backup.Result, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	path := filepath.Join(b.workDir, backup.DefaultArchiveName)
	data := zipBytes()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return &backup.Result{ID: "test", ArchivePath: path, Size: int64(len(data))}, nil
}

// fakeRestorer records what it was asked to restore and honours RemoveSource.
type fakeRestorer struct {
	path     string
	opts     backup.RestoreOptions
	contents []byte
	calls    int
}

func (r *fakeRestorer) Restore(_ context.Context, path string, opts backup.RestoreOptions) (*backup.RestoreReport, error) {
	r.calls++
	r.path = path
	r.opts = opts
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r.contents = data
	if opts.RemoveSource {
		_ = os.Remove(path)
	}
	return &backup.RestoreReport{ID: "test", DatabaseRestored: true, RestartRequired: true}, nil
}

func zipBytes() []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("diaryapp.db")
	_, _ = w.Write([]byte("db"))
	_ = zw.Close()
	return buf.Bytes()
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCloudBackup(t *testing.T) {
	workDir := t.TempDir()
	cloud := &fakeCloud{}
	builder := &fakeBuilder{workDir: workDir}
	cc := NewCloudChannel(cloud, builder, &fakeRestorer{}, workDir)

	result, err := cc.CloudBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", result.ID)
	assert.Equal(t, zipBytes(), cloud.slot)
	assert.Empty(t, dirEntries(t, workDir), "local archive should be removed after upload")
}

func TestCloudBackupUnavailableBuildsNothing(t *testing.T) {
	workDir := t.TempDir()
	cloud := &fakeCloud{availErr: fault.Unavailable("cloud probe", errors.New("dial tcp: refused"))}
	builder := &fakeBuilder{workDir: workDir}
	cc := NewCloudChannel(cloud, builder, &fakeRestorer{}, workDir)

	_, err := cc.CloudBackup(context.Background())
	assert.ErrorIs(t, err, fault.ErrUnavailable)
	assert.Zero(t, builder.calls)
	assert.Zero(t, cloud.uploads)
	assert.Empty(t, dirEntries(t, workDir))
}

func TestCloudBackupUploadFailureRemovesArchive(t *testing.T) {
	workDir := t.TempDir()
	cloud := &fakeCloud{uploadErr: fault.Unavailable("cloud upload", errors.New("reset"))}
	cc := NewCloudChannel(cloud, &fakeBuilder{workDir: workDir}, &fakeRestorer{}, workDir)

	_, err := cc.CloudBackup(context.Background())
	assert.ErrorIs(t, err, fault.ErrUnavailable)
	assert.Empty(t, dirEntries(t, workDir))
}

func TestCloudBackupBuildFailure(t *testing.T) {
	boom := fault.TransientIO("backup", "diaryapp.db", errors.New("disk full"))
	cloud := &fakeCloud{}
	cc := NewCloudChannel(cloud, &fakeBuilder{err: boom}, &fakeRestorer{}, t.TempDir())

	_, err := cc.CloudBackup(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cloud.uploads)
}

func TestCloudRestore(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "backup")
	cloud := &fakeCloud{slot: zipBytes()}
	restorer := &fakeRestorer{}
	cc := NewCloudChannel(cloud, &fakeBuilder{}, restorer, workDir)

	report, err := cc.CloudRestore(context.Background())
	require.NoError(t, err)
	assert.True(t, report.RestartRequired)
	assert.Equal(t, workDir, filepath.Dir(restorer.path))
	assert.True(t, restorer.opts.RemoveSource)
	assert.Equal(t, zipBytes(), restorer.contents)
	assert.Empty(t, dirEntries(t, workDir))
}

func TestCloudRestoreFailures(t *testing.T) {
	tests := []struct {
		name  string
		cloud *fakeCloud
		want  error
	}{
		{"unavailable", &fakeCloud{availErr: fault.Unavailable("cloud probe", ErrUnauthorized)}, fault.ErrUnavailable},
		{"empty slot", &fakeCloud{downloadErr: ErrSlotEmpty}, ErrSlotEmpty},
		{"download dropped", &fakeCloud{downloadErr: fault.Unavailable("cloud download", io.ErrUnexpectedEOF)}, fault.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workDir := t.TempDir()
			restorer := &fakeRestorer{}
			cc := NewCloudChannel(tt.cloud, &fakeBuilder{}, restorer, workDir)

			_, err := cc.CloudRestore(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, restorer.calls)
			assert.Empty(t, dirEntries(t, workDir), "partial download should be removed")
		})
	}
}

func TestExport(t *testing.T) {
	workDir := t.TempDir()
	dest := filepath.Join(t.TempDir(), "share", "journal.zip")
	files := NewFiles(&fakeBuilder{workDir: workDir}, &fakeRestorer{}, workDir)

	_, err := files.Export(context.Background(), dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, zipBytes(), data)
	assert.Empty(t, dirEntries(t, workDir))
}

func TestImport(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(t.TempDir(), "picked.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(), 0o600))
	restorer := &fakeRestorer{}
	files := NewFiles(&fakeBuilder{}, restorer, workDir)

	_, err := files.Import(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, workDir, filepath.Dir(restorer.path))
	assert.True(t, restorer.opts.RemoveSource)
	assert.Equal(t, zipBytes(), restorer.contents)
	assert.FileExists(t, src, "picked file must be left alone")
	assert.Empty(t, dirEntries(t, workDir))
}

func TestImportRejectsNonArchive(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("just some text"), 0o600))
	restorer := &fakeRestorer{}
	files := NewFiles(&fakeBuilder{}, restorer, workDir)

	_, err := files.Import(context.Background(), src)
	assert.ErrorIs(t, err, fault.ErrStructural)
	assert.ErrorIs(t, err, backup.ErrUnknownFormat)
	assert.Zero(t, restorer.calls)
	assert.Empty(t, dirEntries(t, workDir))
}

func TestImportMissingSource(t *testing.T) {
	files := NewFiles(&fakeBuilder{}, &fakeRestorer{}, t.TempDir())
	_, err := files.Import(context.Background(), filepath.Join(t.TempDir(), "gone.zip"))
	assert.ErrorIs(t, err, fault.ErrTransientIO)
}
