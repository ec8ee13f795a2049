// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package backup

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/media"
)

// testEnv is one simulated install: document root, cache root, database.
type testEnv struct {
	base     string
	docs     string
	cache    string
	db       *database.DB
	resolver *media.Resolver
	store    *media.Store
	cfg      Config
}

// newTestEnv creates a fresh install under a temp directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	docs := filepath.Join(base, "Documents")
	cache := filepath.Join(base, "Library", "Caches")

	db, err := database.Open(filepath.Join(docs, "SQLite", "diaryapp.db"), time.Second)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := media.NewStore(docs, ".jpg")
	if err := store.InitializeDirectories(); err != nil {
		t.Fatalf("failed to initialize directories: %v", err)
	}

	return &testEnv{
		base:     base,
		docs:     docs,
		cache:    cache,
		db:       db,
		resolver: media.NewResolver(docs, cache),
		store:    store,
		cfg: Config{
			WorkDir:          filepath.Join(docs, "backup"),
			Workers:          2,
			CompressionLevel: 6,
		},
	}
}

func (e *testEnv) archiver() *Archiver {
	return NewArchiver(e.db, e.resolver, e.cfg)
}

func (e *testEnv) engine() *RestoreEngine {
	return NewRestoreEngine(e.db, e.resolver, e.cfg)
}

// storeImage stores data as a new image and returns its reference.
func (e *testEnv) storeImage(t *testing.T, data string) string {
	t.Helper()
	ref, err := e.store.StoreReader(context.Background(), bytes.NewReader([]byte(data)), media.BucketImages, "")
	if err != nil {
		t.Fatalf("failed to store image: %v", err)
	}
	return ref.String()
}

// addEntryWithPictures inserts an entry with one picture per reference.
func (e *testEnv) addEntryWithPictures(t *testing.T, content string, refs ...string) int64 {
	t.Helper()
	ctx := context.Background()
	entryID, err := e.db.InsertEntry(ctx, database.Entry{Content: content})
	if err != nil {
		t.Fatalf("failed to insert entry: %v", err)
	}
	for _, ref := range refs {
		if _, err := e.db.InsertPicture(ctx, database.Picture{DiaryEntryID: entryID, ImageURI: ref}); err != nil {
			t.Fatalf("failed to insert picture: %v", err)
		}
	}
	return entryID
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// zipEntries returns the archive's entries by name.
func zipEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer reader.Close()

	entries := make(map[string]string, len(reader.File))
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		entries[f.Name] = string(data)
	}
	return entries
}

// snapshotBytes returns a valid database file holding one child row.
func snapshotBytes(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snap.db")
	db, err := database.Open(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertChild(context.Background(), database.Child{FirstName: "Snap", LastName: "Shot", BirthDate: "2019-05-05"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Checkpoint(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// writeZip writes a zip archive with the given entries.
func writeZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

// writeTarGz writes a gzip'd tar archive with the given entries.
func writeTarGz(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o600, Size: int64(len(data)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

// pictureCount returns the number of diary_picture rows.
func pictureCount(t *testing.T, db *database.DB) int64 {
	t.Helper()
	counts, err := db.RecordCounts(context.Background())
	if err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	return counts.Pictures
}

// archivedDatabase extracts the database entry of a backup archive and opens
// it read-write from a temp copy.
func archivedDatabase(t *testing.T, archivePath string) *database.DB {
	t.Helper()
	data, ok := zipEntries(t, archivePath)[DefaultDatabaseEntry]
	if !ok {
		t.Fatalf("archive has no %s entry", DefaultDatabaseEntry)
	}
	path := filepath.Join(t.TempDir(), DefaultDatabaseEntry)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	db, err := database.Open(path, time.Second)
	if err != nil {
		t.Fatalf("failed to open archived database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// mediaValues returns every stored reference value of db, sorted.
func mediaValues(t *testing.T, db *database.DB) []string {
	t.Helper()
	refs, err := db.ListMediaReferences(context.Background())
	if err != nil {
		t.Fatalf("failed to list media references: %v", err)
	}
	values := make([]string, 0, len(refs))
	for _, r := range refs {
		values = append(values, r.Value)
	}
	sort.Strings(values)
	return values
}
