// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package migration

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/media"
)

type testEnv struct {
	db       *database.DB
	resolver *media.Resolver
	store    *media.Store
	docs     string
	cache    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	docs := filepath.Join(base, "Documents")
	cache := filepath.Join(base, "Library", "Caches")

	db, err := database.Open(filepath.Join(docs, "SQLite", "diaryapp.db"), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := media.NewStore(docs, ".jpg")
	if err := store.InitializeDirectories(); err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		db:       db,
		resolver: media.NewResolver(docs, cache),
		store:    store,
		docs:     docs,
		cache:    cache,
	}
}

func (e *testEnv) runner(opts Options) *Runner {
	if opts.AppVersion == "" {
		opts.AppVersion = "2.0.0"
	}
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	return NewRunner(e.db, e.resolver, e.store, opts)
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

// insertEntryWithID creates a diary entry with a fixed ID.
func insertEntryWithID(t *testing.T, db *database.DB, id int64) {
	t.Helper()
	err := db.Shared(context.Background(), func(conn *sql.DB) error {
		_, err := conn.Exec(`INSERT INTO diary_entry (id, content) VALUES (?, 'entry')`, id)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCacheReferenceMigratesToImagesBucket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cached := filepath.Join(env.cache, "Containers", "Data", "cache", "img123.jpg")
	writeFile(t, cached, "jpeg bytes")

	insertEntryWithID(t, env.db, 42)
	picID, err := env.db.InsertPicture(ctx, database.Picture{DiaryEntryID: 42, ImageURI: "file://" + cached})
	if err != nil {
		t.Fatal(err)
	}

	report, err := env.runner(Options{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Migrated != 1 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}

	pic, err := env.db.GetPicture(ctx, picID)
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^images/diary_42_\d+\.jpg$`).MatchString(pic.ImageURI) {
		t.Fatalf("ImageURI = %q, want images/diary_42_<ts>.jpg", pic.ImageURI)
	}

	path, err := env.resolver.ResolveString(pic.ImageURI)
	if err != nil {
		t.Fatalf("resolve migrated reference: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "jpeg bytes" {
		t.Errorf("migrated bytes = %q", got)
	}
}

func TestMigrationConverges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	src := filepath.Join(env.cache, "ImagePicker", "a.jpg")
	writeFile(t, src, "a")
	profileSrc := filepath.Join(env.cache, "ImagePicker", "p.png")
	writeFile(t, profileSrc, "p")

	childID, _ := env.db.InsertChild(ctx, database.Child{FirstName: "A", LastName: "B", BirthDate: "2020-01-01", PhotoURL: profileSrc})
	entryID, _ := env.db.InsertEntry(ctx, database.Entry{ChildID: childID, Content: "x"})
	for _, uri := range []string{src, src, "/gone/missing.jpg", "images/already.jpg", "bogus"} {
		if _, err := env.db.InsertPicture(ctx, database.Picture{DiaryEntryID: entryID, ImageURI: uri}); err != nil {
			t.Fatal(err)
		}
	}

	first, err := env.runner(Options{}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Skipped {
		t.Fatal("first run should not be skipped")
	}
	if first.Migrated != 3 {
		t.Errorf("Migrated = %d, want 3", first.Migrated)
	}
	if first.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", first.Unchanged)
	}
	if len(first.Failures) != 2 {
		t.Fatalf("Failures = %+v, want 2", first.Failures)
	}
	reasons := map[string]bool{}
	for _, f := range first.Failures {
		reasons[f.Reason] = true
		if !errors.Is(f.Err, fault.ErrMigrationRow) {
			t.Errorf("failure err %v is not MigrationRow", f.Err)
		}
	}
	if !reasons[ReasonSourceMissing] || !reasons[ReasonInvalidReference] {
		t.Errorf("reasons = %v", reasons)
	}

	// Every reference is now canonical or recorded as a failure.
	refs, _ := env.db.ListMediaReferences(ctx)
	seen := map[string]bool{}
	for _, r := range refs {
		parsed, err := media.ParseReference(r.Value)
		if err != nil || parsed == nil {
			continue
		}
		if l, ok := parsed.(media.LegacyAbsolute); ok && l.Raw != "/gone/missing.jpg" {
			t.Errorf("legacy reference left behind: %q", r.Value)
		}
		if c, ok := parsed.(media.CanonicalRelative); ok && c.Bucket == media.BucketImages && c.Filename != "already.jpg" {
			if seen[c.Filename] {
				t.Errorf("two rows share migrated filename %q", c.Filename)
			}
			seen[c.Filename] = true
		}
	}

	child, _ := env.db.GetChild(ctx, childID)
	if !regexp.MustCompile(`^profiles/profile_\d+_\d+\.png$`).MatchString(child.PhotoURL) {
		t.Errorf("PhotoURL = %q", child.PhotoURL)
	}

	marker, found, _ := env.db.GetMeta(ctx, database.MetaAppVersion)
	if !found || marker != "2.0.0" {
		t.Errorf("marker = %q (found %v), want 2.0.0 despite failures", marker, found)
	}

	second, err := env.runner(Options{}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Skipped || second.Migrated != 0 {
		t.Errorf("second run = %+v, want skipped with zero updates", second)
	}

	forced, err := env.runner(Options{Force: true}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Migrated != 0 {
		t.Errorf("forced run migrated %d rows, want 0", forced.Migrated)
	}
}

func TestLegacyPathInsideBucketIsRewrittenWithoutCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inBucket := filepath.Join(env.docs, "images", "1700_1.jpg")
	writeFile(t, inBucket, "x")

	entryID, _ := env.db.InsertEntry(ctx, database.Entry{Content: "x"})
	picID, _ := env.db.InsertPicture(ctx, database.Picture{DiaryEntryID: entryID, ImageURI: inBucket})

	report, err := env.runner(Options{}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Migrated != 1 {
		t.Fatalf("report = %+v", report)
	}

	pic, _ := env.db.GetPicture(ctx, picID)
	if pic.ImageURI != "images/1700_1.jpg" {
		t.Errorf("ImageURI = %q, want images/1700_1.jpg", pic.ImageURI)
	}
	entries, _ := os.ReadDir(filepath.Join(env.docs, "images"))
	if len(entries) != 1 {
		t.Errorf("bucket has %d files, want 1 (no copy)", len(entries))
	}
}

func TestVersionGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.db.SetMeta(ctx, database.MetaAppVersion, "2.0.0"); err != nil {
		t.Fatal(err)
	}
	report, err := env.runner(Options{AppVersion: "2.0.0"}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped || report.FromVersion != "2.0.0" {
		t.Errorf("report = %+v", report)
	}

	report, err = env.runner(Options{AppVersion: "2.1.0"}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped || report.FromVersion != "2.0.0" || report.ToVersion != "2.1.0" {
		t.Errorf("report = %+v", report)
	}
}

func TestStampIsStrictlyIncreasing(t *testing.T) {
	r := &Runner{now: func() time.Time { return time.UnixMilli(1000) }}
	a, b, c := r.stamp(), r.stamp(), r.stamp()
	if !(a < b && b < c) {
		t.Errorf("stamps %d %d %d not increasing", a, b, c)
	}
}
