// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/diarykeeper/internal/database"
)

type staticRefs struct {
	refs []database.MediaRef
	err  error
}

func (s staticRefs) ListMediaReferences(context.Context) ([]database.MediaRef, error) {
	return s.refs, s.err
}

func ageFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

func TestSweep(t *testing.T) {
	roots := newTestRoots(t)
	store := NewStore(roots.docs, ".jpg")
	resolver := NewResolver(roots.docs, roots.cache)
	images := store.BucketDir(BucketImages)
	profiles := store.BucketDir(BucketProfiles)

	files := []struct {
		path string
		age  time.Duration
	}{
		{filepath.Join(images, "live.jpg"), 48 * time.Hour},
		{filepath.Join(images, "orphan.jpg"), 48 * time.Hour},
		{filepath.Join(images, "fresh.jpg"), time.Minute},
		{filepath.Join(images, ".store-123.tmp"), 48 * time.Hour},
		{filepath.Join(profiles, "legacy-in-bucket.jpg"), 48 * time.Hour},
		{filepath.Join(profiles, "old-profile.jpg"), 48 * time.Hour},
	}
	for _, f := range files {
		writeFile(t, f.path, []byte("x"))
		ageFile(t, f.path, f.age)
	}

	refs := staticRefs{refs: []database.MediaRef{
		{Value: "images/live.jpg"},
		{Value: filepath.Join(profiles, "legacy-in-bucket.jpg")},
		{Value: "/somewhere/else.jpg"},
		{Value: "not a ref"},
	}}

	t.Run("dry run removes nothing", func(t *testing.T) {
		report, err := NewSweeper(store, resolver, refs, 24*time.Hour).Sweep(context.Background(), true)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Orphans) != 2 || len(report.Temps) != 1 {
			t.Errorf("orphans=%v temps=%v", report.Orphans, report.Temps)
		}
		for _, f := range files {
			if _, err := os.Stat(f.path); err != nil {
				t.Errorf("dry run removed %s", f.path)
			}
		}
	})

	t.Run("sweep", func(t *testing.T) {
		report, err := NewSweeper(store, resolver, refs, 24*time.Hour).Sweep(context.Background(), false)
		if err != nil {
			t.Fatal(err)
		}
		if report.Kept != 3 {
			t.Errorf("Kept = %d, want 3", report.Kept)
		}

		gone := []string{"orphan.jpg", ".store-123.tmp"}
		for _, name := range gone {
			if _, err := os.Stat(filepath.Join(images, name)); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("%s should be removed", name)
			}
		}
		if _, err := os.Stat(filepath.Join(profiles, "old-profile.jpg")); !errors.Is(err, os.ErrNotExist) {
			t.Error("old-profile.jpg should be removed")
		}
		for _, keep := range []string{
			filepath.Join(images, "live.jpg"),
			filepath.Join(images, "fresh.jpg"),
			filepath.Join(profiles, "legacy-in-bucket.jpg"),
		} {
			if _, err := os.Stat(keep); err != nil {
				t.Errorf("%s should be kept: %v", keep, err)
			}
		}
	})
}

func TestSweepMissingBuckets(t *testing.T) {
	roots := newTestRoots(t)
	report, err := NewSweeper(NewStore(roots.docs, ".jpg"), NewResolver(roots.docs, roots.cache), staticRefs{}, time.Hour).Sweep(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Orphans)+len(report.Temps)+report.Kept != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestSweepListError(t *testing.T) {
	roots := newTestRoots(t)
	boom := errors.New("db gone")
	_, err := NewSweeper(NewStore(roots.docs, ".jpg"), NewResolver(roots.docs, roots.cache), staticRefs{err: boom}, time.Hour).Sweep(context.Background(), false)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestSweepKeepsFilesLegacyReferencesResolveTo(t *testing.T) {
	roots := newTestRoots(t)
	store := NewStore(roots.docs, ".jpg")
	resolver := NewResolver(roots.docs, roots.cache)

	// "/images/x.jpg" resolves through the document root and the file URI
	// through its decoded path. Neither sits where migration would put it.
	underDocs := filepath.Join(store.BucketDir(BucketImages), "x.jpg")
	writeFile(t, underDocs, []byte("x"))
	ageFile(t, underDocs, 48*time.Hour)
	viaURI := filepath.Join(store.BucketDir(BucketProfiles), "p.jpg")
	writeFile(t, viaURI, []byte("p"))
	ageFile(t, viaURI, 48*time.Hour)
	orphan := filepath.Join(store.BucketDir(BucketImages), "orphan.jpg")
	writeFile(t, orphan, []byte("o"))
	ageFile(t, orphan, 48*time.Hour)

	values := []string{"/images/x.jpg", "file://" + filepath.ToSlash(viaURI)}
	refs := staticRefs{}
	for _, v := range values {
		refs.refs = append(refs.refs, database.MediaRef{Value: v})
		if _, err := resolver.ResolveString(v); err != nil {
			t.Fatalf("ResolveString(%q) before sweep: %v", v, err)
		}
	}

	report, err := NewSweeper(store, resolver, refs, 24*time.Hour).Sweep(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != orphan {
		t.Errorf("Orphans = %v, want [%s]", report.Orphans, orphan)
	}
	for _, v := range values {
		if _, err := resolver.ResolveString(v); err != nil {
			t.Errorf("ResolveString(%q) after sweep: %v", v, err)
		}
	}
}
