// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testRoots struct {
	docs  string
	cache string
	other string
}

func newTestRoots(t *testing.T) testRoots {
	t.Helper()
	base := t.TempDir()
	r := testRoots{
		docs:  filepath.Join(base, "Documents"),
		cache: filepath.Join(base, "Caches"),
		other: filepath.Join(base, "elsewhere"),
	}
	for _, d := range []string{r.docs, r.cache, r.other} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func mustParse(t *testing.T, s string) Reference {
	t.Helper()
	ref, err := ParseReference(s)
	if err != nil {
		t.Fatalf("ParseReference(%q): %v", s, err)
	}
	return ref
}

func TestResolveStrategies(t *testing.T) {
	roots := newTestRoots(t)
	r := NewResolver(roots.docs, roots.cache)

	absolute := filepath.Join(roots.other, "a.jpg")
	writeFile(t, absolute, []byte("a"))

	spaced := filepath.Join(roots.other, "My Photo.jpg")
	writeFile(t, spaced, []byte("b"))

	canonical := filepath.Join(roots.docs, "images", "c.jpg")
	writeFile(t, canonical, []byte("c"))

	cached := filepath.Join(roots.cache, "images", "d.jpg")
	writeFile(t, cached, []byte("d"))

	// A path from a previous sandbox whose cache directory moved.
	relocated := filepath.Join(roots.cache, "ImagePicker", "e.jpg")
	writeFile(t, relocated, []byte("e"))

	tests := []struct {
		name     string
		ref      string
		wantPath string
		wantVia  Strategy
	}{
		{"verbatim", absolute, absolute, StrategyVerbatim},
		{"file uri", "file://" + absolute, absolute, StrategyFileURI},
		{"absolute with escapes", filepath.Join(roots.other, "My%20Photo.jpg"), spaced, StrategyAbsoluteAsURI},
		{"canonical under documents", "images/c.jpg", canonical, StrategyDocumentRoot},
		{"canonical only in cache", "images/d.jpg", cached, StrategyCacheRoot},
		{"relocated sandbox", "/var/mobile/Containers/Data/OLD-UUID/Library/Caches/ImagePicker/e.jpg", relocated, StrategyRelocatedCache},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.ResolveCandidate(mustParse(t, tt.ref))
			if err != nil {
				t.Fatalf("ResolveCandidate: %v", err)
			}
			if c.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", c.Path, tt.wantPath)
			}
			if c.Strategy != tt.wantVia {
				t.Errorf("Strategy = %s, want %s", c.Strategy, tt.wantVia)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	roots := newTestRoots(t)
	r := NewResolver(roots.docs, roots.cache)

	// A directory is not a media file.
	if err := os.MkdirAll(filepath.Join(roots.docs, "images", "dir.jpg"), 0o750); err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{"images/missing.jpg", "/nowhere/x.jpg", "file:///nowhere/y.jpg", "images/dir.jpg"} {
		if _, err := r.Resolve(mustParse(t, ref)); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) err = %v, want ErrNotFound", ref, err)
		}
	}
}

func TestResolveString(t *testing.T) {
	roots := newTestRoots(t)
	r := NewResolver(roots.docs, roots.cache)

	if _, err := r.ResolveString("garbage"); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("err = %v, want ErrInvalidReference", err)
	}
}

func TestCandidatesOrder(t *testing.T) {
	r := NewResolver("/docs", "/cache")

	got := r.Candidates(mustParse(t, "/var/Caches/ImagePicker/a%20b.jpg"))
	want := []Candidate{
		{StrategyVerbatim, "/var/Caches/ImagePicker/a%20b.jpg"},
		{StrategyAbsoluteAsURI, "/var/Caches/ImagePicker/a b.jpg"},
		{StrategyDocumentRoot, "/docs/var/Caches/ImagePicker/a%20b.jpg"},
		{StrategyCacheRoot, "/cache/var/Caches/ImagePicker/a%20b.jpg"},
		{StrategyRelocatedCache, "/cache/ImagePicker/a%20b.jpg"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	canon := r.Candidates(mustParse(t, "profiles/p.jpg"))
	if len(canon) != 2 || canon[0].Strategy != StrategyDocumentRoot || canon[1].Strategy != StrategyCacheRoot {
		t.Errorf("canonical candidates = %+v", canon)
	}
}

func TestTargetPath(t *testing.T) {
	r := NewResolver("/docs", "/cache")

	if got := r.TargetPath(mustParse(t, "images/a.jpg")); got != "/docs/images/a.jpg" {
		t.Errorf("canonical TargetPath = %q", got)
	}
	if got := r.TargetPath(mustParse(t, "/old/device/cache/a.jpg")); got != "/old/device/cache/a.jpg" {
		t.Errorf("legacy TargetPath = %q", got)
	}
	if got := r.TargetPath(mustParse(t, "file:///old/My%20Pic.jpg")); got != "/old/My Pic.jpg" {
		t.Errorf("file uri TargetPath = %q", got)
	}
}

func TestInBucket(t *testing.T) {
	r := NewResolver("/docs", "/cache")
	if !r.InBucket("/docs/images/a.jpg", BucketImages) {
		t.Error("expected /docs/images/a.jpg in images")
	}
	if r.InBucket("/docs/images/sub/a.jpg", BucketImages) {
		t.Error("nested path is not a direct bucket child")
	}
	if r.InBucket("/docs/profiles/a.jpg", BucketImages) {
		t.Error("profiles file is not in images")
	}
}

func TestStrategyString(t *testing.T) {
	if StrategyRelocatedCache.String() != "relocated_cache" {
		t.Errorf("String() = %q", StrategyRelocatedCache.String())
	}
	if Strategy(99).String() != "strategy(99)" {
		t.Errorf("unknown String() = %q", Strategy(99).String())
	}
}
