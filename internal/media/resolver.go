// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Strategy names one way of turning a reference into a candidate path.
type Strategy int

const (
	// StrategyVerbatim uses an absolute path reference as-is.
	StrategyVerbatim Strategy = iota
	// StrategyFileURI decodes a file:// URI to its path.
	StrategyFileURI
	// StrategyAbsoluteAsURI reads an absolute path as the path of a file:// URI,
	// so percent-escapes are decoded.
	StrategyAbsoluteAsURI
	// StrategyDocumentRoot resolves the reference under the durable document root.
	StrategyDocumentRoot
	// StrategyCacheRoot resolves the reference under the volatile cache root.
	StrategyCacheRoot
	// StrategyRelocatedCache re-roots the part of a legacy path after its cache
	// directory onto the current cache root. Sandboxes move on reinstall.
	StrategyRelocatedCache
)

func (s Strategy) String() string {
	switch s {
	case StrategyVerbatim:
		return "verbatim"
	case StrategyFileURI:
		return "file_uri"
	case StrategyAbsoluteAsURI:
		return "absolute_as_uri"
	case StrategyDocumentRoot:
		return "document_root"
	case StrategyCacheRoot:
		return "cache_root"
	case StrategyRelocatedCache:
		return "relocated_cache"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Roots are the two storage roots references are resolved against.
type Roots struct {
	Documents string
	Cache     string
}

type candidateFunc func(ref Reference, roots Roots) (string, bool)

// strategies is the resolution order. Earlier entries win.
var strategies = []struct {
	strategy Strategy
	fn       candidateFunc
}{
	{StrategyVerbatim, verbatimCandidate},
	{StrategyFileURI, fileURICandidate},
	{StrategyAbsoluteAsURI, absoluteAsURICandidate},
	{StrategyDocumentRoot, func(ref Reference, roots Roots) (string, bool) {
		return underRoot(roots.Documents, ref)
	}},
	{StrategyCacheRoot, func(ref Reference, roots Roots) (string, bool) {
		return underRoot(roots.Cache, ref)
	}},
	{StrategyRelocatedCache, relocatedCacheCandidate},
}

func verbatimCandidate(ref Reference, _ Roots) (string, bool) {
	l, ok := ref.(LegacyAbsolute)
	if !ok || !strings.HasPrefix(l.Raw, "/") {
		return "", false
	}
	return l.Raw, true
}

func fileURICandidate(ref Reference, _ Roots) (string, bool) {
	l, ok := ref.(LegacyAbsolute)
	if !ok || !l.IsFileURI() {
		return "", false
	}
	return l.Path, true
}

func absoluteAsURICandidate(ref Reference, _ Roots) (string, bool) {
	l, ok := ref.(LegacyAbsolute)
	if !ok || l.IsFileURI() {
		return "", false
	}
	u, err := url.Parse(fileScheme + l.Raw)
	if err != nil || u.Path == l.Raw {
		return "", false
	}
	return u.Path, true
}

// underRoot joins the reference path, leading "/" stripped, onto root.
func underRoot(root string, ref Reference) (string, bool) {
	if root == "" {
		return "", false
	}
	var rel string
	switch r := ref.(type) {
	case CanonicalRelative:
		rel = r.String()
	case LegacyAbsolute:
		rel = strings.TrimPrefix(r.Path, "/")
	}
	if rel == "" {
		return "", false
	}
	return filepath.Join(root, filepath.FromSlash(rel)), true
}

// cacheSegments mark the start of an OS cache directory in a legacy path.
var cacheSegments = []string{"/Caches/", "/cache/"}

func relocatedCacheCandidate(ref Reference, roots Roots) (string, bool) {
	l, ok := ref.(LegacyAbsolute)
	if !ok || roots.Cache == "" {
		return "", false
	}
	best := -1
	var seg string
	for _, s := range cacheSegments {
		if i := strings.LastIndex(l.Path, s); i > best {
			best, seg = i, s
		}
	}
	if best < 0 {
		return "", false
	}
	tail := l.Path[best+len(seg):]
	if tail == "" {
		return "", false
	}
	return filepath.Join(roots.Cache, filepath.FromSlash(tail)), true
}

// Candidate is one path the resolver would try, and the strategy that produced it.
type Candidate struct {
	Strategy Strategy
	Path     string
}

// Resolver finds the physical file for a reference.
type Resolver struct {
	roots Roots
}

// NewResolver returns a resolver for the given document and cache roots.
func NewResolver(documentRoot, cacheRoot string) *Resolver {
	return &Resolver{roots: Roots{Documents: documentRoot, Cache: cacheRoot}}
}

// Candidates lists every candidate path for ref in resolution order, without
// touching the filesystem.
func (r *Resolver) Candidates(ref Reference) []Candidate {
	out := make([]Candidate, 0, len(strategies))
	for _, s := range strategies {
		if p, ok := s.fn(ref, r.roots); ok {
			out = append(out, Candidate{Strategy: s.strategy, Path: p})
		}
	}
	return out
}

// Resolve returns the first candidate that is an existing regular file.
func (r *Resolver) Resolve(ref Reference) (string, error) {
	c, err := r.ResolveCandidate(ref)
	if err != nil {
		return "", err
	}
	return c.Path, nil
}

// ResolveCandidate is Resolve that also reports which strategy matched.
func (r *Resolver) ResolveCandidate(ref Reference) (Candidate, error) {
	for _, c := range r.Candidates(ref) {
		info, err := os.Stat(c.Path)
		if err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return Candidate{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// ResolveString parses raw and resolves it. Invalid references return
// ErrInvalidReference.
func (r *Resolver) ResolveString(raw string) (string, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return "", err
	}
	return r.Resolve(ref)
}

// TargetPath is where ref should live when writing it back: the decoded
// absolute path for legacy references, the bucket file for canonical ones.
func (r *Resolver) TargetPath(ref Reference) string {
	switch v := ref.(type) {
	case LegacyAbsolute:
		return filepath.FromSlash(v.Path)
	case CanonicalRelative:
		return filepath.Join(r.roots.Documents, string(v.Bucket), v.Filename)
	default:
		return ""
	}
}

// InBucket reports whether path is a direct child of bucket's directory under
// the document root.
func (r *Resolver) InBucket(path string, bucket Bucket) bool {
	dir := filepath.Join(r.roots.Documents, string(bucket))
	return filepath.Dir(filepath.Clean(path)) == dir
}
