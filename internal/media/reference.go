// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrInvalidReference is returned for strings that are neither a legacy
	// absolute location nor a canonical <bucket>/<filename>.
	ErrInvalidReference = errors.New("invalid media reference")

	// ErrInvalidBucket is returned for bucket names other than profiles and images.
	ErrInvalidBucket = errors.New("invalid media bucket")

	// ErrInvalidFilename is returned for filenames that are not a single path element.
	ErrInvalidFilename = errors.New("invalid media filename")

	// ErrNotFound is returned when no resolution strategy finds a regular file.
	ErrNotFound = errors.New("media file not found")

	// ErrFileExists is returned when an explicit filename is already taken in
	// its bucket. Stores never replace an existing file.
	ErrFileExists = errors.New("media file already exists")
)

// Bucket is a top-level media directory under the document root.
type Bucket string

const (
	// BucketProfiles holds child profile photos.
	BucketProfiles Bucket = "profiles"
	// BucketImages holds diary entry photos.
	BucketImages Bucket = "images"
)

// Buckets lists every bucket in a stable order.
var Buckets = []Bucket{BucketProfiles, BucketImages}

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	return b == BucketProfiles || b == BucketImages
}

// ParseBucket converts s to a Bucket.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBucket, s)
	}
	return b, nil
}

// Reference is a parsed media reference: LegacyAbsolute or CanonicalRelative.
// ParseReference is the only way to obtain one from stored text.
type Reference interface {
	// String returns the reference exactly as it is stored.
	String() string
	isReference()
}

// LegacyAbsolute is an absolute path or file:// URI written by older
// releases, usually into a volatile cache directory.
type LegacyAbsolute struct {
	// Raw is the stored text.
	Raw string
	// Path is the decoded absolute filesystem path.
	Path string
}

func (l LegacyAbsolute) String() string { return l.Raw }
func (LegacyAbsolute) isReference() {}

// IsFileURI reports whether the stored text used the file:// form.
func (l LegacyAbsolute) IsFileURI() bool {
	return strings.HasPrefix(l.Raw, fileScheme)
}

// CanonicalRelative is <bucket>/<filename> inside durable storage.
type CanonicalRelative struct {
	Bucket   Bucket
	Filename string
}

func (c CanonicalRelative) String() string { return string(c.Bucket) + "/" + c.Filename }
func (CanonicalRelative) isReference() {}

const fileScheme = "file://"

// NewCanonical validates bucket and filename and builds a canonical reference.
func NewCanonical(bucket Bucket, filename string) (CanonicalRelative, error) {
	if !bucket.Valid() {
		return CanonicalRelative{}, fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}
	if err := ValidateFilename(filename); err != nil {
		return CanonicalRelative{}, err
	}
	return CanonicalRelative{Bucket: bucket, Filename: filename}, nil
}

// ValidateFilename checks that name is a single, non-special path element.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidFilename, name)
	}
	return nil
}

// ParseReference classifies stored reference text.
//
//	"/var/mobile/.../Caches/ImagePicker/a.jpg"  -> LegacyAbsolute
//	"file:///var/mobile/.../a.jpg"              -> LegacyAbsolute
//	"images/1700000000000_42.jpg"               -> CanonicalRelative
//	"", "cache/a.jpg", "images/../x"            -> ErrInvalidReference
func ParseReference(s string) (Reference, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidReference)
	}

	if strings.HasPrefix(s, fileScheme) {
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("%w: file URI with host %q", ErrInvalidReference, u.Host)
		}
		if !strings.HasPrefix(u.Path, "/") {
			return nil, fmt.Errorf("%w: file URI without absolute path", ErrInvalidReference)
		}
		return LegacyAbsolute{Raw: s, Path: path.Clean(u.Path)}, nil
	}

	if strings.HasPrefix(s, "/") {
		return LegacyAbsolute{Raw: s, Path: path.Clean(s)}, nil
	}

	bucket, filename, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no bucket", ErrInvalidReference, s)
	}
	c, err := NewCanonical(Bucket(bucket), filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return c, nil
}
