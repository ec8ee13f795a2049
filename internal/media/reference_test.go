// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package media

import (
	"errors"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Reference
		wantErr error
	}{
		{
			name: "canonical image",
			in:   "images/1700000000000_42.jpg",
			want: CanonicalRelative{Bucket: BucketImages, Filename: "1700000000000_42.jpg"},
		},
		{
			name: "canonical profile",
			in:   "profiles/p.png",
			want: CanonicalRelative{Bucket: BucketProfiles, Filename: "p.png"},
		},
		{
			name: "absolute path",
			in:   "/var/mobile/Containers/Data/Library/Caches/ImagePicker/a.jpg",
			want: LegacyAbsolute{
				Raw:  "/var/mobile/Containers/Data/Library/Caches/ImagePicker/a.jpg",
				Path: "/var/mobile/Containers/Data/Library/Caches/ImagePicker/a.jpg",
			},
		},
		{
			name: "file uri with escapes",
			in:   "file:///data/user/0/app/cache/My%20Photo.jpg",
			want: LegacyAbsolute{Raw: "file:///data/user/0/app/cache/My%20Photo.jpg", Path: "/data/user/0/app/cache/My Photo.jpg"},
		},
		{
			name: "file uri localhost",
			in:   "file://localhost/tmp/a.jpg",
			want: LegacyAbsolute{Raw: "file://localhost/tmp/a.jpg", Path: "/tmp/a.jpg"},
		},
		{name: "empty", in: "", wantErr: ErrInvalidReference},
		{name: "blank", in: "   ", wantErr: ErrInvalidReference},
		{name: "unknown bucket", in: "cache/a.jpg", wantErr: ErrInvalidReference},
		{name: "no bucket", in: "a.jpg", wantErr: ErrInvalidReference},
		{name: "traversal", in: "images/../secret", wantErr: ErrInvalidReference},
		{name: "nested", in: "images/sub/a.jpg", wantErr: ErrInvalidReference},
		{name: "dot filename", in: "images/..", wantErr: ErrInvalidReference},
		{name: "remote host uri", in: "file://server/share/a.jpg", wantErr: ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseReference(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want the stored text %q", got.String(), tt.in)
			}
		})
	}
}

func TestNewCanonical(t *testing.T) {
	if _, err := NewCanonical("videos", "a.mp4"); !errors.Is(err, ErrInvalidBucket) {
		t.Errorf("err = %v, want ErrInvalidBucket", err)
	}
	if _, err := NewCanonical(BucketImages, "a/b.jpg"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("err = %v, want ErrInvalidFilename", err)
	}
	c, err := NewCanonical(BucketImages, "a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if c.String() != "images/a.jpg" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestParseBucket(t *testing.T) {
	for _, b := range []string{"profiles", "images"} {
		if _, err := ParseBucket(b); err != nil {
			t.Errorf("ParseBucket(%q): %v", b, err)
		}
	}
	if _, err := ParseBucket("Images"); !errors.Is(err, ErrInvalidBucket) {
		t.Errorf("bucket names are case sensitive, got %v", err)
	}
}
