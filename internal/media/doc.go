// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package media stores journal photos and resolves stored references to files.

# References

A reference is the text saved in child.photo_url or diary_picture.image_uri.
ParseReference classifies it:

  - CanonicalRelative: "<bucket>/<filename>", bucket profiles or images,
    relative to the durable document root. Everything written today.
  - LegacyAbsolute: an absolute path or file:// URI, usually into an OS cache
    directory, written by older releases.

# Resolution

Resolver tries an ordered list of strategies and returns the first candidate
that is a regular file:

	verbatim -> file_uri -> absolute_as_uri -> document_root -> cache_root -> relocated_cache

Candidates exposes the list without touching the filesystem, which is what
`diarykeeper resolve --explain` prints.

# Storage

Store copies bytes into <documentRoot>/<bucket>/ through a synced temp file
and a rename, so a failed store never leaves a partial file behind.
Sweeper removes bucket files that nothing references once they are older
than the grace period.
*/
package media
