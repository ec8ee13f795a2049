// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package slotserver holds the storage and credentials behind slotd, the
self-hosted service that backs the cloud channel.

Storage Layout:

	<dataDir>/
	├── .index/              # BadgerDB: slot:<account>:<name> -> SlotInfo JSON
	└── <account>/
	    └── <name>           # slot bytes, replaced atomically on every PUT

Slot bytes are streamed to a temp file in the account directory, hashed and
size-capped on the way, synced and renamed over the previous slot. The index
entry is written under the same lock as the rename, so a reader never sees
bytes and metadata from different uploads.

Credentials are HS256 JWTs whose subject is the account name. Tokens are
minted with `slotd token --account <name>` and verified on every request.
*/
package slotserver
