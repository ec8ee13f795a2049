// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

/*
Package channel moves finished backup archives off the device and brings them
back.

Two channels exist:

  - Cloud: a single fixed slot (diary_app_backup.zip) on the DiaryKeeper slot
    service. A new upload overwrites the previous one; there is no versioning.
  - Files: an archive copied to or picked from a user-chosen path, the target
    of the platform share and save flows.

Key Components:

  - Cloud: the transport contract (Available, Upload, Download)
  - SlotClient: Cloud implementation over HTTP with a circuit breaker and
    rate-paced retries of idempotent requests
  - CloudChannel: CloudBackup and CloudRestore built on a Cloud
  - Files: Export and Import for the file channel

Failure Model:

Cloud availability is checked before any archive is built or any download
starts, so a channel that is down (unreachable, rejected credentials, service
unavailable, breaker open) surfaces as fault.Unavailable with nothing local
changed. Downloaded and imported archives are handed to the restore engine
with RemoveSource set, so they never outlive the restore.

Usage:

	client, err := channel.NewSlotClient(cfg.Cloud)
	if err != nil {
	    return err
	}
	cc := channel.NewCloudChannel(client, archiver, engine, backupCfg.WorkDir)
	if _, err := cc.CloudBackup(ctx); errors.Is(err, fault.ErrUnavailable) {
	    // tell the user the cloud is unreachable; nothing was built
	}
*/
package channel
