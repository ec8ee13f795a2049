// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/channel"
	"github.com/tomtom215/diarykeeper/internal/models"
)

func newCloudBackupCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "cloud-backup",
		Short: "Back up and upload the archive to the cloud slot",
		Long: "Checks that the slot service is reachable before building anything, then\n" +
			"builds an archive, uploads it over the previous one and deletes the local\n" +
			"copy. An unreachable service exits with code 4.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				cloud, _, err := a.cloud()
				if err != nil {
					return err
				}
				result, err := cloud.CloudBackup(cmd.Context())
				if err != nil {
					return err
				}
				return deps.emit(result, func(w io.Writer) error {
					return writeBackupResult(w, result, "cloud:"+channel.SlotName)
				})
			})
		},
	}
}

func newCloudRestoreCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "cloud-restore",
		Short: "Download the cloud slot and restore it",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				cloud, _, err := a.cloud()
				if err != nil {
					return err
				}
				report, err := cloud.CloudRestore(cmd.Context())
				return deps.emitRestore(report, err)
			})
		},
	}
}

type cloudStatus struct {
	URL     string           `json:"url"`
	Breaker string           `json:"breaker"`
	Account string           `json:"account"`
	Slot    *models.SlotInfo `json:"slot,omitempty"`
}

func (s cloudStatus) write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "url=%s account=%s breaker=%s\n", s.URL, s.Account, s.Breaker); err != nil {
		return err
	}
	if s.Slot == nil {
		_, err := fmt.Fprintf(w, "slot %s: empty\n", channel.SlotName)
		return err
	}
	_, err := fmt.Fprintf(w, "slot %s: size=%d sha256=%s updated=%s\n",
		s.Slot.Name, s.Slot.Size, s.Slot.SHA256, s.Slot.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func newCloudStatusCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "cloud-status",
		Short: "Show what the cloud slot holds",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.withApp(func(a *app) error {
				_, client, err := a.cloud()
				if err != nil {
					return err
				}
				list, err := client.List(cmd.Context())
				if err != nil {
					return err
				}

				status := cloudStatus{
					URL:     a.cfg.Cloud.URL,
					Breaker: client.BreakerState(),
					Account: list.Account,
				}
				for i := range list.Slots {
					if list.Slots[i].Name == channel.SlotName {
						status.Slot = &list.Slots[i]
					}
				}
				return deps.emit(status, status.write)
			})
		},
	}
}
