// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package main is slotd, the self-hosted cloud slot service for DiaryKeeper.
//
// slotd stores one archive per slot per account and serves the slot API
// that the diarykeeper cloud-backup and cloud-restore commands talk to:
//
//	PUT  /v1/slots/{name}   replace a slot
//	GET  /v1/slots/{name}   download a slot
//	HEAD /v1/slots/{name}   size and checksum only
//	GET  /v1/slots          list the account's slots
//	GET  /healthz           liveness
//	GET  /metrics           Prometheus metrics
//
// Accounts are identified by HS256 bearer tokens minted with
// `slotd token --account <name>` using the same SLOTD_JWT_SECRET.
//
// # Example Usage
//
//	export SLOTD_JWT_SECRET=$(openssl rand -base64 48)
//	export SLOTD_DATA_DIR=/srv/slots
//	slotd token --account family
//	slotd serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/version"
)

const (
	exitGeneric = 1
	exitUsage   = 2
)

// usageErr marks configuration and command line errors.
type usageErr struct{ err error }

func (e usageErr) Error() string { return e.err.Error() }
func (e usageErr) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(out, errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
		var ue usageErr
		if errors.As(err, &ue) {
			return exitUsage
		}
		return exitGeneric
	}
	return 0
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "slotd",
		Short:         "Self-hosted cloud slot service for DiaryKeeper backups",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr{err}
	})
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := loadConfig(configPath, errOut)
		if err != nil {
			return nil, usageErr{err}
		}
		return cfg, nil
	}

	cmd.AddCommand(newServeCommand(load), newTokenCommand(out, load))
	return cmd
}

// loadConfig loads the shared configuration, checks the slot server
// section and initializes logging.
func loadConfig(path string, logOut io.Writer) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateSlotServer(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    logOut,
	})
	return cfg, nil
}
