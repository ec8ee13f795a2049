// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/api"
	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/slotserver"
	"github.com/tomtom215/diarykeeper/internal/supervisor"
	"github.com/tomtom215/diarykeeper/internal/supervisor/services"
	"github.com/tomtom215/diarykeeper/internal/version"
)

type configLoader func() (*config.Config, error)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the slot API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg.SlotServer)
		},
	}
}

func serve(ctx context.Context, cfg config.SlotServerConfig) error {
	store, err := slotserver.OpenStore(cfg.DataDir, cfg.MaxUploadSize)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing slot store")
		}
	}()

	stored, err := store.StoredBytes()
	if err != nil {
		return err
	}

	tokens, err := slotserver.NewTokenManager(cfg)
	if err != nil {
		return usageErr{err}
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(api.NewHandler(store, tokens), api.RouterConfigFrom(cfg)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), "slotd", supervisor.TreeConfig{
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddAPIService(services.NewHTTPServerService("slot-api", server, cfg.ShutdownTimeout))

	logging.Info().
		Str("addr", cfg.Addr()).
		Str("data_dir", cfg.DataDir).
		Int64("max_upload_size", cfg.MaxUploadSize).
		Int64("stored_bytes", stored).
		Str("version", version.Version).
		Msg("slotd listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("slotd stopped")
	return nil
}

func newTokenCommand(out io.Writer, load configLoader) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Mint a bearer token for an account",
		Example: "  slotd token --account family",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" {
				return usageErr{errors.New("--account is required")}
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			tokens, err := slotserver.NewTokenManager(cfg.SlotServer)
			if err != nil {
				return usageErr{err}
			}
			token, err := tokens.Issue(account)
			if err != nil {
				return usageErr{err}
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account name the token authenticates")
	return cmd
}
