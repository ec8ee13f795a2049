// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/diarykeeper/internal/media"
)

func newStoreCommand(deps commandDeps) *cobra.Command {
	var (
		bucket   string
		filename string
	)
	cmd := &cobra.Command{
		Use:   "store <source>",
		Short: "Copy a photo into a media bucket and print its reference",
		Example: "  diarykeeper store ~/Pictures/first-steps.jpg\n" +
			"  diarykeeper store --bucket profiles --name profile_3.jpg avatar.jpg",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := media.ParseBucket(bucket)
			if err != nil {
				return usageError(err)
			}
			if filename != "" {
				if err := media.ValidateFilename(filename); err != nil {
					return usageError(err)
				}
			}
			return deps.withApp(func(a *app) error {
				ref, err := a.store.Store(cmd.Context(), args[0], b, filename)
				if err != nil {
					return err
				}
				payload := map[string]string{
					"reference": ref.String(),
					"path":      a.resolver.TargetPath(ref),
				}
				return deps.emit(payload, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, ref.String())
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", string(media.BucketImages), "Target bucket: images or profiles")
	cmd.Flags().StringVar(&filename, "name", "", "File name inside the bucket (generated when empty)")
	return cmd
}

type candidateReport struct {
	Strategy string `json:"strategy"`
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
}

type resolveReport struct {
	Reference  string            `json:"reference"`
	Kind       string            `json:"kind"`
	Path       string            `json:"path,omitempty"`
	Strategy   string            `json:"strategy,omitempty"`
	Target     string            `json:"target"`
	Candidates []candidateReport `json:"candidates,omitempty"`
}

func newResolveCommand(deps commandDeps) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "resolve <reference>",
		Short: "Print the file a stored media reference points to",
		Example: "  diarykeeper resolve images/1700000000000_42.jpg\n" +
			"  diarykeeper resolve --explain file:///var/mobile/.../tmp/IMG_0001.jpg",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := media.ParseReference(args[0])
			if err != nil {
				return usageError(err)
			}
			return deps.withApp(func(a *app) error {
				report := resolveReport{
					Reference: ref.String(),
					Kind:      referenceKind(ref),
					Target:    a.resolver.TargetPath(ref),
				}
				if explain {
					for _, c := range a.resolver.Candidates(ref) {
						report.Candidates = append(report.Candidates, candidateReport{
							Strategy: c.Strategy.String(),
							Path:     c.Path,
							Exists:   isRegularFile(c.Path),
						})
					}
				}

				found, resolveErr := a.resolver.ResolveCandidate(ref)
				if resolveErr == nil {
					report.Path = found.Path
					report.Strategy = found.Strategy.String()
				} else if !errors.Is(resolveErr, media.ErrNotFound) {
					return resolveErr
				}

				if err := deps.emit(report, report.write); err != nil {
					return err
				}
				return resolveErr
			})
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "List every candidate path in resolution order")
	return cmd
}

func (r resolveReport) write(w io.Writer) error {
	for _, c := range r.Candidates {
		mark := " "
		if c.Exists {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-16s %s\n", mark, c.Strategy, c.Path); err != nil {
			return err
		}
	}
	if r.Path == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, r.Path)
	return err
}

func referenceKind(ref media.Reference) string {
	switch ref.(type) {
	case media.CanonicalRelative:
		return "canonical"
	case media.LegacyAbsolute:
		return "legacy"
	default:
		return "unknown"
	}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
