// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package workpool runs a function over a slice with bounded concurrency and
// keeps every item's outcome. One item failing never cancels the others.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result for the item at the same index.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Run calls fn for every item using at most workers goroutines and returns
// the outcomes in input order. workers < 1 runs sequentially.
//
// Items not yet started when ctx is cancelled get ctx.Err() as their outcome.
// Run always waits for started items before returning.
func Run[I, T any](ctx context.Context, workers int, items []I, fn func(ctx context.Context, item I) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], len(items))
	if workers < 1 {
		workers = 1
	}

	// Plain Group, not WithContext: an item error never cancels siblings.
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range items {
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			v, err := fn(ctx, items[i])
			out[i] = Outcome[T]{Value: v, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return out
}

// Errors returns the non-nil errors in outcomes, in order.
func Errors[T any](outcomes []Outcome[T]) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// FirstError returns the first non-nil error, or nil.
func FirstError[T any](outcomes []Outcome[T]) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
