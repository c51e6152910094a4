// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent provides bounded fan-out helpers built on errgroup.
package concurrent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many functions run at once.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a pool with the given number of workers (minimum 1).
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.workerCount
}

// Run executes the functions and returns the first error. The context passed
// to each function is cancelled as soon as one of them fails.
func (wp *WorkerPool) Run(ctx context.Context, functions ...func(context.Context) error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return fn(groupCtx)
		})
	}

	return g.Wait()
}

// RunAll executes every function regardless of failures and returns the
// non-nil errors in submission order.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func(context.Context) error) []error {
	if len(functions) == 0 {
		return nil
	}

	results := make([]error, len(functions))
	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for i, fn := range functions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ForEach applies fn to every item on the pool and returns the non-nil errors.
func ForEach[T any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, T) error) []error {
	functions := make([]func(context.Context) error, 0, len(items))
	for _, item := range items {
		functions = append(functions, func(ctx context.Context) error {
			return fn(ctx, item)
		})
	}
	return wp.RunAll(ctx, functions...)
}

// Collect applies fn to every item on the pool and gathers the successful
// results. Order of the returned values is not defined.
func Collect[T, R any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, T) (R, error)) ([]R, []error) {
	var (
		mu  sync.Mutex
		out = make([]R, 0, len(items))
	)
	errs := ForEach(ctx, wp, items, func(ctx context.Context, item T) error {
		r, err := fn(ctx, item)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, r)
		mu.Unlock()
		return nil
	})
	return out, errs
}
