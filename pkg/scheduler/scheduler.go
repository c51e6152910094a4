// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package scheduler runs periodic background tasks.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// Task is a unit of periodic work. Errors are logged and do not stop the schedule.
type Task func(ctx context.Context) error

// Scheduler schedules tasks at fixed intervals.
type Scheduler interface {
	ScheduleEvery(interval time.Duration, name string, task Task)
}

// IntervalScheduler runs each task on its own goroutine until the context
// given to Start is cancelled. A run never overlaps the previous run of the
// same task.
type IntervalScheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	ctx     context.Context
	pending []scheduled
	wg      sync.WaitGroup
}

type scheduled struct {
	interval time.Duration
	name     string
	task     Task
}

// New creates an IntervalScheduler driven by clk.
func New(clk clock.Clock) *IntervalScheduler {
	if clk == nil {
		clk = clock.Real()
	}
	return &IntervalScheduler{clock: clk}
}

// ScheduleEvery registers task to run every interval. Tasks registered after
// Start begin immediately.
func (s *IntervalScheduler) ScheduleEvery(interval time.Duration, name string, task Task) {
	if interval <= 0 || task == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := scheduled{interval: interval, name: name, task: task}
	if s.ctx == nil {
		s.pending = append(s.pending, item)
		return
	}
	s.launch(s.ctx, item)
}

// Start launches every registered task.
func (s *IntervalScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	for _, item := range s.pending {
		s.launch(ctx, item)
	}
	s.pending = nil
}

// Wait blocks until all task loops have returned.
func (s *IntervalScheduler) Wait() {
	s.wg.Wait()
}

func (s *IntervalScheduler) launch(ctx context.Context, item scheduled) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		taskCtx := logging.AppendCtx(ctx, slog.String("task", item.name))
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(item.interval):
			}

			if err := item.task(taskCtx); err != nil {
				slog.WarnContext(taskCtx, "scheduled task failed", logging.ErrKey, err)
			}
		}
	}()
}
