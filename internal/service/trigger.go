// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
)

// TriggerPool runs meeting_ended reconciliations on a fixed set of workers.
// TriggerReconcile never blocks: when the buffer is full the meeting goes to
// the persistent retry queue instead.
type TriggerPool struct {
	reconciler *ReconciliationService
	triggers   chan string
	workers    int
	wg         sync.WaitGroup
}

// NewTriggerPool creates a TriggerPool. Start must be called to run it.
func NewTriggerPool(reconciler *ReconciliationService) *TriggerPool {
	return &TriggerPool{
		reconciler: reconciler,
		triggers:   make(chan string, reconciler.Config.TriggerBuffer),
		workers:    reconciler.Config.ReconcileWorkers,
	}
}

// TriggerReconcile implements ReconcileTrigger.
func (p *TriggerPool) TriggerReconcile(ctx context.Context, meetingID string) {
	select {
	case p.triggers <- meetingID:
		slog.DebugContext(ctx, "reconciliation triggered")
	default:
		slog.WarnContext(ctx, "reconciliation trigger buffer full, queueing meeting")
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			qctx := context.WithoutCancel(ctx)
			if err := p.reconciler.queueMeeting(qctx, meetingID, models.QueuePriorityMeetingEnded); err != nil {
				slog.ErrorContext(qctx, "error queueing triggered reconciliation",
					logging.ErrKey, err, logging.PriorityCritical())
			}
		}()
	}
}

// Pending returns the number of buffered triggers.
func (p *TriggerPool) Pending() int {
	return len(p.triggers)
}

// Start runs the workers until ctx is done.
func (p *TriggerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case meetingID := <-p.triggers:
					p.reconcile(ctx, meetingID)
				}
			}
		}()
	}
}

// Wait blocks until the workers and pending queue writes have finished.
func (p *TriggerPool) Wait() {
	p.wg.Wait()
}

func (p *TriggerPool) reconcile(ctx context.Context, meetingID string) {
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))
	result, err := p.reconciler.Reconcile(ctx, meetingID, ReconcileOptions{Priority: models.QueuePriorityMeetingEnded})
	switch {
	case errors.Is(err, domain.ErrConcurrentReconciliation):
		slog.DebugContext(ctx, "triggered reconciliation skipped, one is already running")
	case err != nil:
		slog.ErrorContext(ctx, "triggered reconciliation failed", logging.ErrKey, err)
	case result.Queued:
		slog.InfoContext(ctx, "triggered reconciliation queued for retry")
	}
}
