// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/concurrent"
)

// QueueDrainer retries queued reconciliations. It is run periodically by the
// scheduler.
type QueueDrainer struct {
	Reconciler *ReconciliationService
	pool       *concurrent.WorkerPool
}

// NewQueueDrainer creates a QueueDrainer sharing the reconciler's worker count.
func NewQueueDrainer(reconciler *ReconciliationService) *QueueDrainer {
	return &QueueDrainer{
		Reconciler: reconciler,
		pool:       concurrent.NewWorkerPool(reconciler.Config.ReconcileWorkers),
	}
}

// Drain reconciles every due item, highest priority and oldest first.
// Failures are recorded on the items; the returned error only joins the
// failures of this pass for logging.
func (d *QueueDrainer) Drain(ctx context.Context) error {
	items, err := d.Reconciler.ReconciliationQueueRepository.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error listing reconciliation queue", logging.ErrKey, err)
		return err
	}

	now := d.Reconciler.clock.Now()
	var due []*models.ReconciliationQueueItem
	for _, item := range items {
		if item.IsDue(now) {
			due = append(due, item)
		}
	}
	if len(due) == 0 {
		return nil
	}

	slog.DebugContext(ctx, "draining reconciliation queue", "due", len(due), "queued", len(items))
	errs := concurrent.ForEach(ctx, d.pool, due, d.process)
	return errors.Join(errs...)
}

func (d *QueueDrainer) process(ctx context.Context, item *models.ReconciliationQueueItem) error {
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", item.MeetingID))
	ctx = logging.AppendCtx(ctx, slog.Int("queue_attempts", item.Attempts))

	_, err := d.Reconciler.run(ctx, item.MeetingID, item.Force)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConcurrentReconciliation) {
		slog.DebugContext(ctx, "queued meeting is already being reconciled")
		return nil
	}

	d.Reconciler.recordFailure(ctx, item, err, !retryable(err))
	if perr := d.Reconciler.ReconciliationQueueRepository.Put(ctx, item); perr != nil {
		slog.ErrorContext(ctx, "error updating reconciliation queue item", logging.ErrKey, perr, logging.PriorityCritical())
		return errors.Join(err, perr)
	}
	if item.Status == models.QueueItemStatusPending {
		slog.WarnContext(ctx, "queued reconciliation failed, retry scheduled",
			logging.ErrKey, err,
			"next_attempt_at", item.NextAttemptAt,
		)
	}
	return fmt.Errorf("meeting %s: %w", item.MeetingID, err)
}
