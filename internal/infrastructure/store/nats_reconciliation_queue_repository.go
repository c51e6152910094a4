// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// NatsReconciliationQueueRepository persists reconciliation retry items, one
// per meeting, so they survive restarts.
type NatsReconciliationQueueRepository struct {
	*NatsBaseRepository[models.ReconciliationQueueItem]
	keys *KeyBuilder
}

// NewNatsReconciliationQueueRepository creates a new NATS KV store repository for the reconciliation queue.
func NewNatsReconciliationQueueRepository(kvStore INatsKeyValue) *NatsReconciliationQueueRepository {
	return &NatsReconciliationQueueRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.ReconciliationQueueItem](kvStore, "queue item"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsReconciliationQueueRepository) key(meetingID string) string {
	return r.keys.EntityKey(KeyPrefixQueue, meetingID)
}

// Get returns nil without error when no item is queued for the meeting.
func (r *NatsReconciliationQueueRepository) Get(ctx context.Context, meetingID string) (*models.ReconciliationQueueItem, error) {
	item, _, err := r.NatsBaseRepository.Get(ctx, r.key(meetingID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// Put stores the item, replacing any previous item for the same meeting.
func (r *NatsReconciliationQueueRepository) Put(ctx context.Context, item *models.ReconciliationQueueItem) error {
	if item == nil || item.MeetingID == "" {
		return domain.NewValidationError("queue item requires a meeting id")
	}
	_, err := r.NatsBaseRepository.Put(ctx, r.key(item.MeetingID), item)
	return err
}

func (r *NatsReconciliationQueueRepository) Remove(ctx context.Context, meetingID string) error {
	return r.NatsBaseRepository.Delete(ctx, r.key(meetingID))
}

// List returns all items ordered by priority, then by queue time.
func (r *NatsReconciliationQueueRepository) List(ctx context.Context) ([]*models.ReconciliationQueueItem, error) {
	items, err := r.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].QueuedAt.Before(items[j].QueuedAt)
	})
	return items, nil
}

var _ domain.ReconciliationQueueRepository = (*NatsReconciliationQueueRepository)(nil)
