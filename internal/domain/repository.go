// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// MeetingRecordRepository stores MeetingRecords keyed by meeting id.
// Writes use optimistic concurrency on the entry revision.
type MeetingRecordRepository interface {
	// Get returns a NotFound error when the meeting was never observed.
	Get(ctx context.Context, meetingID string) (*models.MeetingRecord, uint64, error)
	// Save creates the record when revision is 0 and otherwise replaces the
	// revision given. A stale revision fails with a Conflict error.
	Save(ctx context.Context, record *models.MeetingRecord, revision uint64) (uint64, error)
}

// ParticipantSessionRepository stores all sessions of a meeting as one
// document so a reconciliation can replace them atomically.
type ParticipantSessionRepository interface {
	// Get returns a NotFound error when the meeting has no sessions yet.
	Get(ctx context.Context, meetingID string) (*models.MeetingSessions, uint64, error)
	// Save follows the same revision rules as MeetingRecordRepository.Save.
	Save(ctx context.Context, sessions *models.MeetingSessions, revision uint64) (uint64, error)
}

// ReconciliationQueueRepository stores reconciliation retry items, one per meeting.
type ReconciliationQueueRepository interface {
	Get(ctx context.Context, meetingID string) (*models.ReconciliationQueueItem, error)
	Put(ctx context.Context, item *models.ReconciliationQueueItem) error
	Remove(ctx context.Context, meetingID string) error
	List(ctx context.Context) ([]*models.ReconciliationQueueItem, error)
}
