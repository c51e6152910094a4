// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// NatsMeetingRecordRepository is the NATS KV store repository for meeting records.
type NatsMeetingRecordRepository struct {
	*NatsBaseRepository[models.MeetingRecord]
	keys *KeyBuilder
}

// NewNatsMeetingRecordRepository creates a new NATS KV store repository for meeting records.
func NewNatsMeetingRecordRepository(kvStore INatsKeyValue) *NatsMeetingRecordRepository {
	return &NatsMeetingRecordRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.MeetingRecord](kvStore, "meeting"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsMeetingRecordRepository) key(meetingID string) string {
	return r.keys.EntityKey(KeyPrefixMeeting, meetingID)
}

// Get returns the meeting record and its revision.
func (r *NatsMeetingRecordRepository) Get(ctx context.Context, meetingID string) (*models.MeetingRecord, uint64, error) {
	if meetingID == "" {
		return nil, 0, domain.NewValidationError("meeting id is required")
	}
	return r.NatsBaseRepository.Get(ctx, r.key(meetingID))
}

// Save creates (revision 0) or replaces the meeting record.
func (r *NatsMeetingRecordRepository) Save(ctx context.Context, record *models.MeetingRecord, revision uint64) (uint64, error) {
	if record == nil || record.MeetingID == "" {
		return 0, domain.NewValidationError("meeting record requires a meeting id")
	}
	return r.NatsBaseRepository.Save(ctx, r.key(record.MeetingID), record, revision)
}

var _ domain.MeetingRecordRepository = (*NatsMeetingRecordRepository)(nil)
