// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// NatsParticipantSessionRepository stores the sessions of each meeting as a
// single KV entry so ingestion and reconciliation commit with one revision check.
type NatsParticipantSessionRepository struct {
	*NatsBaseRepository[models.MeetingSessions]
	keys *KeyBuilder
}

// NewNatsParticipantSessionRepository creates a new NATS KV store repository for participant sessions.
func NewNatsParticipantSessionRepository(kvStore INatsKeyValue) *NatsParticipantSessionRepository {
	return &NatsParticipantSessionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.MeetingSessions](kvStore, "sessions"),
		keys:               NewKeyBuilder(""),
	}
}

func (r *NatsParticipantSessionRepository) key(meetingID string) string {
	return r.keys.EntityKey(KeyPrefixSessions, meetingID)
}

func (r *NatsParticipantSessionRepository) Get(ctx context.Context, meetingID string) (*models.MeetingSessions, uint64, error) {
	if meetingID == "" {
		return nil, 0, domain.NewValidationError("meeting id is required")
	}
	return r.NatsBaseRepository.Get(ctx, r.key(meetingID))
}

func (r *NatsParticipantSessionRepository) Save(ctx context.Context, sessions *models.MeetingSessions, revision uint64) (uint64, error) {
	if sessions == nil || sessions.MeetingID == "" {
		return 0, domain.NewValidationError("sessions document requires a meeting id")
	}
	return r.NatsBaseRepository.Save(ctx, r.key(sessions.MeetingID), sessions, revision)
}

var _ domain.ParticipantSessionRepository = (*NatsParticipantSessionRepository)(nil)
