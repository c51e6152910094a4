// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

func TestNatsMeetingRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRecordRepository(NewMemoryKeyValue(KVStoreNameMeetings))

	_, _, err := repo.Get(ctx, "85012345678")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))

	_, _, err = repo.Get(ctx, "")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))

	record := &models.MeetingRecord{
		MeetingID:   "85012345678",
		MeetingUUID: "4444AAAiAAAAAiAiAiiAii==",
		Topic:       "TSC weekly",
		Status:      models.MeetingStatusStarted,
	}
	rev, err := repo.Save(ctx, record, 0)
	require.NoError(t, err)

	got, gotRev, err := repo.Get(ctx, "85012345678")
	require.NoError(t, err)
	assert.Equal(t, rev, gotRev)
	assert.Equal(t, "TSC weekly", got.Topic)
	assert.Equal(t, models.MeetingStatusStarted, got.Status)

	_, err = repo.Save(ctx, record, 0)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))

	_, err = repo.Save(ctx, &models.MeetingRecord{}, 0)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestNatsParticipantSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsParticipantSessionRepository(NewMemoryKeyValue(KVStoreNameSessions))

	join := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	doc := &models.MeetingSessions{
		MeetingID: "85012345678",
		Sessions: []*models.ParticipantSession{
			{UID: "s1", MeetingID: "85012345678", IdentityKey: "uuid:p1", JoinTime: join},
		},
	}

	rev, err := repo.Save(ctx, doc, 0)
	require.NoError(t, err)

	got, gotRev, err := repo.Get(ctx, "85012345678")
	require.NoError(t, err)
	assert.Equal(t, rev, gotRev)
	require.Len(t, got.Sessions, 1)
	assert.True(t, got.Sessions[0].JoinTime.Equal(join))

	got.Sessions = append(got.Sessions, &models.ParticipantSession{UID: "s2", IdentityKey: "uuid:p2"})
	_, err = repo.Save(ctx, got, gotRev)
	require.NoError(t, err)

	// a writer holding the old revision loses
	_, err = repo.Save(ctx, doc, rev)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
}

func TestNatsReconciliationQueueRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsReconciliationQueueRepository(NewMemoryKeyValue(KVStoreNameReconcileQueue))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	items, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	missing, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Put(ctx, &models.ReconciliationQueueItem{MeetingID: "retry-old", Priority: models.QueuePriorityRetry, QueuedAt: base}))
	require.NoError(t, repo.Put(ctx, &models.ReconciliationQueueItem{MeetingID: "ended", Priority: models.QueuePriorityMeetingEnded, QueuedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Put(ctx, &models.ReconciliationQueueItem{MeetingID: "manual", Priority: models.QueuePriorityManual, QueuedAt: base.Add(2 * time.Minute)}))
	require.NoError(t, repo.Put(ctx, &models.ReconciliationQueueItem{MeetingID: "retry-new", Priority: models.QueuePriorityRetry, QueuedAt: base.Add(3 * time.Minute)}))

	items, err = repo.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MeetingID)
	}
	assert.Equal(t, []string{"manual", "ended", "retry-old", "retry-new"}, ids)

	// put replaces the item of the same meeting
	require.NoError(t, repo.Put(ctx, &models.ReconciliationQueueItem{MeetingID: "ended", Attempts: 2, Priority: models.QueuePriorityRetry, QueuedAt: base}))
	item, err := repo.Get(ctx, "ended")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Attempts)

	require.NoError(t, repo.Remove(ctx, "ended"))
	item, err = repo.Get(ctx, "ended")
	require.NoError(t, err)
	assert.Nil(t, item)

	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(repo.Put(ctx, &models.ReconciliationQueueItem{})))
}
