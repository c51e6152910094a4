// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

func TestTriggerPool_FullBufferFallsBackToQueue(t *testing.T) {
	env := endedMeetingWithAlice(t)
	env.reconcile.Config.TriggerBuffer = 1
	pool := NewTriggerPool(env.reconcile)

	pool.TriggerReconcile(context.Background(), "first")
	pool.TriggerReconcile(context.Background(), testMeetingID)
	pool.Wait()

	assert.Equal(t, 1, pool.Pending())
	item := queueItem(t, env)
	require.NotNil(t, item)
	assert.Equal(t, models.QueuePriorityMeetingEnded, item.Priority)
	assert.Equal(t, 0, item.Attempts)
	assert.True(t, item.IsDue(env.clock.Now()))
}

func TestTriggerPool_ReconcilesTriggeredMeetings(t *testing.T) {
	env := endedMeetingWithAlice(t)
	env.zoom.On("GetPastMeetingParticipants", mock.Anything, testMeetingUUID).Return([]models.ZoomReportParticipant{
		reportEntry("", "Alice Smith", "alice@example.org", at(0), at(55)),
	}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewTriggerPool(env.reconcile)
	pool.Start(ctx)

	pool.TriggerReconcile(ctx, testMeetingID)
	require.Eventually(t, func() bool {
		return len(env.emitter.ofType(models.NotificationAttendanceCalculated)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()
	assert.True(t, env.storedRecord(t).AttendanceCalculated)
}

func TestTriggerPool_PermanentFailureIsRecorded(t *testing.T) {
	env := endedMeetingWithAlice(t)
	env.zoom.On("GetPastMeetingParticipants", mock.Anything, testMeetingUUID).
		Return(nil, domain.NewInternalError("zoom API returned status 403")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewTriggerPool(env.reconcile)
	pool.Start(ctx)

	pool.TriggerReconcile(ctx, testMeetingID)
	require.Eventually(t, func() bool {
		return len(env.emitter.ofType(models.NotificationReconciliationFailed)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()

	item := queueItem(t, env)
	require.NotNil(t, item)
	assert.Equal(t, models.QueueItemStatusExhausted, item.Status)
	assert.Equal(t, models.QueuePriorityMeetingEnded, item.Priority)
	assert.Equal(t, 1, item.Attempts)
	assert.False(t, env.storedRecord(t).AttendanceCalculated)
}

func TestIngestion_MeetingEndedTriggersPool(t *testing.T) {
	env := newTestEnv(t)
	env.reconcile.Config.TriggerBuffer = 4
	pool := NewTriggerPool(env.reconcile)
	env.ingestion.Trigger = pool

	env.startMeeting(t)
	env.endMeeting(t, at(60))

	assert.Equal(t, 1, pool.Pending())
}
