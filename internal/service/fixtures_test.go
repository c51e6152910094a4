// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/concurrent"
)

const (
	testMeetingID   = "85012345678"
	testMeetingUUID = "4444AAAiAAAAAiAiAiiAii=="
)

// meetingStart is T in the attendance scenarios.
var meetingStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return meetingStart.Add(time.Duration(minutes) * time.Minute)
}

type recordingEmitter struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (r *recordingEmitter) Emit(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingEmitter) ofType(t models.NotificationType) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type recordingTrigger struct {
	mu       sync.Mutex
	meetings []string
}

func (r *recordingTrigger) TriggerReconcile(_ context.Context, meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings = append(r.meetings, meetingID)
}

func (r *recordingTrigger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.meetings)
}

// testEnv wires the services to in-memory KV buckets.
type testEnv struct {
	clock    *clock.FakeClock
	records  *store.NatsMeetingRecordRepository
	sessions *store.NatsParticipantSessionRepository
	queue    *store.NatsReconciliationQueueRepository
	zoom     *mocks.MockZoomReportClient
	emitter  *recordingEmitter
	trigger  *recordingTrigger
	config   AttendanceConfig

	ingestion *IngestionService
	reconcile *ReconciliationService
	query     *AttendanceQueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    clock.Fake(at(0)),
		records:  store.NewNatsMeetingRecordRepository(store.NewMemoryKeyValue(store.KVStoreNameMeetings)),
		sessions: store.NewNatsParticipantSessionRepository(store.NewMemoryKeyValue(store.KVStoreNameSessions)),
		queue:    store.NewNatsReconciliationQueueRepository(store.NewMemoryKeyValue(store.KVStoreNameReconcileQueue)),
		zoom:     &mocks.MockZoomReportClient{},
		emitter:  &recordingEmitter{},
		trigger:  &recordingTrigger{},
		config:   DefaultAttendanceConfig(),
	}
	locks := concurrent.NewKeyedMutex()
	env.ingestion = NewIngestionService(env.records, env.sessions, env.emitter, env.trigger, locks, env.clock, env.config)
	env.reconcile = NewReconciliationService(env.records, env.sessions, env.queue, env.zoom, env.emitter, locks, env.clock, env.config)
	env.query = NewAttendanceQueryService(env.records, env.sessions, env.clock, env.config)
	return env
}

func (e *testEnv) ingest(t *testing.T, event *models.LifecycleEvent) IngestResult {
	t.Helper()
	result, err := e.ingestion.Ingest(context.Background(), event)
	require.NoError(t, err)
	return result
}

func (e *testEnv) storedSessions(t *testing.T) []*models.ParticipantSession {
	t.Helper()
	sessions, _, err := e.sessions.Get(context.Background(), testMeetingID)
	require.NoError(t, err)
	return sessions.Sessions
}

func (e *testEnv) storedRecord(t *testing.T) *models.MeetingRecord {
	t.Helper()
	record, _, err := e.records.Get(context.Background(), testMeetingID)
	require.NoError(t, err)
	return record
}

func (e *testEnv) startMeeting(t *testing.T) {
	t.Helper()
	e.ingest(t, startedEvent(at(0)))
}

func (e *testEnv) endMeeting(t *testing.T, end time.Time) {
	t.Helper()
	e.clock.Set(end)
	e.ingest(t, endedEvent(end))
}

func startedEvent(start time.Time) *models.LifecycleEvent {
	return &models.LifecycleEvent{
		Type:              models.EventMeetingStarted,
		MeetingID:         testMeetingID,
		MeetingUUID:       testMeetingUUID,
		Topic:             "TSC weekly",
		ScheduledDuration: 60,
		StartTime:         &start,
		Timestamp:         start,
		ReceivedAt:        start,
	}
}

func endedEvent(end time.Time) *models.LifecycleEvent {
	return &models.LifecycleEvent{
		Type:        models.EventMeetingEnded,
		MeetingID:   testMeetingID,
		MeetingUUID: testMeetingUUID,
		EndTime:     &end,
		Timestamp:   end,
		ReceivedAt:  end,
	}
}

func joinEvent(participantUUID, name string, join time.Time) *models.LifecycleEvent {
	return &models.LifecycleEvent{
		Type:        models.EventParticipantJoined,
		MeetingID:   testMeetingID,
		MeetingUUID: testMeetingUUID,
		Participant: &models.EventParticipant{
			UUID:     participantUUID,
			Name:     name,
			Email:    participantUUID + "@example.org",
			JoinTime: join,
		},
		Timestamp:  join,
		ReceivedAt: join,
	}
}

func leaveEvent(participantUUID, name string, leave time.Time) *models.LifecycleEvent {
	return &models.LifecycleEvent{
		Type:        models.EventParticipantLeft,
		MeetingID:   testMeetingID,
		MeetingUUID: testMeetingUUID,
		Participant: &models.EventParticipant{
			UUID:        participantUUID,
			Name:        name,
			Email:       participantUUID + "@example.org",
			LeaveTime:   leave,
			LeaveReason: "left the meeting",
		},
		Timestamp:  leave,
		ReceivedAt: leave,
	}
}

func reportEntry(id, name, email string, join, leave time.Time) models.ZoomReportParticipant {
	return models.ZoomReportParticipant{
		ID:        models.FlexibleString(id),
		Name:      name,
		UserEmail: email,
		JoinTime:  join.Format(time.RFC3339),
		LeaveTime: leave.Format(time.RFC3339),
		Duration:  models.FlexibleString(strconv.FormatInt(int64(leave.Sub(join)/time.Second), 10)),
	}
}

func closedSession(identity string, join, leave time.Time) *models.ParticipantSession {
	s := &models.ParticipantSession{
		UID:         identity + "@" + join.Format(time.RFC3339),
		MeetingID:   testMeetingID,
		IdentityKey: identity,
		JoinTime:    join,
	}
	s.Close(leave, "left")
	return s
}
