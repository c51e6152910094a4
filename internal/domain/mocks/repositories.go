// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// MockMeetingRecordRepository implements MeetingRecordRepository for testing
type MockMeetingRecordRepository struct {
	mock.Mock
}

func (m *MockMeetingRecordRepository) Get(ctx context.Context, meetingID string) (*models.MeetingRecord, uint64, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*models.MeetingRecord), args.Get(1).(uint64), args.Error(2)
}

func (m *MockMeetingRecordRepository) Save(ctx context.Context, record *models.MeetingRecord, revision uint64) (uint64, error) {
	args := m.Called(ctx, record, revision)
	return args.Get(0).(uint64), args.Error(1)
}

// MockParticipantSessionRepository implements ParticipantSessionRepository for testing
type MockParticipantSessionRepository struct {
	mock.Mock
}

func (m *MockParticipantSessionRepository) Get(ctx context.Context, meetingID string) (*models.MeetingSessions, uint64, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*models.MeetingSessions), args.Get(1).(uint64), args.Error(2)
}

func (m *MockParticipantSessionRepository) Save(ctx context.Context, sessions *models.MeetingSessions, revision uint64) (uint64, error) {
	args := m.Called(ctx, sessions, revision)
	return args.Get(0).(uint64), args.Error(1)
}

// MockReconciliationQueueRepository implements ReconciliationQueueRepository for testing
type MockReconciliationQueueRepository struct {
	mock.Mock
}

func (m *MockReconciliationQueueRepository) Get(ctx context.Context, meetingID string) (*models.ReconciliationQueueItem, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReconciliationQueueItem), args.Error(1)
}

func (m *MockReconciliationQueueRepository) Put(ctx context.Context, item *models.ReconciliationQueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockReconciliationQueueRepository) Remove(ctx context.Context, meetingID string) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

func (m *MockReconciliationQueueRepository) List(ctx context.Context) ([]*models.ReconciliationQueueItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReconciliationQueueItem), args.Error(1)
}
