// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// MockZoomReportClient implements ZoomReportClient for testing
type MockZoomReportClient struct {
	mock.Mock
}

func (m *MockZoomReportClient) GetPastMeetingParticipants(ctx context.Context, meetingUUID string) ([]models.ZoomReportParticipant, error) {
	args := m.Called(ctx, meetingUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ZoomReportParticipant), args.Error(1)
}

func (m *MockZoomReportClient) GetPastMeeting(ctx context.Context, meetingUUID string) (*models.ZoomPastMeeting, error) {
	args := m.Called(ctx, meetingUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ZoomPastMeeting), args.Error(1)
}

func (m *MockZoomReportClient) GetUser(ctx context.Context, userID string) (*models.ZoomUser, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ZoomUser), args.Error(1)
}

// MockNotificationEmitter implements NotificationEmitter for testing
type MockNotificationEmitter struct {
	mock.Mock
}

func (m *MockNotificationEmitter) Emit(ctx context.Context, notification models.Notification) {
	m.Called(ctx, notification)
}
