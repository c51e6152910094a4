// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// MockNATSConn is a mock implementation of INatsConn
type MockNATSConn struct {
	mock.Mock
}

func (m *MockNATSConn) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNATSConn) Publish(subj string, data []byte) error {
	args := m.Called(subj, data)
	return args.Error(0)
}

func TestMessageBuilder_sendMessage(t *testing.T) {
	tests := []struct {
		name         string
		connected    bool
		publishError error
		expectError  bool
	}{
		{
			name:      "successful send",
			connected: true,
		},
		{
			name:         "publish error",
			connected:    true,
			publishError: errors.New("publish failed"),
			expectError:  true,
		},
		{
			name:        "disconnected",
			connected:   false,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockConn := new(MockNATSConn)
			mockConn.On("IsConnected").Return(tt.connected)
			if tt.connected {
				mockConn.On("Publish", "test.subject", []byte("test data")).Return(tt.publishError)
			}

			builder := NewMessageBuilder(mockConn)
			err := builder.sendMessage(context.Background(), "test.subject", []byte("test data"))

			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
			} else {
				assert.NoError(t, err)
			}
			mockConn.AssertExpectations(t)
		})
	}
}

func TestMessageBuilder_PublishNotification(t *testing.T) {
	mockConn := new(MockNATSConn)
	mockConn.On("IsConnected").Return(true)

	var published []byte
	mockConn.On("Publish", "lfx.attendance.participant_joined", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	err := NewMessageBuilder(mockConn).PublishNotification(context.Background(), models.Notification{
		Type:       models.NotificationParticipantJoined,
		MeetingID:  "85012345678",
		OccurredAt: at,
		Data:       models.ParticipantNotification{SessionUID: "s1", IdentityKey: "uuid:p1", Name: "Ada", At: at},
	})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(published, &body))
	assert.Equal(t, "participant_joined", body["type"])
	assert.Equal(t, "85012345678", body["meeting_id"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "uuid:p1", data["identity_key"])
}

func TestNatsMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       *nats.Msg
		wantReply bool
	}{
		{
			name:      "request with reply inbox",
			msg:       &nats.Msg{Subject: "lfx.attendance.reconcile", Reply: "_INBOX.abc", Data: []byte("85012345678")},
			wantReply: true,
		},
		{
			name: "published event",
			msg:  &nats.Msg{Subject: "lfx.webhook.zoom.meeting.ended", Data: []byte("{}")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewNatsMessage(tt.msg)
			assert.Equal(t, tt.msg.Subject, msg.Subject())
			assert.Equal(t, tt.msg.Data, msg.Data())
			assert.Equal(t, tt.wantReply, msg.HasReply())
		})
	}
}
