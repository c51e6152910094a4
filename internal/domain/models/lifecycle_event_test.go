// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func joinedMessage(participant map[string]interface{}) *ZoomWebhookEventMessage {
	return &ZoomWebhookEventMessage{
		EventType: ZoomEventParticipantJoined,
		EventTS:   1772357400000,
		Payload: map[string]interface{}{
			"account_id": "acc",
			"object": map[string]interface{}{
				"id":          float64(85012345678),
				"uuid":        "4444AAAiAAAAAiAiAiiAii==",
				"topic":       "TSC weekly",
				"participant": participant,
			},
		},
	}
}

func TestParseLifecycleEvent_ParticipantJoined(t *testing.T) {
	msg := joinedMessage(map[string]interface{}{
		"participant_uuid": "pu-1",
		"user_id":          "16778240",
		"user_name":        "Jane Doe (Acme)",
		"email":            "Jane@Example.org",
		"join_time":        "2026-03-01T09:30:00Z",
	})

	event, err := ParseLifecycleEvent(msg, receivedAt)
	require.NoError(t, err)

	assert.Equal(t, EventParticipantJoined, event.Type)
	assert.Equal(t, "85012345678", event.MeetingID)
	assert.Equal(t, "4444AAAiAAAAAiAiAiiAii==", event.MeetingUUID)
	require.NotNil(t, event.Participant)
	assert.Equal(t, "Jane Doe", event.Participant.Name)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), event.Participant.JoinTime)
	assert.False(t, event.TimestampSubstituted)
	assert.Equal(t, "uuid:pu-1", event.Participant.IdentityKey())
	assert.Equal(t, "participant_joined|85012345678|uuid:pu-1|1772357400000", event.IdempotencyKey())
}

func TestParseLifecycleEvent_UnparsableJoinFallsBackToReceipt(t *testing.T) {
	msg := joinedMessage(map[string]interface{}{
		"participant_uuid": "pu-1",
		"user_name":        "Jane",
		"join_time":        "not-a-time",
	})

	event, err := ParseLifecycleEvent(msg, receivedAt)
	require.NoError(t, err)
	assert.Equal(t, receivedAt, event.Participant.JoinTime)
	assert.True(t, event.Participant.TimeSubstituted)
	assert.True(t, event.TimestampSubstituted)
}

func TestParseLifecycleEvent_MissingEventTimestamp(t *testing.T) {
	msg := joinedMessage(map[string]interface{}{"participant_uuid": "pu-1"})
	msg.EventTS = 0

	event, err := ParseLifecycleEvent(msg, receivedAt)
	require.NoError(t, err)
	assert.Equal(t, receivedAt, event.Timestamp)
	assert.True(t, event.TimestampSubstituted)
	assert.Equal(t, "participant_joined|85012345678|uuid:pu-1|1772359200000", event.IdempotencyKey())
}

func TestParseLifecycleEvent_ParticipantLeft(t *testing.T) {
	msg := &ZoomWebhookEventMessage{
		EventType: ZoomEventParticipantLeft,
		EventTS:   1772361000000,
		Payload: map[string]interface{}{
			"object": map[string]interface{}{
				"id": "85012345678",
				"participant": map[string]interface{}{
					"user_id":      "16778240",
					"user_name":    "Guest",
					"leave_time":   "2026-03-01T10:30:00Z",
					"join_time":    "2026-03-01T09:31:00Z",
					"duration":     float64(3540),
					"leave_reason": "left the meeting",
				},
			},
		},
	}

	event, err := ParseLifecycleEvent(msg, receivedAt)
	require.NoError(t, err)
	p := event.Participant
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), p.LeaveTime)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 31, 0, 0, time.UTC), p.JoinTime)
	assert.Equal(t, int64(3540), p.DurationSeconds)
	assert.Equal(t, "name:guest", p.IdentityKey())
}

func TestParseLifecycleEvent_MeetingEnded(t *testing.T) {
	msg := &ZoomWebhookEventMessage{
		EventType: ZoomEventMeetingEnded,
		EventTS:   1772361000000,
		Payload: map[string]interface{}{
			"object": map[string]interface{}{
				"id":         "85012345678",
				"uuid":       "abc/def==",
				"duration":   float64(60),
				"start_time": "2026-03-01T09:30:00Z",
				"end_time":   "2026-03-01T10:30:00Z",
			},
		},
	}

	event, err := ParseLifecycleEvent(msg, receivedAt)
	require.NoError(t, err)
	assert.Equal(t, EventMeetingEnded, event.Type)
	assert.Equal(t, 60, event.ScheduledDuration)
	require.NotNil(t, event.EndTime)
	require.NotNil(t, event.StartTime)
	assert.Equal(t, 10, event.EndTime.Hour())
	assert.Equal(t, "meeting_ended|85012345678|none|1772361000000", event.IdempotencyKey())
}

func TestParseLifecycleEvent_Rejections(t *testing.T) {
	tests := []struct {
		name string
		msg  *ZoomWebhookEventMessage
	}{
		{"nil message", nil},
		{"unsupported type", &ZoomWebhookEventMessage{EventType: "recording.completed"}},
		{"missing meeting id", &ZoomWebhookEventMessage{
			EventType: ZoomEventMeetingStarted,
			Payload:   map[string]interface{}{"object": map[string]interface{}{}},
		}},
		{"participant event without participant", &ZoomWebhookEventMessage{
			EventType: ZoomEventParticipantJoined,
			Payload:   map[string]interface{}{"object": map[string]interface{}{"id": "1"}},
		}},
		{"participant without any identity", joinedMessage(map[string]interface{}{"join_time": "2026-03-01T09:30:00Z"})},
		{"wrong payload shape", &ZoomWebhookEventMessage{
			EventType: ZoomEventMeetingStarted,
			Payload:   map[string]interface{}{"object": "nope"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseLifecycleEvent(tt.msg, receivedAt)
			assert.Error(t, err)
			assert.Nil(t, event)
		})
	}
}

func TestFlexibleString(t *testing.T) {
	var payload struct {
		A FlexibleString `json:"a"`
		B FlexibleString `json:"b"`
		C FlexibleString `json:"c"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a": 85012345678, "b": " 42 ", "c": null}`), &payload))
	assert.Equal(t, "85012345678", payload.A.String())
	assert.Equal(t, 42, payload.B.Int())
	assert.Equal(t, "", payload.C.String())
	assert.Equal(t, 0, FlexibleString("abc").Int())
	assert.Equal(t, 12, FlexibleString("12.7").Int())
}
