// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Zoom webhook event types handled by the attendance service.
const (
	ZoomEventMeetingStarted    = "meeting.started"
	ZoomEventMeetingEnded      = "meeting.ended"
	ZoomEventParticipantJoined = "meeting.participant_joined"
	ZoomEventParticipantLeft   = "meeting.participant_left"
)

// FlexibleString accepts a JSON string or a bare JSON number. Zoom sends
// meeting and user identifiers as either depending on the event.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexibleString(n.String())
	return nil
}

// String returns the trimmed value.
func (f FlexibleString) String() string {
	return strings.TrimSpace(string(f))
}

// Int returns the value as an int, or 0 when it is not numeric.
func (f FlexibleString) Int() int {
	v := f.String()
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(v, 64); err == nil {
		return int(fl)
	}
	return 0
}

// ZoomMeetingObject is the meeting part shared by every lifecycle payload.
// Timestamps are kept as raw strings and parsed defensively downstream.
type ZoomMeetingObject struct {
	UUID      string         `json:"uuid"`
	ID        FlexibleString `json:"id"`
	HostID    string         `json:"host_id"`
	Topic     string         `json:"topic"`
	Type      int            `json:"type"`
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Duration  FlexibleString `json:"duration"`
	Timezone  string         `json:"timezone"`
}

// ZoomWebhookParticipant is the participant block of join and leave events.
type ZoomWebhookParticipant struct {
	ID                FlexibleString `json:"id"`
	UserID            FlexibleString `json:"user_id"`
	ParticipantUserID FlexibleString `json:"participant_user_id"`
	ParticipantUUID   string         `json:"participant_uuid"`
	UserName          string         `json:"user_name"`
	Email             string         `json:"email"`
	JoinTime          string         `json:"join_time"`
	LeaveTime         string         `json:"leave_time"`
	LeaveReason       string         `json:"leave_reason"`
	Duration          FlexibleString `json:"duration"`
}

// ZoomLifecyclePayload represents the payload of meeting.started, meeting.ended,
// meeting.participant_joined and meeting.participant_left webhook events.
type ZoomLifecyclePayload struct {
	AccountID string `json:"account_id"`
	Object    struct {
		ZoomMeetingObject
		Participant *ZoomWebhookParticipant `json:"participant,omitempty"`
	} `json:"object"`
}

// ToLifecyclePayload converts the webhook event to a typed lifecycle payload.
func (z *ZoomWebhookEventMessage) ToLifecyclePayload() (*ZoomLifecyclePayload, error) {
	switch z.EventType {
	case ZoomEventMeetingStarted, ZoomEventMeetingEnded, ZoomEventParticipantJoined, ZoomEventParticipantLeft:
	default:
		return nil, fmt.Errorf("invalid event type: %q is not a lifecycle event", z.EventType)
	}

	data, err := json.Marshal(z.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var payload ZoomLifecyclePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to lifecycle payload: %w", err)
	}

	return &payload, nil
}
