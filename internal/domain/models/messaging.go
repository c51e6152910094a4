// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects the attendance service consumes. The webhook route layer
// verifies Zoom signatures and republishes events on these subjects.
const (
	ZoomWebhookMeetingStartedSubject           = "lfx.webhook.zoom.meeting.started"
	ZoomWebhookMeetingEndedSubject             = "lfx.webhook.zoom.meeting.ended"
	ZoomWebhookMeetingParticipantJoinedSubject = "lfx.webhook.zoom.meeting.participant_joined"
	ZoomWebhookMeetingParticipantLeftSubject   = "lfx.webhook.zoom.meeting.participant_left"
)

// NATS request/reply subjects served by the attendance service.
const (
	// AttendanceAPIQueue is the queue group shared by all service instances.
	AttendanceAPIQueue = "lfx.attendance-api.queue"

	// ReconcileSubject triggers a reconciliation run.
	// The subject is of the form: lfx.attendance.reconcile
	ReconcileSubject = "lfx.attendance.reconcile"

	// GetVerdictSubject returns the verdict for one identity in a meeting.
	GetVerdictSubject = "lfx.attendance.get_verdict"

	// MeetingSummarySubject returns summary statistics for a meeting.
	MeetingSummarySubject = "lfx.attendance.meeting_summary"
)

// NotificationType names an outbound domain notification.
type NotificationType string

// Notification types emitted by the attendance core.
const (
	NotificationParticipantJoined    NotificationType = "participant_joined"
	NotificationParticipantLeft      NotificationType = "participant_left"
	NotificationAttendanceCalculated NotificationType = "attendance_calculated"
	NotificationReconciliationFailed NotificationType = "reconciliation_failed"
)

const notificationSubjectPrefix = "lfx.attendance."

// Subject returns the NATS subject a notification is published on,
// e.g. lfx.attendance.participant_joined.
func (t NotificationType) Subject() string {
	return notificationSubjectPrefix + string(t)
}

// Notification is the outbound message fanned out to subscribers.
type Notification struct {
	Type       NotificationType `json:"type"`
	MeetingID  string           `json:"meeting_id"`
	OccurredAt time.Time        `json:"occurred_at"`
	Data       any              `json:"data,omitempty"`
}

// ParticipantNotification is the data of participant_joined and participant_left.
type ParticipantNotification struct {
	SessionUID  string    `json:"session_uid"`
	IdentityKey string    `json:"identity_key"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	At          time.Time `json:"at"`
}

// AttendanceCalculatedNotification is the data of attendance_calculated.
type AttendanceCalculatedNotification struct {
	Result   ReconciliationResult `json:"result"`
	Verdicts []AttendanceVerdict  `json:"verdicts"`
}

// ReconciliationFailedNotification is the data of reconciliation_failed.
type ReconciliationFailedNotification struct {
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

// ZoomWebhookEventMessage is the schema for Zoom webhook events sent via NATS for async processing.
type ZoomWebhookEventMessage struct {
	EventType string                 `json:"event_type"`
	EventTS   int64                  `json:"event_ts"`
	Payload   map[string]interface{} `json:"payload"`
}

// ReconcileRequest is the body of a ReconcileSubject request.
type ReconcileRequest struct {
	MeetingID string `json:"meeting_id"`
	Force     bool   `json:"force"`
}

// VerdictRequest is the body of a GetVerdictSubject request.
type VerdictRequest struct {
	MeetingID string `json:"meeting_id"`
	Identity  string `json:"identity"`
}

// MeetingSummaryRequest is the body of a MeetingSummarySubject request.
type MeetingSummaryRequest struct {
	MeetingID string `json:"meeting_id"`
}

// ErrorReply is returned on request/reply subjects when a request fails.
type ErrorReply struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}
