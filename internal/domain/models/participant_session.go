// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"strings"
	"time"
)

// ConnectionStatus is the connection state of a single session.
type ConnectionStatus string

// Session connection states.
const (
	ConnectionStatusJoined    ConnectionStatus = "joined"
	ConnectionStatusInMeeting ConnectionStatus = "in_meeting"
	ConnectionStatusLeft      ConnectionStatus = "left"
)

// SessionSource records where a session's data came from.
type SessionSource string

// Session sources.
const (
	SessionSourceEventStream  SessionSource = "event_stream"
	SessionSourceAPIReconcile SessionSource = "api_reconcile"
	SessionSourceManual       SessionSource = "manual"
)

// Leave reasons set by the service rather than by Zoom.
const (
	LeaveReasonMeetingEnded = "meeting_ended"
	LeaveReasonSynthesized  = "leave_without_join"
)

// ParticipantSession is one continuous join-to-leave interval of a participant
// in a meeting. A participant who reconnects has several sessions sharing the
// same IdentityKey.
type ParticipantSession struct {
	UID         string `json:"uid"`
	MeetingID   string `json:"meeting_id"`
	MeetingUUID string `json:"meeting_uuid,omitempty"`
	IdentityKey string `json:"identity_key"`

	ParticipantUUID   string `json:"participant_uuid,omitempty"`
	ParticipantID     string `json:"participant_id,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	ParticipantUserID string `json:"participant_user_id,omitempty"`
	Name              string `json:"participant_name"`
	Email             string `json:"participant_email,omitempty"`

	JoinTime         time.Time        `json:"join_time"`
	LeaveTime        *time.Time       `json:"leave_time,omitempty"`
	DurationSeconds  int64            `json:"duration_seconds"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	LeaveReason      string           `json:"leave_reason,omitempty"`
	Source           SessionSource    `json:"source"`
	IsReconciled     bool             `json:"is_reconciled"`

	// TimestampSubstituted is set when a join or leave time could not be read
	// from the event and the receipt time was used instead.
	TimestampSubstituted bool `json:"timestamp_substituted,omitempty"`

	AttendancePercentage int              `json:"attendance_percentage"`
	AttendanceStatus     AttendanceStatus `json:"attendance_status,omitempty"`
	LowConfidence        bool             `json:"low_confidence,omitempty"`
	VerdictCalculatedAt  *time.Time       `json:"verdict_calculated_at,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// IsOpen reports whether the session has no leave time yet.
func (s *ParticipantSession) IsOpen() bool {
	return s != nil && s.LeaveTime == nil
}

// Close sets the leave time and derives the duration. A leave before the join
// is clamped to the join time so leaveTime >= joinTime always holds.
func (s *ParticipantSession) Close(leave time.Time, reason string) {
	if leave.Before(s.JoinTime) {
		leave = s.JoinTime
	}
	s.LeaveTime = &leave
	s.DurationSeconds = int64(leave.Sub(s.JoinTime) / time.Second)
	s.ConnectionStatus = ConnectionStatusLeft
	s.LeaveReason = reason
}

// AttendedSeconds is the time this session contributes to attendance. An open
// session counts up to now.
func (s *ParticipantSession) AttendedSeconds(now time.Time) int64 {
	if s.LeaveTime == nil {
		if now.Before(s.JoinTime) {
			return 0
		}
		return int64(now.Sub(s.JoinTime) / time.Second)
	}
	return s.DurationSeconds
}

// Identity resolution prefixes.
const (
	identityPrefixUUID   = "uuid:"
	identityPrefixID     = "id:"
	identityPrefixEmail  = "email:"
	identityPrefixName   = "name:"
	identityPrefixReport = "report:"
)

// IdentityKeyFor resolves the logical person behind a participant: the
// participant UUID, then the participant id, the lower-cased email and
// finally the cleaned display name. It returns "" when nothing identifies them.
func IdentityKeyFor(participantUUID, participantID, email, name string) string {
	switch {
	case strings.TrimSpace(participantUUID) != "":
		return identityPrefixUUID + strings.TrimSpace(participantUUID)
	case strings.TrimSpace(participantID) != "":
		return identityPrefixID + strings.TrimSpace(participantID)
	case NormalizeEmail(email) != "":
		return identityPrefixEmail + NormalizeEmail(email)
	case NormalizeName(name) != "":
		return identityPrefixName + NormalizeName(name)
	default:
		return ""
	}
}

// ReportIdentityKey synthesizes the identity of a person only known from the
// post-meeting report.
func ReportIdentityKey(email, userID, id, name string) string {
	switch {
	case NormalizeEmail(email) != "":
		return identityPrefixReport + NormalizeEmail(email)
	case strings.TrimSpace(userID) != "":
		return identityPrefixReport + strings.TrimSpace(userID)
	case strings.TrimSpace(id) != "":
		return identityPrefixReport + strings.TrimSpace(id)
	default:
		return identityPrefixReport + NormalizeName(name)
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CleanDisplayName removes the organization suffix Zoom users commonly add in
// parentheses, e.g. "Jane Doe (Acme)" becomes "Jane Doe".
func CleanDisplayName(name string) string {
	if idx := strings.Index(name, "("); idx != -1 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// NormalizeName is the case-insensitive comparison form of a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(CleanDisplayName(name)), " "))
}

// MeetingSessions is the stored set of sessions of one meeting.
type MeetingSessions struct {
	MeetingID string                `json:"meeting_id"`
	Sessions  []*ParticipantSession `json:"sessions"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
}

// OpenSessions returns the sessions without a leave time.
func (m *MeetingSessions) OpenSessions() []*ParticipantSession {
	if m == nil {
		return nil
	}
	var open []*ParticipantSession
	for _, s := range m.Sessions {
		if s.IsOpen() {
			open = append(open, s)
		}
	}
	return open
}

// ByIdentity groups the sessions by identity key.
func (m *MeetingSessions) ByIdentity() map[string][]*ParticipantSession {
	out := make(map[string][]*ParticipantSession)
	if m == nil {
		return out
	}
	for _, s := range m.Sessions {
		out[s.IdentityKey] = append(out[s.IdentityKey], s)
	}
	return out
}
