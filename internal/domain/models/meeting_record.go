// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// MeetingStatus is the lifecycle state of a meeting instance.
type MeetingStatus string

// Meeting lifecycle states. A meeting only ever moves forward through them.
const (
	MeetingStatusWaiting MeetingStatus = "waiting"
	MeetingStatusStarted MeetingStatus = "started"
	MeetingStatusEnded   MeetingStatus = "ended"
)

func (s MeetingStatus) rank() int {
	switch s {
	case MeetingStatusWaiting:
		return 1
	case MeetingStatusStarted:
		return 2
	case MeetingStatusEnded:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to next is a forward move.
// Repeating the current state is not a transition.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	return next.rank() > s.rank()
}

// MeetingRecord is the attendance view of one meeting.
type MeetingRecord struct {
	MeetingID   string `json:"meeting_id"`
	MeetingUUID string `json:"meeting_uuid"`
	Topic       string `json:"topic,omitempty"`
	HostID      string `json:"host_id,omitempty"`

	// ScheduledDuration is in minutes. Zero means unknown.
	ScheduledDuration    int           `json:"scheduled_duration,omitempty"`
	ActualStartTime      *time.Time    `json:"actual_start_time,omitempty"`
	ActualEndTime        *time.Time    `json:"actual_end_time,omitempty"`
	Status               MeetingStatus `json:"status"`
	AttendanceCalculated bool          `json:"attendance_calculated"`
	CalculatedAt         *time.Time    `json:"calculated_at,omitempty"`
	CreatedAt            *time.Time    `json:"created_at,omitempty"`
	UpdatedAt            *time.Time    `json:"updated_at,omitempty"`
}

// IsEnded reports whether the meeting reached its terminal state.
func (m *MeetingRecord) IsEnded() bool {
	return m != nil && m.Status == MeetingStatusEnded
}

// ReportUUID returns the identifier used for post-meeting report lookups,
// falling back to the meeting id when no instance UUID was observed.
func (m *MeetingRecord) ReportUUID() string {
	if m == nil {
		return ""
	}
	if m.MeetingUUID != "" {
		return m.MeetingUUID
	}
	return m.MeetingID
}
