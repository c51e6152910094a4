// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// AttendanceStatus is the classification of a participant's attendance.
type AttendanceStatus string

// Attendance classifications.
const (
	AttendanceStatusPresent    AttendanceStatus = "Present"
	AttendanceStatusAbsent     AttendanceStatus = "Absent"
	AttendanceStatusInProgress AttendanceStatus = "In Progress"
)

// AttendanceVerdict is the derived attendance result for one identity in one
// meeting. It is recomputed from sessions and never stored on its own.
type AttendanceVerdict struct {
	MeetingID   string `json:"meeting_id"`
	IdentityKey string `json:"identity_key"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`

	TotalSeconds           int64 `json:"total_seconds"`
	MeetingDurationSeconds int64 `json:"meeting_duration_seconds"`

	// Percentage is rounded and capped at 100 for display. ExactPercentage is
	// the unrounded, uncapped ratio the status is decided on.
	Percentage      int              `json:"attendance_percentage"`
	ExactPercentage float64          `json:"exact_percentage"`
	Status          AttendanceStatus `json:"status"`
	LowConfidence   bool             `json:"low_confidence"`
	SessionCount    int              `json:"session_count"`
	Reconciled      bool             `json:"reconciled"`
	CalculatedAt    time.Time        `json:"calculated_at"`
}

// MeetingSummary holds attendance statistics for a meeting.
type MeetingSummary struct {
	MeetingID            string              `json:"meeting_id"`
	Topic                string              `json:"topic,omitempty"`
	Status               MeetingStatus       `json:"status"`
	AttendanceCalculated bool                `json:"attendance_calculated"`
	MeetingDurationSecs  int64               `json:"meeting_duration_seconds"`
	Threshold            float64             `json:"threshold"`
	TotalParticipants    int                 `json:"total_participants"`
	Present              int                 `json:"present"`
	Absent               int                 `json:"absent"`
	InProgress           int                 `json:"in_progress"`
	LowConfidence        int                 `json:"low_confidence"`
	AveragePercentage    float64             `json:"average_percentage"`
	TotalSessions        int                 `json:"total_sessions"`
	ReconciledSessions   int                 `json:"reconciled_sessions"`
	Verdicts             []AttendanceVerdict `json:"verdicts"`
}
