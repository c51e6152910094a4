// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/utils"
)

// ZoomReportParticipant is one entry of the past meeting participants report.
// A participant who reconnected appears once per connection.
type ZoomReportParticipant struct {
	ID                FlexibleString `json:"id"`
	UserID            FlexibleString `json:"user_id"`
	ParticipantUserID FlexibleString `json:"participant_user_id"`
	ParticipantUUID   string         `json:"participant_uuid"`
	Name              string         `json:"name"`
	UserName          string         `json:"user_name"`
	Email             string         `json:"email"`
	UserEmail         string         `json:"user_email"`
	JoinTime          string         `json:"join_time"`
	LeaveTime         string         `json:"leave_time"`

	// Duration is in seconds.
	Duration FlexibleString `json:"duration"`
	Status   string         `json:"status"`
}

// DisplayName returns the name Zoom recorded for the entry.
func (p ZoomReportParticipant) DisplayName() string {
	return utils.CoalesceString(p.Name, p.UserName)
}

// EmailAddress returns the email Zoom recorded for the entry.
func (p ZoomReportParticipant) EmailAddress() string {
	return utils.CoalesceString(p.UserEmail, p.Email)
}

// ZoomReportParticipantsResponse is one page of the participants report.
type ZoomReportParticipantsResponse struct {
	PageCount     int                     `json:"page_count"`
	PageSize      int                     `json:"page_size"`
	TotalRecords  int                     `json:"total_records"`
	NextPageToken string                  `json:"next_page_token"`
	Participants  []ZoomReportParticipant `json:"participants"`
}

// ZoomPastMeeting holds the details of an ended meeting instance.
type ZoomPastMeeting struct {
	UUID      string         `json:"uuid"`
	ID        FlexibleString `json:"id"`
	HostID    string         `json:"host_id"`
	Topic     string         `json:"topic"`
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`

	// Duration is in minutes.
	Duration          FlexibleString `json:"duration"`
	TotalMinutes      int            `json:"total_minutes"`
	ParticipantsCount int            `json:"participants_count"`
}

// ZoomUser is the subset of a Zoom user used to enrich report entries.
type ZoomUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ReportEntry is the normalized form of a report participant.
type ReportEntry struct {
	ID                string
	UserID            string
	ParticipantUserID string
	ParticipantUUID   string
	Name              string
	Email             string
	JoinTime          time.Time
	LeaveTime         time.Time
	DurationSeconds   int64

	// TimestampSubstituted is set when a report time could not be parsed.
	TimestampSubstituted bool
}

// ToReportEntry normalizes a report participant. Unparsable times fall back to
// the meeting bounds so the entry is never dropped.
func (p ZoomReportParticipant) ToReportEntry(meetingStart, meetingEnd time.Time) ReportEntry {
	join, joinSubstituted := utils.ParseTimestampOr(p.JoinTime, meetingStart)
	leave, leaveSubstituted := utils.ParseTimestampOr(p.LeaveTime, meetingEnd)
	if leave.Before(join) {
		leave = join
	}

	duration := int64(p.Duration.Int())
	if duration <= 0 {
		duration = int64(leave.Sub(join) / time.Second)
	}

	return ReportEntry{
		ID:                   p.ID.String(),
		UserID:               p.UserID.String(),
		ParticipantUserID:    p.ParticipantUserID.String(),
		ParticipantUUID:      p.ParticipantUUID,
		Name:                 CleanDisplayName(p.DisplayName()),
		Email:                p.EmailAddress(),
		JoinTime:             join,
		LeaveTime:            leave,
		DurationSeconds:      duration,
		TimestampSubstituted: joinSubstituted || leaveSubstituted,
	}
}
