// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParticipantSession_Close(t *testing.T) {
	join := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &ParticipantSession{JoinTime: join, ConnectionStatus: ConnectionStatusInMeeting}
	assert.True(t, s.IsOpen())

	s.Close(join.Add(55*time.Minute), "")
	assert.False(t, s.IsOpen())
	assert.Equal(t, int64(55*60), s.DurationSeconds)
	assert.Equal(t, ConnectionStatusLeft, s.ConnectionStatus)
}

func TestParticipantSession_CloseBeforeJoinIsClamped(t *testing.T) {
	join := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &ParticipantSession{JoinTime: join}

	s.Close(join.Add(-time.Minute), LeaveReasonMeetingEnded)
	assert.Equal(t, join, *s.LeaveTime)
	assert.Zero(t, s.DurationSeconds)
	assert.Equal(t, LeaveReasonMeetingEnded, s.LeaveReason)
}

func TestParticipantSession_AttendedSeconds(t *testing.T) {
	join := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	open := &ParticipantSession{JoinTime: join}
	assert.Equal(t, int64(600), open.AttendedSeconds(join.Add(10*time.Minute)))
	assert.Zero(t, open.AttendedSeconds(join.Add(-time.Minute)), "clock skew never goes negative")

	closed := &ParticipantSession{JoinTime: join}
	closed.Close(join.Add(5*time.Minute), "")
	assert.Equal(t, int64(300), closed.AttendedSeconds(join.Add(time.Hour)))
}

func TestIdentityKeyFor(t *testing.T) {
	tests := []struct {
		name                    string
		uuid, id, email, userNm string
		expected                string
	}{
		{"uuid wins", "pu-1", "u-1", "a@b.org", "Jane", "uuid:pu-1"},
		{"id next", "", "u-1", "a@b.org", "Jane", "id:u-1"},
		{"email lower-cased", "", "", " Jane@Example.ORG ", "Jane", "email:jane@example.org"},
		{"cleaned name", "", "", "", "Jane  Doe (Acme Corp)", "name:jane doe"},
		{"nothing", "", "", "", " ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IdentityKeyFor(tt.uuid, tt.id, tt.email, tt.userNm))
		})
	}
}

func TestReportIdentityKey(t *testing.T) {
	assert.Equal(t, "report:jane@example.org", ReportIdentityKey("Jane@example.org", "16778240", "x", "Jane"))
	assert.Equal(t, "report:16778240", ReportIdentityKey("", "16778240", "x", "Jane"))
	assert.Equal(t, "report:x", ReportIdentityKey("", "", "x", "Jane"))
	assert.Equal(t, "report:jane", ReportIdentityKey("", "", "", "Jane (Acme)"))
}

func TestEventParticipant_IdentityKeyFallsBackToUserID(t *testing.T) {
	p := &EventParticipant{UserID: "16778240"}
	assert.Equal(t, "id:16778240", p.IdentityKey())

	var nilParticipant *EventParticipant
	assert.Empty(t, nilParticipant.IdentityKey())
}
