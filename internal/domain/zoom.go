// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// ZoomReportClient reads post-meeting data from Zoom. Every call goes through
// the rate-limited gateway.
type ZoomReportClient interface {
	// GetPastMeetingParticipants returns every entry of the participants
	// report for a meeting instance, following pagination.
	GetPastMeetingParticipants(ctx context.Context, meetingUUID string) ([]models.ZoomReportParticipant, error)
	GetPastMeeting(ctx context.Context, meetingUUID string) (*models.ZoomPastMeeting, error)
	GetUser(ctx context.Context, userID string) (*models.ZoomUser, error)
}
