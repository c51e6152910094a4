// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
)

// Response cache lifetimes per endpoint
const (
	ReportCacheTTL      = 1 * time.Minute
	PastMeetingCacheTTL = 5 * time.Minute
	UserCacheTTL        = 10 * time.Minute

	// reportPageSize is the largest page the report endpoint accepts.
	reportPageSize = 300
	// maxReportPages guards against a next_page_token that never ends.
	maxReportPages = 100
)

// EscapeMeetingUUID escapes a meeting UUID for use as a path segment. Zoom
// requires UUIDs that begin with '/' or contain "//" to be encoded twice; we
// double encode any UUID containing a slash.
func EscapeMeetingUUID(meetingUUID string) string {
	escaped := url.PathEscape(meetingUUID)
	if strings.Contains(meetingUUID, "/") {
		escaped = url.PathEscape(escaped)
	}
	return escaped
}

// GetPastMeetingParticipants retrieves the participants report of an ended
// meeting instance, following pagination.
func (c *Client) GetPastMeetingParticipants(ctx context.Context, meetingUUID string) ([]models.ZoomReportParticipant, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "get_report_participants"))
	if meetingUUID == "" {
		return nil, domain.NewValidationError("meeting uuid is required")
	}

	path := fmt.Sprintf("/report/meetings/%s/participants", EscapeMeetingUUID(meetingUUID))

	var participants []models.ZoomReportParticipant
	nextPageToken := ""
	for page := 0; page < maxReportPages; page++ {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(reportPageSize))
		if nextPageToken != "" {
			query.Set("next_page_token", nextPageToken)
		}

		var reportPage models.ZoomReportParticipantsResponse
		cacheKey := fmt.Sprintf("report:participants:%s:%s", meetingUUID, nextPageToken)
		if err := c.getJSON(ctx, Request{Path: path, Query: query}, CategoryReport, &reportPage,
			WithCache(cacheKey, ReportCacheTTL)); err != nil {
			slog.ErrorContext(ctx, "failed to get Zoom participants report", logging.ErrKey, err, "page", page)
			return nil, err
		}

		participants = append(participants, reportPage.Participants...)
		nextPageToken = reportPage.NextPageToken
		if nextPageToken == "" {
			slog.InfoContext(ctx, "successfully retrieved Zoom participants report",
				"participant_count", len(participants),
				"total_records", reportPage.TotalRecords,
				"pages", page+1)
			return participants, nil
		}
	}

	return nil, domain.NewInternalError(
		fmt.Sprintf("participants report exceeded %d pages", maxReportPages))
}

// GetPastMeeting retrieves the details of an ended meeting instance.
func (c *Client) GetPastMeeting(ctx context.Context, meetingUUID string) (*models.ZoomPastMeeting, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "get_past_meeting"))
	if meetingUUID == "" {
		return nil, domain.NewValidationError("meeting uuid is required")
	}

	var meeting models.ZoomPastMeeting
	path := "/past_meetings/" + EscapeMeetingUUID(meetingUUID)
	if err := c.getJSON(ctx, Request{Path: path}, CategoryMeeting, &meeting,
		WithCache("past_meeting:"+meetingUUID, PastMeetingCacheTTL)); err != nil {
		slog.ErrorContext(ctx, "failed to get Zoom past meeting", logging.ErrKey, err)
		return nil, err
	}
	return &meeting, nil
}

// GetUser retrieves a Zoom user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.ZoomUser, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "get_user"))
	if userID == "" {
		return nil, domain.NewValidationError("user id is required")
	}

	var user models.ZoomUser
	if err := c.getJSON(ctx, Request{Path: "/users/" + url.PathEscape(userID)}, CategoryUser, &user,
		WithCache("user:"+userID, UserCacheTTL)); err != nil {
		slog.WarnContext(ctx, "failed to get Zoom user", logging.ErrKey, err)
		return nil, err
	}
	return &user, nil
}

// getJSON performs a call and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, req Request, category Category, out any, opts ...CallOption) error {
	resp, err := c.Call(ctx, req, category, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return domain.NewInternalError("failed to decode Zoom API response", err)
	}
	return nil
}

var _ domain.ZoomReportClient = (*Client)(nil)
