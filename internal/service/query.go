// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// AttendanceQueryService serves verdicts and meeting statistics. Verdicts are
// always derived from the current sessions.
type AttendanceQueryService struct {
	MeetingRecordRepository      domain.MeetingRecordRepository
	ParticipantSessionRepository domain.ParticipantSessionRepository
	Config                       AttendanceConfig

	aggregator *Aggregator
}

// NewAttendanceQueryService creates a new AttendanceQueryService.
func NewAttendanceQueryService(
	meetingRecordRepository domain.MeetingRecordRepository,
	participantSessionRepository domain.ParticipantSessionRepository,
	clk clock.Clock,
	config AttendanceConfig,
) *AttendanceQueryService {
	config = config.withDefaults()
	return &AttendanceQueryService{
		MeetingRecordRepository:      meetingRecordRepository,
		ParticipantSessionRepository: participantSessionRepository,
		Config:                       config,
		aggregator:                   NewAggregator(config.Threshold, config.SelfDurationFallback, clk),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AttendanceQueryService) ServiceReady() bool {
	return s.MeetingRecordRepository != nil && s.ParticipantSessionRepository != nil
}

// GetVerdict returns the verdict of one identity. identity may be the
// identity key, its value without prefix, a participant UUID or id, an email
// or a display name.
func (s *AttendanceQueryService) GetVerdict(ctx context.Context, meetingID, identity string) (*models.AttendanceVerdict, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}
	identity = strings.TrimSpace(identity)
	if meetingID == "" || identity == "" {
		return nil, domain.NewValidationError("meeting ID and identity are required")
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	record, sessions, err := s.load(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	key := resolveIdentityKey(sessions, identity)
	if key == "" {
		slog.DebugContext(ctx, "identity not found in meeting")
		return nil, domain.NewNotFoundError("participant not found in meeting")
	}
	verdict := s.aggregator.Aggregate(sessions.ByIdentity()[key], MeetingDuration(record, sessions))
	return &verdict, nil
}

// GetMeetingSummary returns attendance statistics with every verdict of the meeting.
func (s *AttendanceQueryService) GetMeetingSummary(ctx context.Context, meetingID string) (*models.MeetingSummary, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}
	if meetingID == "" {
		return nil, domain.NewValidationError("meeting ID is required")
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	record, sessions, err := s.load(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	verdicts := s.aggregator.AggregateMeeting(record, sessions)
	summary := &models.MeetingSummary{
		MeetingID:            record.MeetingID,
		Topic:                record.Topic,
		Status:               record.Status,
		AttendanceCalculated: record.AttendanceCalculated,
		MeetingDurationSecs:  int64(MeetingDuration(record, sessions).Seconds()),
		Threshold:            s.aggregator.Threshold(),
		TotalParticipants:    len(verdicts),
		TotalSessions:        len(sessions.Sessions),
		Verdicts:             verdicts,
	}
	if summary.Verdicts == nil {
		summary.Verdicts = []models.AttendanceVerdict{}
	}

	var percentSum int
	for _, v := range verdicts {
		percentSum += v.Percentage
		switch v.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusInProgress:
			summary.InProgress++
		default:
			summary.Absent++
		}
		if v.LowConfidence {
			summary.LowConfidence++
		}
	}
	for _, session := range sessions.Sessions {
		if session.IsReconciled {
			summary.ReconciledSessions++
		}
	}
	if len(verdicts) > 0 {
		summary.AveragePercentage = math.Round(float64(percentSum)/float64(len(verdicts))*100) / 100
	}
	return summary, nil
}

func (s *AttendanceQueryService) load(ctx context.Context, meetingID string) (*models.MeetingRecord, *models.MeetingSessions, error) {
	record, _, err := s.MeetingRecordRepository.Get(ctx, meetingID)
	if err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			slog.ErrorContext(ctx, "error getting meeting record", logging.ErrKey, err)
		}
		return nil, nil, err
	}
	sessions, _, err := loadMeetingSessions(ctx, s.ParticipantSessionRepository, meetingID)
	if err != nil {
		slog.ErrorContext(ctx, "error getting meeting sessions", logging.ErrKey, err)
		return nil, nil, err
	}
	return record, sessions, nil
}

// resolveIdentityKey finds the identity key that identity refers to. Exact
// keys win over any looser form.
func resolveIdentityKey(sessions *models.MeetingSessions, identity string) string {
	for _, s := range sessions.Sessions {
		if s.IdentityKey == identity {
			return s.IdentityKey
		}
	}

	email := models.NormalizeEmail(identity)
	name := models.NormalizeName(identity)
	for _, s := range sessions.Sessions {
		_, suffix, _ := strings.Cut(s.IdentityKey, ":")
		switch {
		case strings.EqualFold(suffix, identity),
			s.ParticipantUUID == identity,
			s.ParticipantID == identity,
			email != "" && models.NormalizeEmail(s.Email) == email,
			name != "" && models.NormalizeName(s.Name) == name:
			return s.IdentityKey
		}
	}
	return ""
}
