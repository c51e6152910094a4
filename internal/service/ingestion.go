// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/redaction"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/utils"
)

// IngestEffect describes what an ingested event changed.
type IngestEffect string

// Ingestion effects.
const (
	EffectMeetingStarted     IngestEffect = "meeting_started"
	EffectMeetingEnded       IngestEffect = "meeting_ended"
	EffectStartBackfilled    IngestEffect = "start_backfilled"
	EffectSessionOpened      IngestEffect = "session_opened"
	EffectSessionReused      IngestEffect = "session_reused"
	EffectSessionClosed      IngestEffect = "session_closed"
	EffectSessionSynthesized IngestEffect = "session_synthesized"
	EffectLeaveCorrected     IngestEffect = "leave_corrected"
	EffectLateJoinRecorded   IngestEffect = "late_join_recorded"
	EffectDuplicate          IngestEffect = "duplicate"
	EffectNoOp               IngestEffect = "no_op"
)

// IngestResult is the outcome of Ingest. Duplicates are accepted.
type IngestResult struct {
	Accepted   bool         `json:"accepted"`
	Duplicate  bool         `json:"duplicate,omitempty"`
	Effect     IngestEffect `json:"effect"`
	SessionUID string       `json:"session_uid,omitempty"`
}

// ReconcileTrigger starts a reconciliation without waiting for it.
type ReconcileTrigger interface {
	TriggerReconcile(ctx context.Context, meetingID string)
}

// IngestionService applies lifecycle events to meeting and session records.
type IngestionService struct {
	MeetingRecordRepository      domain.MeetingRecordRepository
	ParticipantSessionRepository domain.ParticipantSessionRepository
	NotificationEmitter          domain.NotificationEmitter
	Trigger                      ReconcileTrigger
	Config                       AttendanceConfig

	aggregator *Aggregator
	dedup      *DedupHistory
	locks      *concurrent.KeyedMutex
	clock      clock.Clock
	metrics    *serviceMetrics
}

// NewIngestionService creates a new IngestionService. locks must be shared
// with the ReconciliationService so both never write a meeting at once.
func NewIngestionService(
	meetingRecordRepository domain.MeetingRecordRepository,
	participantSessionRepository domain.ParticipantSessionRepository,
	notificationEmitter domain.NotificationEmitter,
	trigger ReconcileTrigger,
	locks *concurrent.KeyedMutex,
	clk clock.Clock,
	config AttendanceConfig,
) *IngestionService {
	config = config.withDefaults()
	if clk == nil {
		clk = clock.Real()
	}
	if locks == nil {
		locks = concurrent.NewKeyedMutex()
	}
	return &IngestionService{
		MeetingRecordRepository:      meetingRecordRepository,
		ParticipantSessionRepository: participantSessionRepository,
		NotificationEmitter:          notificationEmitter,
		Trigger:                      trigger,
		Config:                       config,
		aggregator:                   NewAggregator(config.Threshold, config.SelfDurationFallback, clk),
		dedup:                        NewDedupHistory(config.DedupHistorySize),
		locks:                        locks,
		clock:                        clk,
		metrics:                      newServiceMetrics(),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *IngestionService) ServiceReady() bool {
	return s.MeetingRecordRepository != nil &&
		s.ParticipantSessionRepository != nil
}

// ingestChange is what applying one event produced besides the result.
type ingestChange struct {
	result        IngestResult
	notifications []models.Notification
	reconcile     bool
}

// Ingest applies a validated lifecycle event. A repeated event is accepted
// as a no-op and leaves the stored state untouched.
func (s *IngestionService) Ingest(ctx context.Context, event *models.LifecycleEvent) (IngestResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return IngestResult{}, domain.NewUnavailableError("service not initialized")
	}
	if event == nil {
		return IngestResult{}, domain.NewValidationError("event is required")
	}
	if err := event.Validate(); err != nil {
		slog.WarnContext(ctx, "invalid lifecycle event", logging.ErrKey, err)
		return IngestResult{}, domain.NewValidationError("invalid lifecycle event", err)
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", event.MeetingID))
	ctx = logging.AppendCtx(ctx, slog.String("event_type", string(event.Type)))
	if event.Participant != nil {
		ctx = logging.AppendCtx(ctx, slog.String("participant_identity", event.Participant.IdentityKey()))
	}
	if event.TimestampSubstituted {
		slog.WarnContext(ctx, "event time missing or unparsable, receipt time substituted",
			"received_at", event.ReceivedAt)
	}

	unlock := s.locks.Lock(event.MeetingID)
	defer unlock()

	key := event.IdempotencyKey()
	if s.dedup.Seen(key) {
		s.metrics.eventDuplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(event.Type))))
		slog.DebugContext(ctx, "duplicate event discarded", "idempotency_key", key)
		return IngestResult{Accepted: true, Duplicate: true, Effect: EffectDuplicate}, nil
	}

	var (
		change ingestChange
		err    error
	)
	for attempt := 0; attempt <= DefaultConflictRetries; attempt++ {
		change, err = s.apply(ctx, event)
		if err == nil || domain.GetErrorType(err) != domain.ErrorTypeConflict {
			break
		}
		slog.WarnContext(ctx, "meeting modified concurrently, retrying event", "attempt", attempt+1)
	}
	if err != nil {
		slog.ErrorContext(ctx, "error applying lifecycle event", logging.ErrKey, err)
		return IngestResult{}, err
	}

	s.dedup.Remember(key)
	s.metrics.eventsIngested.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", string(event.Type)),
		attribute.String("effect", string(change.result.Effect)),
	))

	if s.NotificationEmitter != nil {
		for _, n := range change.notifications {
			s.NotificationEmitter.Emit(ctx, n)
		}
	}
	if change.reconcile && s.Trigger != nil {
		s.Trigger.TriggerReconcile(ctx, event.MeetingID)
	}

	slog.DebugContext(ctx, "lifecycle event ingested", "effect", change.result.Effect)
	return change.result, nil
}

func (s *IngestionService) apply(ctx context.Context, event *models.LifecycleEvent) (ingestChange, error) {
	switch event.Type {
	case models.EventMeetingStarted:
		return s.applyMeetingStarted(ctx, event)
	case models.EventMeetingEnded:
		return s.applyMeetingEnded(ctx, event)
	case models.EventParticipantJoined:
		return s.applyParticipantJoined(ctx, event)
	case models.EventParticipantLeft:
		return s.applyParticipantLeft(ctx, event)
	default:
		return ingestChange{}, domain.NewValidationError("unsupported event type " + string(event.Type))
	}
}

func (s *IngestionService) applyMeetingStarted(ctx context.Context, event *models.LifecycleEvent) (ingestChange, error) {
	record, revision, err := s.loadRecord(ctx, event)
	if err != nil {
		return ingestChange{}, err
	}

	start := event.Timestamp
	if event.StartTime != nil {
		start = *event.StartTime
	}

	effect := EffectNoOp
	switch {
	case record.Status.CanTransitionTo(models.MeetingStatusStarted):
		record.Status = models.MeetingStatusStarted
		record.ActualStartTime = &start
		effect = EffectMeetingStarted
	case record.ActualStartTime == nil:
		// Start arrived after the meeting ended: only the time is kept.
		record.ActualStartTime = &start
		effect = EffectStartBackfilled
	}

	if effect == EffectNoOp && revision != 0 {
		return ingestChange{result: IngestResult{Accepted: true, Effect: effect}}, nil
	}
	if _, err := s.saveRecord(ctx, record, revision); err != nil {
		return ingestChange{}, err
	}
	return ingestChange{result: IngestResult{Accepted: true, Effect: effect}}, nil
}

func (s *IngestionService) applyMeetingEnded(ctx context.Context, event *models.LifecycleEvent) (ingestChange, error) {
	record, revision, err := s.loadRecord(ctx, event)
	if err != nil {
		return ingestChange{}, err
	}
	if record.IsEnded() {
		return ingestChange{result: IngestResult{Accepted: true, Effect: EffectNoOp}}, nil
	}

	end := event.Timestamp
	if event.EndTime != nil {
		end = *event.EndTime
	}
	record.Status = models.MeetingStatusEnded
	record.ActualEndTime = &end
	if record.ActualStartTime == nil && event.StartTime != nil {
		start := *event.StartTime
		record.ActualStartTime = &start
	}

	// Sessions are closed before the record is marked ended so a retried
	// event never sees an ended meeting with open sessions.
	sessions, sessionsRevision, err := s.loadSessions(ctx, event.MeetingID)
	if err != nil {
		return ingestChange{}, err
	}
	open := sessions.OpenSessions()
	for _, session := range open {
		session.Close(end, models.LeaveReasonMeetingEnded)
		session.UpdatedAt = s.now()
	}
	if len(sessions.Sessions) > 0 {
		ApplyVerdicts(sessions, s.aggregator.AggregateMeeting(record, sessions))
		if _, err := s.saveSessions(ctx, sessions, sessionsRevision); err != nil {
			return ingestChange{}, err
		}
	}
	if len(open) > 0 {
		slog.InfoContext(ctx, "open sessions closed at meeting end", "count", len(open), "end_time", end)
	}

	if _, err := s.saveRecord(ctx, record, revision); err != nil {
		return ingestChange{}, err
	}
	return ingestChange{
		result:    IngestResult{Accepted: true, Effect: EffectMeetingEnded},
		reconcile: true,
	}, nil
}

func (s *IngestionService) applyParticipantJoined(ctx context.Context, event *models.LifecycleEvent) (ingestChange, error) {
	record, recordRevision, err := s.loadRecord(ctx, event)
	if err != nil {
		return ingestChange{}, err
	}
	if recordRevision == 0 {
		if _, err := s.saveRecord(ctx, record, 0); err != nil {
			return ingestChange{}, err
		}
	}

	sessions, revision, err := s.loadSessions(ctx, event.MeetingID)
	if err != nil {
		return ingestChange{}, err
	}

	p := event.Participant
	identity := p.IdentityKey()
	forIdentity := sessions.ByIdentity()[identity]

	for _, existing := range forIdentity {
		if existing.IsOpen() {
			return ingestChange{result: IngestResult{Accepted: true, Effect: EffectSessionReused, SessionUID: existing.UID}}, nil
		}
		if existing.JoinTime.Equal(p.JoinTime) {
			return ingestChange{result: IngestResult{Accepted: true, Effect: EffectNoOp, SessionUID: existing.UID}}, nil
		}
	}

	session := s.newEventSession(event, identity)
	effect := EffectSessionOpened
	if record.IsEnded() {
		end := p.JoinTime
		if record.ActualEndTime != nil {
			end = *record.ActualEndTime
		}
		session.Close(end, models.LeaveReasonMeetingEnded)
		effect = EffectLateJoinRecorded
		slog.WarnContext(ctx, "join received after meeting end, recorded as closed", "join_time", p.JoinTime)
	}
	sessions.Sessions = append(sessions.Sessions, session)

	if _, err := s.saveSessions(ctx, sessions, revision); err != nil {
		return ingestChange{}, err
	}

	slog.InfoContext(ctx, "participant joined",
		"session_uid", session.UID,
		"participant_email", redaction.RedactEmail(session.Email),
	)
	return ingestChange{
		result:        IngestResult{Accepted: true, Effect: effect, SessionUID: session.UID},
		notifications: []models.Notification{s.participantNotification(models.NotificationParticipantJoined, session, session.JoinTime)},
	}, nil
}

func (s *IngestionService) applyParticipantLeft(ctx context.Context, event *models.LifecycleEvent) (ingestChange, error) {
	record, recordRevision, err := s.loadRecord(ctx, event)
	if err != nil {
		return ingestChange{}, err
	}
	if recordRevision == 0 {
		if _, err := s.saveRecord(ctx, record, 0); err != nil {
			return ingestChange{}, err
		}
	}

	sessions, revision, err := s.loadSessions(ctx, event.MeetingID)
	if err != nil {
		return ingestChange{}, err
	}

	p := event.Participant
	identity := p.IdentityKey()
	forIdentity := sessions.ByIdentity()[identity]
	leave := p.LeaveTime

	var (
		session *models.ParticipantSession
		effect  IngestEffect
	)
	if open := latestSession(forIdentity, func(s *models.ParticipantSession) bool { return s.IsOpen() }); open != nil {
		open.Close(leave, p.LeaveReason)
		session, effect = open, EffectSessionClosed
	} else if forced := latestSession(forIdentity, func(s *models.ParticipantSession) bool {
		return s.LeaveReason == models.LeaveReasonMeetingEnded && !leave.Before(s.JoinTime) && !leave.After(*s.LeaveTime)
	}); forced != nil {
		forced.Close(leave, p.LeaveReason)
		session, effect = forced, EffectLeaveCorrected
		slog.InfoContext(ctx, "leave received after forced close, leave time corrected", "leave_time", leave)
	} else {
		for _, existing := range forIdentity {
			if existing.LeaveTime != nil && existing.LeaveTime.Equal(leave) {
				return ingestChange{result: IngestResult{Accepted: true, Effect: EffectNoOp, SessionUID: existing.UID}}, nil
			}
		}
		session = s.synthesizeSession(event, identity, record)
		sessions.Sessions = append(sessions.Sessions, session)
		effect = EffectSessionSynthesized
		slog.WarnContext(ctx, "leave without an open session, session synthesized",
			"join_time", session.JoinTime, "leave_time", leave)
	}
	fillParticipantFields(session, p)
	session.UpdatedAt = s.now()

	if _, err := s.saveSessions(ctx, sessions, revision); err != nil {
		return ingestChange{}, err
	}

	change := ingestChange{result: IngestResult{Accepted: true, Effect: effect, SessionUID: session.UID}}
	if effect != EffectLeaveCorrected {
		change.notifications = []models.Notification{s.participantNotification(models.NotificationParticipantLeft, session, leave)}
	}
	return change, nil
}

func (s *IngestionService) newEventSession(event *models.LifecycleEvent, identity string) *models.ParticipantSession {
	p := event.Participant
	now := s.now()
	session := &models.ParticipantSession{
		UID:                  uuid.NewString(),
		MeetingID:            event.MeetingID,
		MeetingUUID:          event.MeetingUUID,
		IdentityKey:          identity,
		JoinTime:             p.JoinTime,
		ConnectionStatus:     models.ConnectionStatusInMeeting,
		Source:               models.SessionSourceEventStream,
		TimestampSubstituted: p.TimeSubstituted,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	fillParticipantFields(session, p)
	return session
}

// synthesizeSession builds a closed session for a leave whose join was never
// seen. The join time comes from the leave payload when present, otherwise
// from the reported duration, and finally from the meeting start.
func (s *IngestionService) synthesizeSession(event *models.LifecycleEvent, identity string, record *models.MeetingRecord) *models.ParticipantSession {
	p := event.Participant
	session := s.newEventSession(event, identity)

	join := p.JoinTime
	if join.IsZero() {
		session.TimestampSubstituted = true
		switch {
		case p.DurationSeconds > 0:
			join = p.LeaveTime.Add(-time.Duration(p.DurationSeconds) * time.Second)
		case record.ActualStartTime != nil && record.ActualStartTime.Before(p.LeaveTime):
			join = *record.ActualStartTime
		default:
			join = p.LeaveTime
		}
	}
	session.JoinTime = join
	session.Close(p.LeaveTime, utils.CoalesceString(p.LeaveReason, models.LeaveReasonSynthesized))
	return session
}

func (s *IngestionService) participantNotification(t models.NotificationType, session *models.ParticipantSession, at time.Time) models.Notification {
	return models.Notification{
		Type:       t,
		MeetingID:  session.MeetingID,
		OccurredAt: s.clock.Now().UTC(),
		Data: models.ParticipantNotification{
			SessionUID:  session.UID,
			IdentityKey: session.IdentityKey,
			Name:        session.Name,
			Email:       session.Email,
			At:          at,
		},
	}
}

// loadRecord returns the stored record with the event's meeting details
// merged in, or a new waiting record with revision 0.
func (s *IngestionService) loadRecord(ctx context.Context, event *models.LifecycleEvent) (*models.MeetingRecord, uint64, error) {
	record, revision, err := s.MeetingRecordRepository.Get(ctx, event.MeetingID)
	if err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			return nil, 0, err
		}
		record, revision = &models.MeetingRecord{
			MeetingID: event.MeetingID,
			Status:    models.MeetingStatusWaiting,
			CreatedAt: s.now(),
		}, 0
	}

	if record.MeetingUUID == "" {
		record.MeetingUUID = event.MeetingUUID
	}
	if event.Topic != "" {
		record.Topic = event.Topic
	}
	if event.HostID != "" {
		record.HostID = event.HostID
	}
	if record.ScheduledDuration == 0 && event.ScheduledDuration > 0 {
		record.ScheduledDuration = event.ScheduledDuration
	}
	return record, revision, nil
}

func (s *IngestionService) saveRecord(ctx context.Context, record *models.MeetingRecord, revision uint64) (uint64, error) {
	record.UpdatedAt = s.now()
	return s.MeetingRecordRepository.Save(ctx, record, revision)
}

func (s *IngestionService) loadSessions(ctx context.Context, meetingID string) (*models.MeetingSessions, uint64, error) {
	return loadMeetingSessions(ctx, s.ParticipantSessionRepository, meetingID)
}

func (s *IngestionService) saveSessions(ctx context.Context, sessions *models.MeetingSessions, revision uint64) (uint64, error) {
	sessions.UpdatedAt = s.now()
	return s.ParticipantSessionRepository.Save(ctx, sessions, revision)
}

func (s *IngestionService) now() *time.Time {
	now := s.clock.Now().UTC()
	return &now
}

// loadMeetingSessions returns the stored sessions or an empty set with revision 0.
func loadMeetingSessions(ctx context.Context, repo domain.ParticipantSessionRepository, meetingID string) (*models.MeetingSessions, uint64, error) {
	sessions, revision, err := repo.Get(ctx, meetingID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return &models.MeetingSessions{MeetingID: meetingID}, 0, nil
		}
		return nil, 0, err
	}
	return sessions, revision, nil
}

// fillParticipantFields copies identifiers the session does not have yet.
func fillParticipantFields(session *models.ParticipantSession, p *models.EventParticipant) {
	session.ParticipantUUID = utils.CoalesceString(session.ParticipantUUID, p.UUID)
	session.ParticipantID = utils.CoalesceString(session.ParticipantID, p.ID)
	session.UserID = utils.CoalesceString(session.UserID, p.UserID)
	session.ParticipantUserID = utils.CoalesceString(session.ParticipantUserID, p.ParticipantUserID)
	session.Name = utils.CoalesceString(session.Name, p.Name)
	session.Email = utils.CoalesceString(session.Email, p.Email)
}

// latestSession returns the matching session with the latest join time.
func latestSession(sessions []*models.ParticipantSession, match func(*models.ParticipantSession) bool) *models.ParticipantSession {
	var latest *models.ParticipantSession
	for _, s := range sessions {
		if !match(s) {
			continue
		}
		if latest == nil || s.JoinTime.After(latest.JoinTime) {
			latest = s
		}
	}
	return latest
}
