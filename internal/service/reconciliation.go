// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/redaction"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/utils"
)

// ReconcileOptions control a reconciliation request.
type ReconcileOptions struct {
	// Force recalculates a meeting that was already reconciled.
	Force bool
	// Priority is used when the run fails and the meeting is queued.
	Priority int
}

// ReconciliationService merges the Zoom participants report into the
// event-derived sessions and computes the final verdicts.
type ReconciliationService struct {
	MeetingRecordRepository       domain.MeetingRecordRepository
	ParticipantSessionRepository  domain.ParticipantSessionRepository
	ReconciliationQueueRepository domain.ReconciliationQueueRepository
	ZoomClient                    domain.ZoomReportClient
	NotificationEmitter           domain.NotificationEmitter
	Config                        AttendanceConfig

	aggregator *Aggregator
	matcher    *Matcher
	locks      *concurrent.KeyedMutex
	pool       *concurrent.WorkerPool
	clock      clock.Clock
	metrics    *serviceMetrics

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(
	meetingRecordRepository domain.MeetingRecordRepository,
	participantSessionRepository domain.ParticipantSessionRepository,
	reconciliationQueueRepository domain.ReconciliationQueueRepository,
	zoomClient domain.ZoomReportClient,
	notificationEmitter domain.NotificationEmitter,
	locks *concurrent.KeyedMutex,
	clk clock.Clock,
	config AttendanceConfig,
) *ReconciliationService {
	config = config.withDefaults()
	if clk == nil {
		clk = clock.Real()
	}
	if locks == nil {
		locks = concurrent.NewKeyedMutex()
	}
	return &ReconciliationService{
		MeetingRecordRepository:       meetingRecordRepository,
		ParticipantSessionRepository:  participantSessionRepository,
		ReconciliationQueueRepository: reconciliationQueueRepository,
		ZoomClient:                    zoomClient,
		NotificationEmitter:           notificationEmitter,
		Config:                        config,
		aggregator:                    NewAggregator(config.Threshold, config.SelfDurationFallback, clk),
		matcher:                       NewMatcher(config.JoinProximity),
		locks:                         locks,
		pool:                          concurrent.NewWorkerPool(config.ReconcileWorkers),
		clock:                         clk,
		metrics:                       newServiceMetrics(),
		inflight:                      make(map[string]struct{}),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *ReconciliationService) ServiceReady() bool {
	return s.MeetingRecordRepository != nil &&
		s.ParticipantSessionRepository != nil &&
		s.ReconciliationQueueRepository != nil &&
		s.ZoomClient != nil
}

// Reconcile runs a reconciliation for the meeting. A transient failure puts
// the meeting on the retry queue and is reported through result.Queued
// rather than as an error. Any other failure after the record was loaded is
// stored as an exhausted queue item, reported, and returned. A run already in flight for the meeting is
// rejected with domain.ErrConcurrentReconciliation.
func (s *ReconciliationService) Reconcile(ctx context.Context, meetingID string, opts ReconcileOptions) (*models.ReconciliationResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return nil, domain.NewValidationError("meeting ID is required")
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	result, err := s.run(ctx, meetingID, opts.Force)
	if err == nil {
		return result, nil
	}
	var failure *reconcileFailure
	if errors.Is(err, domain.ErrConcurrentReconciliation) || !errors.As(err, &failure) {
		return nil, err
	}

	err = failure.err
	retry := retryable(err)
	if _, qerr := s.enqueue(ctx, meetingID, opts, err, !retry); qerr != nil {
		slog.ErrorContext(ctx, "error queueing failed reconciliation", logging.ErrKey, qerr, logging.PriorityCritical())
		return nil, errors.Join(err, qerr)
	}
	if !retry {
		return nil, err
	}
	return &models.ReconciliationResult{MeetingID: meetingID, Queued: true, Errors: []string{err.Error()}}, nil
}

// reconcileFailure marks an error raised after the meeting record was
// loaded and accepted for reconciliation. Such failures are always recorded
// on the retry queue.
type reconcileFailure struct {
	err error
}

func (f *reconcileFailure) Error() string { return f.err.Error() }

func (f *reconcileFailure) Unwrap() error { return f.err }

// retryable reports whether a failed run may succeed when tried again.
func retryable(err error) bool {
	return domain.IsTransient(err) || domain.GetErrorType(err) == domain.ErrorTypeConflict
}

func (s *ReconciliationService) acquire(meetingID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[meetingID]; ok {
		return false
	}
	s.inflight[meetingID] = struct{}{}
	return true
}

func (s *ReconciliationService) release(meetingID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, meetingID)
}

// run performs one reconciliation without any queueing on failure.
func (s *ReconciliationService) run(ctx context.Context, meetingID string, force bool) (result *models.ReconciliationResult, err error) {
	if !s.acquire(meetingID) {
		slog.InfoContext(ctx, "reconciliation already in progress, request rejected")
		return nil, domain.ErrConcurrentReconciliation
	}
	defer s.release(meetingID)

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "attendance.reconcile")
	span.SetAttributes(attribute.String("meeting.id", meetingID), attribute.Bool("reconcile.force", force))
	defer func() {
		outcome := "success"
		switch {
		case err != nil:
			outcome = domain.GetErrorType(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.AlreadyReconciled:
			outcome = "already_reconciled"
		}
		s.metrics.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	record, _, err := s.MeetingRecordRepository.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if record.AttendanceCalculated && !force {
		slog.DebugContext(ctx, "meeting already reconciled")
		s.removeQueueItem(ctx, meetingID)
		return &models.ReconciliationResult{MeetingID: meetingID, AlreadyReconciled: true}, nil
	}
	if !record.IsEnded() && !force {
		return nil, domain.NewValidationError("meeting has not ended")
	}
	defer func() {
		if err != nil {
			err = &reconcileFailure{err: err}
		}
	}()

	participants, err := s.ZoomClient.GetPastMeetingParticipants(ctx, record.ReportUUID())
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			// Zoom publishes the report some minutes after the meeting ends.
			return nil, domain.NewUnavailableError("participant report not available yet", err)
		}
		slog.WarnContext(ctx, "error fetching participant report", logging.ErrKey, err)
		return nil, err
	}

	result = &models.ReconciliationResult{MeetingID: meetingID, Strategies: map[models.MatchStrategy]int{}}
	durationMinutes, pastMeeting := s.resolveDuration(ctx, record, result)
	start, end := s.meetingBounds(record, pastMeeting)

	entries := make([]models.ReportEntry, 0, len(participants))
	for _, p := range participants {
		entry := p.ToReportEntry(start, end)
		if entry.TimestampSubstituted {
			slog.WarnContext(ctx, "report entry time unparsable, meeting bounds substituted", "entry_id", entry.ID)
		}
		entries = append(entries, entry)
	}
	s.enrichEmails(ctx, entries, result)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].JoinTime.Before(entries[j].JoinTime) })

	verdicts, err := s.commit(ctx, meetingID, entries, durationMinutes, pastMeeting, result)
	if err != nil {
		return nil, err
	}
	result.Verdicts = len(verdicts)

	s.removeQueueItem(ctx, meetingID)
	s.emit(ctx, models.Notification{
		Type:       models.NotificationAttendanceCalculated,
		MeetingID:  meetingID,
		OccurredAt: s.clock.Now().UTC(),
		Data:       models.AttendanceCalculatedNotification{Result: *result, Verdicts: verdicts},
	})

	slog.InfoContext(ctx, "reconciliation completed",
		"entries", len(entries),
		"matched", result.Matched,
		"created", result.Created,
		"verdicts", result.Verdicts,
	)
	return result, nil
}

// resolveDuration returns the meeting duration in minutes from the record,
// asking Zoom for the past meeting details when none is stored. Zero means
// unknown. The past meeting is returned for its start and end times.
func (s *ReconciliationService) resolveDuration(ctx context.Context, record *models.MeetingRecord, result *models.ReconciliationResult) (int, *models.ZoomPastMeeting) {
	if record.ScheduledDuration > 0 && record.ActualStartTime != nil && record.ActualEndTime != nil {
		return record.ScheduledDuration, nil
	}

	pastMeeting, err := s.ZoomClient.GetPastMeeting(ctx, record.ReportUUID())
	if err != nil {
		slog.WarnContext(ctx, "error fetching past meeting details, continuing without them", logging.ErrKey, err)
		result.Errors = append(result.Errors, fmt.Sprintf("past meeting details: %v", err))
		return record.ScheduledDuration, nil
	}
	if record.ScheduledDuration > 0 {
		return record.ScheduledDuration, pastMeeting
	}
	return pastMeeting.Duration.Int(), pastMeeting
}

// meetingBounds returns the start and end used for report entries whose times
// cannot be parsed.
func (s *ReconciliationService) meetingBounds(record *models.MeetingRecord, pastMeeting *models.ZoomPastMeeting) (time.Time, time.Time) {
	now := s.clock.Now().UTC()
	start, end := now, now
	if pastMeeting != nil {
		if t, ok := utils.ParseTimestamp(pastMeeting.StartTime); ok {
			start = t
		}
		if t, ok := utils.ParseTimestamp(pastMeeting.EndTime); ok {
			end = t
		}
	}
	if record.ActualStartTime != nil {
		start = *record.ActualStartTime
	}
	if record.ActualEndTime != nil {
		end = *record.ActualEndTime
	}
	return start, end
}

// enrichEmails looks up the email of entries that carry a Zoom user id but no
// email. Lookups are best-effort.
func (s *ReconciliationService) enrichEmails(ctx context.Context, entries []models.ReportEntry, result *models.ReconciliationResult) {
	seen := make(map[string]struct{})
	var userIDs []string
	for _, e := range entries {
		id := userLookupID(e)
		if e.Email != "" || id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		userIDs = append(userIDs, id)
	}
	if len(userIDs) == 0 {
		return
	}

	users, errs := concurrent.Collect(ctx, s.pool, userIDs, func(ctx context.Context, id string) (*models.ZoomUser, error) {
		user, err := s.ZoomClient.GetUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", id, err)
		}
		if user.ID == "" {
			user.ID = id
		}
		return user, nil
	})
	for _, err := range errs {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			continue
		}
		slog.WarnContext(ctx, "error looking up participant email", logging.ErrKey, err)
		result.Errors = append(result.Errors, err.Error())
	}

	emails := make(map[string]string, len(users))
	for _, u := range users {
		if u != nil && u.Email != "" {
			emails[u.ID] = u.Email
		}
	}
	for i := range entries {
		if entries[i].Email != "" {
			continue
		}
		if email, ok := emails[userLookupID(entries[i])]; ok {
			entries[i].Email = email
			slog.DebugContext(ctx, "report entry email enriched", "participant_email", redaction.RedactEmail(email))
		}
	}
}

func userLookupID(e models.ReportEntry) string {
	return utils.CoalesceString(e.ParticipantUserID, e.ID)
}

// commit merges the entries into the stored sessions, recomputes every
// verdict and marks the meeting calculated. It holds the meeting lock and
// retries on concurrent modification by another instance.
func (s *ReconciliationService) commit(
	ctx context.Context,
	meetingID string,
	entries []models.ReportEntry,
	durationMinutes int,
	pastMeeting *models.ZoomPastMeeting,
	result *models.ReconciliationResult,
) ([]models.AttendanceVerdict, error) {
	unlock := s.locks.Lock(meetingID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt <= DefaultConflictRetries; attempt++ {
		verdicts, err := s.commitOnce(ctx, meetingID, entries, durationMinutes, pastMeeting, result)
		if err == nil {
			return verdicts, nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return nil, err
		}
		lastErr = err
		slog.WarnContext(ctx, "meeting modified concurrently, retrying reconciliation commit", "attempt", attempt+1)
	}
	return nil, lastErr
}

func (s *ReconciliationService) commitOnce(
	ctx context.Context,
	meetingID string,
	entries []models.ReportEntry,
	durationMinutes int,
	pastMeeting *models.ZoomPastMeeting,
	result *models.ReconciliationResult,
) ([]models.AttendanceVerdict, error) {
	record, recordRevision, err := s.MeetingRecordRepository.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	sessions, sessionsRevision, err := loadMeetingSessions(ctx, s.ParticipantSessionRepository, meetingID)
	if err != nil {
		return nil, err
	}

	if record.ScheduledDuration == 0 && durationMinutes > 0 {
		record.ScheduledDuration = durationMinutes
	}
	if pastMeeting != nil {
		if t, ok := utils.ParseTimestamp(pastMeeting.StartTime); ok && record.ActualStartTime == nil {
			record.ActualStartTime = &t
		}
		if t, ok := utils.ParseTimestamp(pastMeeting.EndTime); ok && record.ActualEndTime == nil {
			record.ActualEndTime = &t
		}
	}

	merged := s.merge(sessions, entries)
	result.Created, result.Updated, result.Matched = merged.Created, merged.Updated, merged.Matched
	result.Strategies = merged.Strategies

	verdicts := s.aggregator.AggregateMeeting(record, sessions)
	ApplyVerdicts(sessions, verdicts)

	now := s.clock.Now().UTC()
	sessions.UpdatedAt = &now
	if _, err := s.ParticipantSessionRepository.Save(ctx, sessions, sessionsRevision); err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			slog.ErrorContext(ctx, "error saving reconciled sessions", logging.ErrKey, err, logging.PriorityCritical())
		}
		return nil, err
	}

	record.AttendanceCalculated = true
	record.CalculatedAt = &now
	record.UpdatedAt = &now
	if _, err := s.MeetingRecordRepository.Save(ctx, record, recordRevision); err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			slog.ErrorContext(ctx, "error marking meeting calculated", logging.ErrKey, err, logging.PriorityCritical())
		}
		return nil, err
	}
	return verdicts, nil
}

// merge pairs every entry with a session, overwriting its timing with the
// authoritative values, or creates a session for entries that match nothing.
// A session is claimed by at most one entry.
func (s *ReconciliationService) merge(sessions *models.MeetingSessions, entries []models.ReportEntry) models.ReconciliationResult {
	result := models.ReconciliationResult{Strategies: map[models.MatchStrategy]int{}}
	claimed := make(map[string]bool, len(entries))
	now := s.clock.Now().UTC()

	pairings := s.matcher.MatchAll(entries, sessions.Sessions, claimed)
	for i, entry := range entries {
		if session := pairings[i].Session; session != nil {
			result.Matched++
			result.Strategies[pairings[i].Strategy]++
			if applyReportEntry(session, entry) {
				result.Updated++
			}
			session.UpdatedAt = &now
			continue
		}

		created := &models.ParticipantSession{
			UID:         uuid.NewString(),
			MeetingID:   sessions.MeetingID,
			IdentityKey: s.matcher.ResolveIdentity(entry, sessions.Sessions),
			CreatedAt:   &now,
			UpdatedAt:   &now,
		}
		applyReportEntry(created, entry)
		claimed[created.UID] = true
		sessions.Sessions = append(sessions.Sessions, created)
		result.Created++
	}
	return result
}

// applyReportEntry makes the report authoritative for timing. Identity, UID
// and reconnection history stay as the event stream recorded them. It
// reports whether the timing changed.
func applyReportEntry(session *models.ParticipantSession, entry models.ReportEntry) bool {
	changed := !session.JoinTime.Equal(entry.JoinTime) ||
		session.LeaveTime == nil || !session.LeaveTime.Equal(entry.LeaveTime) ||
		session.DurationSeconds != entry.DurationSeconds

	leave := entry.LeaveTime
	session.JoinTime = entry.JoinTime
	session.LeaveTime = &leave
	session.DurationSeconds = entry.DurationSeconds
	session.ConnectionStatus = models.ConnectionStatusLeft
	session.TimestampSubstituted = entry.TimestampSubstituted
	session.IsReconciled = true
	session.Source = models.SessionSourceAPIReconcile

	session.ParticipantUUID = utils.CoalesceString(session.ParticipantUUID, entry.ParticipantUUID)
	session.ParticipantID = utils.CoalesceString(session.ParticipantID, entry.ID)
	session.UserID = utils.CoalesceString(session.UserID, entry.UserID)
	session.ParticipantUserID = utils.CoalesceString(session.ParticipantUserID, entry.ParticipantUserID)
	session.Name = utils.CoalesceString(session.Name, entry.Name)
	session.Email = utils.CoalesceString(session.Email, entry.Email)
	return changed
}

func (s *ReconciliationService) emit(ctx context.Context, n models.Notification) {
	if s.NotificationEmitter != nil {
		s.NotificationEmitter.Emit(ctx, n)
	}
}

func (s *ReconciliationService) removeQueueItem(ctx context.Context, meetingID string) {
	if err := s.ReconciliationQueueRepository.Remove(ctx, meetingID); err != nil {
		slog.WarnContext(ctx, "error removing reconciliation queue item", logging.ErrKey, err)
	}
}

// queueMeeting schedules a reconciliation for the next drain without counting
// an attempt. An existing item keeps its attempts and gets the higher priority.
func (s *ReconciliationService) queueMeeting(ctx context.Context, meetingID string, priority int) error {
	now := s.clock.Now().UTC()
	item, err := s.ReconciliationQueueRepository.Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if item == nil {
		item = &models.ReconciliationQueueItem{
			MeetingID: meetingID,
			QueuedAt:  now,
			Priority:  priority,
			Status:    models.QueueItemStatusPending,
		}
	}
	item.Priority = min(item.Priority, priority)
	item.NextAttemptAt = now
	item.UpdatedAt = now
	return s.ReconciliationQueueRepository.Put(ctx, item)
}

// enqueue records a failed request-driven run. An exhausted item is revived
// since a new request asked for the meeting again. A terminal failure leaves
// the item exhausted.
func (s *ReconciliationService) enqueue(ctx context.Context, meetingID string, opts ReconcileOptions, cause error, terminal bool) (*models.ReconciliationQueueItem, error) {
	item, err := s.ReconciliationQueueRepository.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if item == nil {
		item = &models.ReconciliationQueueItem{
			MeetingID: meetingID,
			QueuedAt:  now,
			Priority:  opts.Priority,
		}
	}
	if item.Status == models.QueueItemStatusExhausted {
		item.Attempts = 0
	}
	item.Status = models.QueueItemStatusPending
	item.Priority = min(item.Priority, opts.Priority)
	item.Force = item.Force || opts.Force

	s.recordFailure(ctx, item, cause, terminal)
	if err := s.ReconciliationQueueRepository.Put(ctx, item); err != nil {
		return nil, err
	}
	if item.Status == models.QueueItemStatusExhausted {
		return item, nil
	}
	slog.WarnContext(ctx, "reconciliation failed, meeting queued for retry",
		logging.ErrKey, cause,
		"attempts", item.Attempts,
		"next_attempt_at", item.NextAttemptAt,
	)
	return item, nil
}

// recordFailure counts a failed attempt on item. Once the attempt budget is
// spent, or the failure cannot be fixed by retrying, the item is marked
// exhausted and reported. It does not store the item.
func (s *ReconciliationService) recordFailure(ctx context.Context, item *models.ReconciliationQueueItem, cause error, terminal bool) {
	now := s.clock.Now().UTC()
	item.Attempts++
	item.LastError = cause.Error()
	item.UpdatedAt = now

	if !terminal && item.Attempts < s.Config.MaxReconcileAttempts {
		item.NextAttemptAt = now.Add(s.retryDelay(item.Attempts))
		return
	}

	item.Status = models.QueueItemStatusExhausted
	slog.ErrorContext(ctx, "reconciliation retries exhausted",
		logging.ErrKey, cause,
		"attempts", item.Attempts,
		logging.PriorityCritical(),
	)
	s.emit(ctx, models.Notification{
		Type:       models.NotificationReconciliationFailed,
		MeetingID:  item.MeetingID,
		OccurredAt: now,
		Data:       models.ReconciliationFailedNotification{Attempts: item.Attempts, LastError: item.LastError},
	})
}

// retryDelay doubles from QueueBaseDelay per attempt, capped at QueueMaxDelay.
func (s *ReconciliationService) retryDelay(attempts int) time.Duration {
	delay := s.Config.QueueBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= s.Config.QueueMaxDelay {
			return s.Config.QueueMaxDelay
		}
	}
	return min(delay, s.Config.QueueMaxDelay)
}
