// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"math"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// Aggregator turns the sessions of one identity into an AttendanceVerdict.
// It holds no state besides its configuration, so the same input always gives
// the same verdict.
type Aggregator struct {
	threshold    float64
	selfFallback bool
	clock        clock.Clock
}

// NewAggregator creates an Aggregator. Open sessions are counted up to clk.Now().
func NewAggregator(threshold float64, selfFallback bool, clk clock.Clock) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Aggregator{threshold: threshold, selfFallback: selfFallback, clock: clk}
}

// Threshold returns the Present threshold in percent.
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Aggregate computes the verdict for the sessions of a single identity.
// A meetingDuration of zero means the duration is unknown.
func (a *Aggregator) Aggregate(sessions []*models.ParticipantSession, meetingDuration time.Duration) models.AttendanceVerdict {
	now := a.clock.Now().UTC()
	verdict := models.AttendanceVerdict{
		Status:       models.AttendanceStatusAbsent,
		SessionCount: len(sessions),
		CalculatedAt: now,
	}
	if len(sessions) == 0 {
		return verdict
	}

	open := false
	for _, s := range sessions {
		verdict.MeetingID = s.MeetingID
		verdict.IdentityKey = s.IdentityKey
		if s.Name != "" {
			verdict.Name = s.Name
		}
		if s.Email != "" {
			verdict.Email = s.Email
		}
		verdict.TotalSeconds += s.AttendedSeconds(now)
		verdict.Reconciled = verdict.Reconciled || s.IsReconciled
		open = open || s.IsOpen()
	}

	durationSeconds := int64(meetingDuration / time.Second)
	switch {
	case durationSeconds > 0:
		verdict.MeetingDurationSeconds = durationSeconds
		verdict.ExactPercentage = 100 * float64(verdict.TotalSeconds) / float64(durationSeconds)
	case a.selfFallback:
		// Measured against itself the ratio is 100% whenever any time was attended.
		verdict.MeetingDurationSeconds = verdict.TotalSeconds
		verdict.LowConfidence = true
		if verdict.TotalSeconds > 0 {
			verdict.ExactPercentage = 100
		}
	default:
		verdict.LowConfidence = true
	}

	verdict.Percentage = displayPercentage(verdict.ExactPercentage)

	switch {
	case open:
		verdict.Status = models.AttendanceStatusInProgress
	case verdict.MeetingDurationSeconds > 0 && verdict.ExactPercentage >= a.threshold:
		verdict.Status = models.AttendanceStatusPresent
	default:
		verdict.Status = models.AttendanceStatusAbsent
	}
	return verdict
}

// AggregateMeeting computes a verdict for every identity with sessions in the
// meeting, sorted by identity key.
func (a *Aggregator) AggregateMeeting(record *models.MeetingRecord, sessions *models.MeetingSessions) []models.AttendanceVerdict {
	if sessions == nil || len(sessions.Sessions) == 0 {
		return nil
	}
	duration := MeetingDuration(record, sessions)

	byIdentity := sessions.ByIdentity()
	keys := make([]string, 0, len(byIdentity))
	for k := range byIdentity {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	verdicts := make([]models.AttendanceVerdict, 0, len(keys))
	for _, k := range keys {
		verdicts = append(verdicts, a.Aggregate(byIdentity[k], duration))
	}
	return verdicts
}

// MeetingDuration resolves the duration participants are measured against:
// the scheduled duration, otherwise the span of all participant sessions.
// It returns zero when neither is known.
func MeetingDuration(record *models.MeetingRecord, sessions *models.MeetingSessions) time.Duration {
	if record != nil && record.ScheduledDuration > 0 {
		return time.Duration(record.ScheduledDuration) * time.Minute
	}
	if sessions == nil {
		return 0
	}
	return ParticipantSpan(sessions.Sessions)
}

// ParticipantSpan is the time from the earliest join to the latest leave
// across all sessions, at least one minute. Zero means no session has left yet.
func ParticipantSpan(sessions []*models.ParticipantSession) time.Duration {
	var earliest, latest time.Time
	for _, s := range sessions {
		if earliest.IsZero() || s.JoinTime.Before(earliest) {
			earliest = s.JoinTime
		}
		if s.LeaveTime != nil && s.LeaveTime.After(latest) {
			latest = *s.LeaveTime
		}
	}
	if earliest.IsZero() || latest.IsZero() {
		return 0
	}
	span := latest.Sub(earliest)
	if span < time.Minute {
		span = time.Minute
	}
	return span
}

// ApplyVerdicts annotates every session with the verdict of its identity.
func ApplyVerdicts(sessions *models.MeetingSessions, verdicts []models.AttendanceVerdict) {
	if sessions == nil {
		return
	}
	byIdentity := make(map[string]models.AttendanceVerdict, len(verdicts))
	for _, v := range verdicts {
		byIdentity[v.IdentityKey] = v
	}
	for _, s := range sessions.Sessions {
		v, ok := byIdentity[s.IdentityKey]
		if !ok {
			continue
		}
		calculatedAt := v.CalculatedAt
		s.AttendancePercentage = v.Percentage
		s.AttendanceStatus = v.Status
		s.LowConfidence = v.LowConfidence
		s.VerdictCalculatedAt = &calculatedAt
	}
}

func displayPercentage(exact float64) int {
	p := int(math.Round(exact))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
