// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// QueueItemStatus is the state of a reconciliation retry item.
type QueueItemStatus string

// Queue item states. Exhausted items are kept so failures stay visible.
const (
	QueueItemStatusPending   QueueItemStatus = "pending"
	QueueItemStatusExhausted QueueItemStatus = "exhausted"
)

// Queue priorities. Lower numbers are drained first.
const (
	QueuePriorityManual       = 0
	QueuePriorityMeetingEnded = 5
	QueuePriorityRetry        = 10
)

// ReconciliationQueueItem is a pending reconciliation retry for a meeting.
type ReconciliationQueueItem struct {
	MeetingID     string          `json:"meeting_id"`
	QueuedAt      time.Time       `json:"queued_at"`
	Attempts      int             `json:"attempts"`
	Priority      int             `json:"priority"`
	Force         bool            `json:"force,omitempty"`
	Status        QueueItemStatus `json:"status"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsDue reports whether the item is pending and its retry time has passed.
func (q *ReconciliationQueueItem) IsDue(now time.Time) bool {
	return q.Status != QueueItemStatusExhausted && !q.NextAttemptAt.After(now)
}

// MatchStrategy names the rule that paired a report entry with a session.
type MatchStrategy string

// Matching strategies in the order they are tried.
const (
	MatchByParticipantID MatchStrategy = "participant_id"
	MatchByUserID        MatchStrategy = "user_id"
	MatchByEmail         MatchStrategy = "email"
	MatchByName          MatchStrategy = "name"
	MatchByNameSubstring MatchStrategy = "name_substring"
	MatchByJoinProximity MatchStrategy = "join_time_proximity"
	MatchNone            MatchStrategy = ""
)

// ReconciliationResult summarizes one reconciliation run.
type ReconciliationResult struct {
	MeetingID string   `json:"meeting_id"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Matched   int      `json:"matched"`
	Errors    []string `json:"errors,omitempty"`

	// AlreadyReconciled is set when the meeting was calculated before and the
	// run was not forced. It is a success signal, not an error.
	AlreadyReconciled bool `json:"already_reconciled,omitempty"`

	// Queued is set when the run failed transiently and was put on the retry queue.
	Queued bool `json:"queued,omitempty"`

	Strategies map[MatchStrategy]int `json:"strategies,omitempty"`
	Verdicts   int                   `json:"verdicts"`
}
