// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import "time"

// Service is implemented by every attendance service that reports readiness.
type Service interface {
	ServiceReady() bool
}

var (
	_ Service = (*IngestionService)(nil)
	_ Service = (*ReconciliationService)(nil)
	_ Service = (*AttendanceQueryService)(nil)
)

// Defaults for AttendanceConfig.
const (
	DefaultThreshold            = 85.0
	DefaultDedupHistorySize     = 1000
	DefaultMaxReconcileAttempts = 5
	DefaultReconcileWorkers     = 4
	DefaultTriggerBuffer        = 64
	DefaultQueueBaseDelay       = time.Minute
	DefaultQueueMaxDelay        = 30 * time.Minute
	DefaultJoinProximity        = 5 * time.Minute
	DefaultConflictRetries      = 3
)

// AttendanceConfig is the configuration for the attendance services.
type AttendanceConfig struct {
	// Threshold is the minimum attendance percentage for a Present verdict.
	Threshold float64
	// SelfDurationFallback measures a participant against their own time
	// when the meeting duration cannot be determined.
	SelfDurationFallback bool
	// DedupHistorySize is how many idempotency keys are remembered.
	DedupHistorySize int
	// MaxReconcileAttempts is how often a queued reconciliation is tried
	// before it is marked exhausted.
	MaxReconcileAttempts int
	// ReconcileWorkers bounds concurrent reconciliations and user lookups.
	ReconcileWorkers int
	// TriggerBuffer is the capacity of the meeting_ended trigger channel.
	TriggerBuffer  int
	QueueBaseDelay time.Duration
	QueueMaxDelay  time.Duration
	// JoinProximity is the window of the join-time matching strategy.
	JoinProximity time.Duration
}

// DefaultAttendanceConfig returns the configuration used when nothing is set.
func DefaultAttendanceConfig() AttendanceConfig {
	return AttendanceConfig{
		Threshold:            DefaultThreshold,
		SelfDurationFallback: true,
		DedupHistorySize:     DefaultDedupHistorySize,
		MaxReconcileAttempts: DefaultMaxReconcileAttempts,
		ReconcileWorkers:     DefaultReconcileWorkers,
		TriggerBuffer:        DefaultTriggerBuffer,
		QueueBaseDelay:       DefaultQueueBaseDelay,
		QueueMaxDelay:        DefaultQueueMaxDelay,
		JoinProximity:        DefaultJoinProximity,
	}
}

// withDefaults fills zero values. SelfDurationFallback is taken as given.
func (c AttendanceConfig) withDefaults() AttendanceConfig {
	d := DefaultAttendanceConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.DedupHistorySize <= 0 {
		c.DedupHistorySize = d.DedupHistorySize
	}
	if c.MaxReconcileAttempts <= 0 {
		c.MaxReconcileAttempts = d.MaxReconcileAttempts
	}
	if c.ReconcileWorkers <= 0 {
		c.ReconcileWorkers = d.ReconcileWorkers
	}
	if c.TriggerBuffer <= 0 {
		c.TriggerBuffer = d.TriggerBuffer
	}
	if c.QueueBaseDelay <= 0 {
		c.QueueBaseDelay = d.QueueBaseDelay
	}
	if c.QueueMaxDelay <= 0 {
		c.QueueMaxDelay = d.QueueMaxDelay
	}
	if c.JoinProximity <= 0 {
		c.JoinProximity = d.JoinProximity
	}
	return c
}
