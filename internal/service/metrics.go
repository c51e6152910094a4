// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/service"

// serviceMetrics are the attendance counters. They are no-ops until the
// OpenTelemetry SDK installs a meter provider.
type serviceMetrics struct {
	eventsIngested  metric.Int64Counter
	eventDuplicates metric.Int64Counter
	reconciliations metric.Int64Counter
}

func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter(instrumentationName)
	m := &serviceMetrics{}
	m.eventsIngested, _ = meter.Int64Counter("attendance.events.ingested",
		metric.WithDescription("Lifecycle events applied to meeting and session records"))
	m.eventDuplicates, _ = meter.Int64Counter("attendance.events.duplicates",
		metric.WithDescription("Lifecycle events discarded as duplicates"))
	m.reconciliations, _ = meter.Int64Counter("attendance.reconciliations",
		metric.WithDescription("Reconciliation runs by outcome"))
	return m
}
