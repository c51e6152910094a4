// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
)

// DefaultOutboxSize is the notification buffer used when none is configured.
const DefaultOutboxSize = 256

// Outbox is a bounded channel of notifications between the attendance core
// and the publisher. Emit never blocks: when the buffer is full the
// notification is dropped and counted.
type Outbox struct {
	queue     chan models.Notification
	publisher domain.NotificationPublisher
	dropped   atomic.Int64
	published atomic.Int64
}

// NewOutbox creates an outbox draining into publisher.
func NewOutbox(publisher domain.NotificationPublisher, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		queue:     make(chan models.Notification, size),
		publisher: publisher,
	}
}

// Emit queues a notification for delivery.
func (o *Outbox) Emit(ctx context.Context, notification models.Notification) {
	select {
	case o.queue <- notification:
	default:
		o.dropped.Add(1)
		slog.WarnContext(ctx, "notification outbox full, dropping notification",
			"notification_type", notification.Type,
			"meeting_id", notification.MeetingID,
		)
	}
}

// Run publishes queued notifications until ctx is cancelled, then flushes
// whatever is still buffered.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case n := <-o.queue:
			o.publish(ctx, n)
		case <-ctx.Done():
			o.flush()
			return
		}
	}
}

func (o *Outbox) flush() {
	// ctx is already done; publishing is a fire-and-forget NATS call
	ctx := context.Background()
	for {
		select {
		case n := <-o.queue:
			o.publish(ctx, n)
		default:
			return
		}
	}
}

func (o *Outbox) publish(ctx context.Context, n models.Notification) {
	if err := o.publisher.PublishNotification(ctx, n); err != nil {
		slog.WarnContext(ctx, "failed to publish notification",
			logging.ErrKey, err,
			"notification_type", n.Type,
			"meeting_id", n.MeetingID,
		)
		return
	}
	o.published.Add(1)
}

// Pending returns the number of buffered notifications.
func (o *Outbox) Pending() int { return len(o.queue) }

// Dropped returns the number of notifications dropped because the buffer was full.
func (o *Outbox) Dropped() int64 { return o.dropped.Load() }

// Published returns the number of notifications handed to the publisher successfully.
func (o *Outbox) Published() int64 { return o.published.Load() }

var _ domain.NotificationEmitter = (*Outbox)(nil)
