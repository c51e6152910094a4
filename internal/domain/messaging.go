// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// NotificationEmitter hands domain notifications to the outbound fan-out.
// Emit never blocks the caller; delivery is not guaranteed.
type NotificationEmitter interface {
	Emit(ctx context.Context, notification models.Notification)
}

// NotificationPublisher delivers a single notification to subscribers.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, notification models.Notification) error
}
