// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// AttendanceHandler handles Zoom lifecycle events and the attendance
// request/reply subjects.
type AttendanceHandler struct {
	ingestionService      *service.IngestionService
	reconciliationService *service.ReconciliationService
	queryService          *service.AttendanceQueryService
	clock                 clock.Clock
}

func NewAttendanceHandler(
	ingestionService *service.IngestionService,
	reconciliationService *service.ReconciliationService,
	queryService *service.AttendanceQueryService,
	clk clock.Clock,
) *AttendanceHandler {
	if clk == nil {
		clk = clock.Real()
	}
	return &AttendanceHandler{
		ingestionService:      ingestionService,
		reconciliationService: reconciliationService,
		queryService:          queryService,
		clock:                 clk,
	}
}

func (s *AttendanceHandler) HandlerReady() bool {
	return s.ingestionService.ServiceReady() &&
		s.reconciliationService.ServiceReady() &&
		s.queryService.ServiceReady()
}

// Subjects returns every subject the handler serves.
func (s *AttendanceHandler) Subjects() []string {
	return []string{
		models.ZoomWebhookMeetingStartedSubject,
		models.ZoomWebhookMeetingEndedSubject,
		models.ZoomWebhookMeetingParticipantJoinedSubject,
		models.ZoomWebhookMeetingParticipantLeftSubject,
		models.ReconcileSubject,
		models.GetVerdictSubject,
		models.MeetingSummarySubject,
	}
}

// HandleMessage implements domain.MessageHandler interface
func (s *AttendanceHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	var response []byte
	var err error

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.ZoomWebhookMeetingStartedSubject:           s.HandleLifecycleEvent,
		models.ZoomWebhookMeetingEndedSubject:             s.HandleLifecycleEvent,
		models.ZoomWebhookMeetingParticipantJoinedSubject: s.HandleLifecycleEvent,
		models.ZoomWebhookMeetingParticipantLeftSubject:   s.HandleLifecycleEvent,
		models.ReconcileSubject:                           s.HandleReconcile,
		models.GetVerdictSubject:                          s.HandleGetVerdict,
		models.MeetingSummarySubject:                      s.HandleMeetingSummary,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		s.respond(ctx, msg, errorReply(domain.NewValidationError("unknown subject "+subject)))
		return
	}

	response, err = handler(ctx, msg)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeValidation {
			slog.WarnContext(ctx, "rejected NATS message", logging.ErrKey, err)
		} else {
			slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		}
		s.respond(ctx, msg, errorReply(err))
		return
	}

	if msg.HasReply() {
		s.respond(ctx, msg, response)
		slog.DebugContext(ctx, "responded to NATS message")
	} else {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
	}
}

func (s *AttendanceHandler) respond(ctx context.Context, msg domain.Message, data []byte) {
	if !msg.HasReply() {
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
	}
}

func errorReply(err error) []byte {
	data, _ := json.Marshal(models.ErrorReply{
		Error: err.Error(),
		Type:  domain.GetErrorType(err).String(),
	})
	return data
}

// HandleLifecycleEvent parses a Zoom webhook event published by the webhook
// route layer and hands it to ingestion. Malformed events are dropped.
func (s *AttendanceHandler) HandleLifecycleEvent(ctx context.Context, msg domain.Message) ([]byte, error) {
	receivedAt := s.clock.Now()

	var webhook models.ZoomWebhookEventMessage
	if err := json.Unmarshal(msg.Data(), &webhook); err != nil {
		return nil, domain.NewValidationError("failed to unmarshal webhook event", err)
	}

	event, err := models.ParseLifecycleEvent(&webhook, receivedAt)
	if err != nil {
		return nil, domain.NewValidationError("invalid lifecycle event", err)
	}

	result, err := s.ingestionService.Ingest(ctx, event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// HandleReconcile triggers a reconciliation and replies with its result.
func (s *AttendanceHandler) HandleReconcile(ctx context.Context, msg domain.Message) ([]byte, error) {
	var req models.ReconcileRequest
	if err := unmarshalRequest(msg.Data(), &req, func(raw string) { req.MeetingID = raw }); err != nil {
		return nil, err
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", req.MeetingID))

	result, err := s.reconciliationService.Reconcile(ctx, req.MeetingID, service.ReconcileOptions{
		Force:    req.Force,
		Priority: models.QueuePriorityManual,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// HandleGetVerdict replies with the attendance verdict of one identity.
func (s *AttendanceHandler) HandleGetVerdict(ctx context.Context, msg domain.Message) ([]byte, error) {
	var req models.VerdictRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return nil, domain.NewValidationError("failed to unmarshal verdict request", err)
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", req.MeetingID))

	verdict, err := s.queryService.GetVerdict(ctx, req.MeetingID, req.Identity)
	if err != nil {
		return nil, err
	}
	return json.Marshal(verdict)
}

// HandleMeetingSummary replies with the attendance statistics of a meeting.
func (s *AttendanceHandler) HandleMeetingSummary(ctx context.Context, msg domain.Message) ([]byte, error) {
	var req models.MeetingSummaryRequest
	if err := unmarshalRequest(msg.Data(), &req, func(raw string) { req.MeetingID = raw }); err != nil {
		return nil, err
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", req.MeetingID))

	summary, err := s.queryService.GetMeetingSummary(ctx, req.MeetingID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(summary)
}

// unmarshalRequest decodes a JSON request body. A body that is not a JSON
// object is taken as a bare meeting id, the way other LFX services address
// meetings on NATS.
func unmarshalRequest(data []byte, v any, bareID func(string)) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return domain.NewValidationError("request body is required")
	}
	if !strings.HasPrefix(trimmed, "{") {
		bareID(trimmed)
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.NewValidationError("failed to unmarshal request", err)
	}
	return nil
}
