// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/utils"
)

// EventType is a normalized lifecycle event type.
type EventType string

// Lifecycle event types.
const (
	EventMeetingStarted    EventType = "meeting_started"
	EventMeetingEnded      EventType = "meeting_ended"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
)

var zoomEventTypes = map[string]EventType{
	ZoomEventMeetingStarted:    EventMeetingStarted,
	ZoomEventMeetingEnded:      EventMeetingEnded,
	ZoomEventParticipantJoined: EventParticipantJoined,
	ZoomEventParticipantLeft:   EventParticipantLeft,
}

// IsParticipantEvent reports whether the event concerns a single participant.
func (t EventType) IsParticipantEvent() bool {
	return t == EventParticipantJoined || t == EventParticipantLeft
}

// EventParticipant is the validated participant part of a lifecycle event.
type EventParticipant struct {
	UUID              string
	ID                string
	UserID            string
	ParticipantUserID string
	Name              string
	Email             string
	JoinTime          time.Time
	LeaveTime         time.Time
	LeaveReason       string
	DurationSeconds   int64

	// TimeSubstituted is set when the join or leave time was missing or
	// unparsable and the receipt time was used.
	TimeSubstituted bool
}

// IdentityKey resolves the logical person behind the participant. The
// per-connection user id is only used when nothing more stable is known.
func (p *EventParticipant) IdentityKey() string {
	if p == nil {
		return ""
	}
	if key := IdentityKeyFor(p.UUID, p.ID, p.Email, p.Name); key != "" {
		return key
	}
	return IdentityKeyFor("", p.UserID, "", "")
}

// CoalesceID returns the first identifier that is set.
func CoalesceID(ids ...string) string {
	return utils.CoalesceString(ids...)
}

// LifecycleEvent is the strict, normalized form of an inbound meeting event.
// Everything downstream of the boundary operates on this type only.
type LifecycleEvent struct {
	Type              EventType
	MeetingID         string
	MeetingUUID       string
	Topic             string
	HostID            string
	ScheduledDuration int
	StartTime         *time.Time
	EndTime           *time.Time
	Participant       *EventParticipant

	// Timestamp is the event time reported by Zoom, or ReceivedAt when absent.
	Timestamp  time.Time
	ReceivedAt time.Time

	// TimestampSubstituted is set when any time of the event was replaced by
	// the receipt time.
	TimestampSubstituted bool

	// rawTimestamp is the event time as delivered, used for deduplication.
	rawTimestamp string
}

// IdempotencyKey is the deterministic fingerprint of the event:
// type|meetingId|participant|timestamp.
func (e *LifecycleEvent) IdempotencyKey() string {
	participant := "none"
	if e.Participant != nil {
		if key := e.Participant.IdentityKey(); key != "" {
			participant = key
		}
	}
	ts := e.rawTimestamp
	if ts == "" {
		ts = strconv.FormatInt(e.Timestamp.UnixMilli(), 10)
	}
	return strings.Join([]string{string(e.Type), e.MeetingID, participant, ts}, "|")
}

// Validate checks the invariants of a normalized event.
func (e *LifecycleEvent) Validate() error {
	var errs []error
	if _, ok := zoomEventTypeValues[e.Type]; !ok {
		errs = append(errs, fmt.Errorf("unsupported event type %q", e.Type))
	}
	if e.MeetingID == "" {
		errs = append(errs, errors.New("meeting id is required"))
	}
	if e.Type.IsParticipantEvent() {
		if e.Participant == nil {
			errs = append(errs, errors.New("participant is required"))
		} else if e.Participant.IdentityKey() == "" {
			errs = append(errs, errors.New("participant has no identifier, email or name"))
		}
	}
	return errors.Join(errs...)
}

var zoomEventTypeValues = func() map[EventType]struct{} {
	out := make(map[EventType]struct{}, len(zoomEventTypes))
	for _, v := range zoomEventTypes {
		out[v] = struct{}{}
	}
	return out
}()

// ParseLifecycleEvent converts a raw Zoom webhook message into a validated
// LifecycleEvent. Missing or unparsable times never reject the event; they are
// replaced by receivedAt and flagged. Structural problems return an error.
func ParseLifecycleEvent(msg *ZoomWebhookEventMessage, receivedAt time.Time) (*LifecycleEvent, error) {
	if msg == nil {
		return nil, errors.New("empty event message")
	}
	eventType, ok := zoomEventTypes[msg.EventType]
	if !ok {
		return nil, fmt.Errorf("unsupported event type %q", msg.EventType)
	}

	payload, err := msg.ToLifecyclePayload()
	if err != nil {
		return nil, err
	}

	receivedAt = receivedAt.UTC()
	obj := payload.Object
	event := &LifecycleEvent{
		Type:              eventType,
		MeetingID:         CoalesceID(obj.ID.String(), obj.UUID),
		MeetingUUID:       strings.TrimSpace(obj.UUID),
		Topic:             strings.TrimSpace(obj.Topic),
		HostID:            obj.HostID,
		ScheduledDuration: obj.Duration.Int(),
		ReceivedAt:        receivedAt,
	}

	if msg.EventTS > 0 {
		event.Timestamp = utils.FromEpoch(msg.EventTS)
		event.rawTimestamp = strconv.FormatInt(msg.EventTS, 10)
	} else {
		event.Timestamp = receivedAt
		event.TimestampSubstituted = true
	}

	switch eventType {
	case EventMeetingStarted:
		start, substituted := utils.ParseTimestampOr(obj.StartTime, event.Timestamp)
		event.StartTime = &start
		event.TimestampSubstituted = event.TimestampSubstituted || substituted
	case EventMeetingEnded:
		end, substituted := utils.ParseTimestampOr(obj.EndTime, event.Timestamp)
		event.EndTime = &end
		event.TimestampSubstituted = event.TimestampSubstituted || substituted
		if start, ok := utils.ParseTimestamp(obj.StartTime); ok {
			event.StartTime = &start
		}
	case EventParticipantJoined, EventParticipantLeft:
		if obj.Participant != nil {
			event.Participant = parseEventParticipant(eventType, obj.Participant, receivedAt)
			event.TimestampSubstituted = event.TimestampSubstituted || event.Participant.TimeSubstituted
		}
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

func parseEventParticipant(eventType EventType, p *ZoomWebhookParticipant, receivedAt time.Time) *EventParticipant {
	participant := &EventParticipant{
		UUID:              strings.TrimSpace(p.ParticipantUUID),
		ID:                p.ID.String(),
		UserID:            p.UserID.String(),
		ParticipantUserID: p.ParticipantUserID.String(),
		Name:              CleanDisplayName(p.UserName),
		Email:             strings.TrimSpace(p.Email),
		LeaveReason:       strings.TrimSpace(p.LeaveReason),
		DurationSeconds:   int64(p.Duration.Int()),
	}

	if eventType == EventParticipantJoined {
		participant.JoinTime, participant.TimeSubstituted = utils.ParseTimestampOr(p.JoinTime, receivedAt)
		return participant
	}

	participant.LeaveTime, participant.TimeSubstituted = utils.ParseTimestampOr(p.LeaveTime, receivedAt)
	if join, ok := utils.ParseTimestamp(p.JoinTime); ok {
		participant.JoinTime = join
	}
	return participant
}
