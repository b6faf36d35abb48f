package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	TypeAppointmentCreated       = "appointment.created"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeQueuePositionsChanged    = "queue.positions_changed"
)

// Event is the envelope written to the event log and published for
// collaborators (notification, billing, display boards).
type Event struct {
	Type          string         `json:"type"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
	At            time.Time      `json:"at"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Recorder persists events for audit and replay.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Bus records every event and fans it out over Redis pub/sub. Emission is
// best effort: a failed record or publish must never fail the request that
// produced the event.
type Bus struct {
	recorder Recorder
	client   *redis.Client
	channel  string
}

func NewBus(recorder Recorder, client *redis.Client, channel string) *Bus {
	return &Bus{
		recorder: recorder,
		client:   client,
		channel:  channel,
	}
}

func (b *Bus) Emit(ctx context.Context, eventType string, appointmentID *uuid.UUID, payload map[string]any) {
	if b == nil {
		return
	}

	ev := Event{
		Type:          eventType,
		AppointmentID: appointmentID,
		At:            time.Now(),
		Payload:       payload,
	}

	if b.recorder != nil {
		if err := b.recorder.Record(ctx, ev); err != nil {
			log.Error().Err(err).Str("event_type", eventType).Msg("record event")
		}
	}

	if b.client != nil {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("event_type", eventType).Msg("marshal event")
			return
		}
		if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
			log.Error().Err(err).Str("event_type", eventType).Msg("publish event")
		}
	}
}
