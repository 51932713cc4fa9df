package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channels used by the HMIS core.
const (
	ChannelQueue   = "hmis.queue"
	ChannelPatient = "hmis.patient"
)

// Event types published by the core.
const (
	TypeQueueEntryCreated   = "queue.entry_created"
	TypeQueueEntryCalled    = "queue.entry_called"
	TypeQueueEntryCompleted = "queue.entry_completed"
	TypeQueueEntryArchived  = "queue.entry_archived"
	TypePatientRegistered   = "patient.registered"
)

// Event is the envelope published on the bus.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// NewEvent builds an event envelope with a fresh id and timestamp.
func NewEvent(eventType string, data map[string]string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher emits events. Secondary automations (display boards, the
// registration-to-triage hook) subscribe; publish failures never fail the
// primary operation, callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, channel string, evt Event) error
}

// Bus is a Redis pub/sub implementation of Publisher.
type Bus struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewBus(client *redis.Client, logger zerolog.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

// NewClient connects to Redis from a URL of the form redis://host:port/db.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *Bus) Publish(ctx context.Context, channel string, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	b.logger.Debug().Str("channel", channel).Str("type", evt.Type).Str("event_id", evt.ID).Msg("event published")
	return nil
}

// Subscribe returns a channel of decoded events. The channel closes when ctx
// is cancelled. Malformed payloads are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, channel string) <-chan Event {
	pubsub := b.client.Subscribe(ctx, channel)
	out := make(chan Event, 64)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed event")
					continue
				}
				select {
				case out <- evt:
				default:
					b.logger.Warn().Str("channel", channel).Str("event_id", evt.ID).Msg("subscriber backlog full, dropping event")
				}
			}
		}
	}()

	return out
}

// NopPublisher discards events. Used when Redis is not configured and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
