// Package events publishes reconciliation events to Redis.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// ChannelRunCompleted is the default channel for run completion events.
const ChannelRunCompleted = "events.meetings.reconciled"

// Event types.
const (
	EventTypeRunCompleted = "meetings.reconciled"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent stamped now.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "ottermatch",
		Version:   "1.0",
	}
}

// RunCompletedEvent is published when a reconciliation run finishes.
type RunCompletedEvent struct {
	BaseEvent

	RunID       string `json:"run_id"`
	ListingPath string `json:"listing_path,omitempty"`
	Directory   string `json:"directory,omitempty"`

	Total            int            `json:"total"`
	WithRecording    int            `json:"with_recording"`
	WithoutRecording int            `json:"without_recording"`
	ByMethod         map[string]int `json:"by_method"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	// Unmatched lists the names of events left without a recording.
	Unmatched []string `json:"unmatched,omitempty"`
}

// NewRunCompletedEvent builds the event for run and its records.
func NewRunCompletedEvent(run *matching.Run, records []matching.MatchedRecord) RunCompletedEvent {
	byMethod := make(map[string]int, len(run.Stats.ByMethod))
	for m, n := range run.Stats.ByMethod {
		byMethod[string(m)] = n
	}
	event := RunCompletedEvent{
		BaseEvent:        NewBaseEvent(EventTypeRunCompleted),
		RunID:            run.ID,
		ListingPath:      run.ListingPath,
		Directory:        run.Directory,
		Total:            run.Stats.Total,
		WithRecording:    run.Stats.WithRecording,
		WithoutRecording: run.Stats.WithoutRecording,
		ByMethod:         byMethod,
		StartedAt:        run.StartedAt,
		CompletedAt:      run.FinishedAt,
		DurationSeconds:  run.Duration().Seconds(),
	}
	for _, rec := range matching.Unmatched(records) {
		event.Unmatched = append(event.Unmatched, rec.Name)
	}
	return event
}

// RedisClient is the part of *redis.Client the publisher uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher publishes run events to Redis.
type Publisher struct {
	client  RedisClient
	channel string
	logger  logging.Logger
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewPublisher creates a publisher on channel, or ChannelRunCompleted when
// channel is empty.
func NewPublisher(client RedisClient, channel string, logger logging.Logger) *Publisher {
	if channel == "" {
		channel = ChannelRunCompleted
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
func NewPublisherFromConfig(ctx context.Context, cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPublisher(client, cfg.Channel, logger), nil
}

// Channel returns the channel events are published on.
func (p *Publisher) Channel() string {
	return p.channel
}

// PublishRunCompleted publishes the completion event for run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error {
	return p.publish(ctx, NewRunCompletedEvent(run, records))
}

func (p *Publisher) publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", p.channel))
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", p.channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
