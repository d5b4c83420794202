// Package events publishes domain events about patient records to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	ProfileCreated     = "profile.created"
	ProfileUpdated     = "profile.updated"
	ProfileDeleted     = "profile.deleted"
	StatusLogRecorded  = "status_log.recorded"
	ConsultationSaved  = "consultation.saved"
	PreferencesChanged = "preferences.changed"
)

// Event is the JSON payload written to the topic.  Messages are keyed by
// profile id so events of one patient stay ordered within a partition.
type Event struct {
	Type       string    `json:"type"`
	ProfileID  string    `json:"profileId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data,omitempty"`
}

// Publisher delivers events.  Implementations must not block callers for
// long; failures are reported but callers treat them as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.  It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		timeout: 10 * time.Second,
		logger:  logger.With().Str("component", "events").Str("topic", topic).Logger(),
	}
}

// New returns a Kafka publisher, or Nop when brokers is empty.
func New(brokers []string, topic string, logger zerolog.Logger) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic, logger)
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.ProfileID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("type", e.Type).Str("profile_id", e.ProfileID).Msg("publish event failed")
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	p.logger.Debug().Str("type", e.Type).Str("profile_id", e.ProfileID).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
