package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, timeout: time.Second, logger: zerolog.Nop()}

	err := p.Publish(context.Background(), Event{Type: StatusLogRecorded, ProfileID: "p-1", Data: map[string]int{"vasScore": 7}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "p-1" {
		t.Errorf("expected profile id key, got %q", msg.Key)
	}

	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != StatusLogRecorded || e.OccurredAt.IsZero() {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, timeout: time.Second, logger: zerolog.Nop()}
	if err := p.Publish(context.Background(), Event{Type: ProfileCreated, ProfileID: "p"}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestNew_NoBrokers(t *testing.T) {
	if _, ok := New(nil, "t", zerolog.Nop()).(Nop); !ok {
		t.Error("expected Nop publisher without brokers")
	}
	if _, ok := New([]string{"localhost:9092"}, "t", zerolog.Nop()).(*KafkaPublisher); !ok {
		t.Error("expected Kafka publisher with brokers")
	}
}
