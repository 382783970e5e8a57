package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
)

const schemaVersion = "1.0"

// EventRelay forwards every domain event published on the in-process bus to
// Kafka. Delivery to the broker is asynchronous; a send that cannot be
// enqueued before the request context ends is logged and dropped, matching
// the at-least-once in-process / best-effort outbound contract.
type EventRelay struct {
	producer *Producer
	logger   *zap.Logger
	service  string
	env      string
}

// NewEventRelay constructs a relay around the supplied producer.
func NewEventRelay(producer *Producer, service, env string, logger *zap.Logger) *EventRelay {
	return &EventRelay{producer: producer, logger: logger, service: service, env: env}
}

// Attach subscribes the relay to all events on the bus.
func (r *EventRelay) Attach(bus port.EventBus) {
	bus.Subscribe(port.EventTypeWildcard, r.handle)
}

type eventEnvelope struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	AggregateID string         `json:"aggregate_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Version     string         `json:"version"`
	Payload     map[string]any `json:"payload,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (r *EventRelay) handle(ctx context.Context, event domain.Event) {
	envelope := eventEnvelope{
		EventID:     event.ID,
		EventType:   event.Type,
		AggregateID: event.AggregateID,
		Timestamp:   event.OccurredAt,
		Version:     schemaVersion,
		Payload:     event.Payload,
		Metadata: map[string]string{
			"service":     r.service,
			"environment": r.env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		r.logger.Error("marshal event envelope",
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return
	}

	message := &sarama.ProducerMessage{
		Topic: r.producer.TopicName(event.Type),
		Key:   sarama.StringEncoder(event.AggregateID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case r.producer.Producer().Input() <- message:
	case <-ctx.Done():
		r.logger.Warn("dropped outbound event, context done",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
		)
	}
}
