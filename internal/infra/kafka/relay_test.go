package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(map[string][]*sarama.PartitionOffsetMetadata, string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(*sarama.ConsumerMessage, string, *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func TestRelayForwardsDomainEvent(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "lianxin",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	relay := NewEventRelay(producer, "lianxin-identity", "test", zaptest.NewLogger(t))

	occurred := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	event := domain.NewEvent(domain.EventSessionRevoked, "session-123", occurred, map[string]any{
		"reason": domain.RevokeReasonNewDeviceLogin,
	})

	relay.handle(context.Background(), event)

	select {
	case message := <-asyncProducer.input:
		if message.Topic != "lianxin.session.revoked" {
			t.Fatalf("unexpected topic %s", message.Topic)
		}

		raw, err := message.Value.Encode()
		if err != nil {
			t.Fatalf("encode message: %v", err)
		}

		var envelope eventEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope.EventType != domain.EventSessionRevoked {
			t.Fatalf("unexpected event type %s", envelope.EventType)
		}
		if envelope.AggregateID != "session-123" {
			t.Fatalf("unexpected aggregate id %s", envelope.AggregateID)
		}
		if envelope.Payload["reason"] != domain.RevokeReasonNewDeviceLogin {
			t.Fatalf("unexpected payload %v", envelope.Payload)
		}
		if envelope.Metadata["service"] != "lianxin-identity" {
			t.Fatalf("unexpected metadata %v", envelope.Metadata)
		}
	default:
		t.Fatal("expected a produced message")
	}
}
