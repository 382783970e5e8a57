package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
)

// Bus is the in-process domain event channel. Handlers for an event type plus
// wildcard subscribers receive each published event; fan-out is concurrent per
// event and a failing handler never blocks the others or the publisher.
//
// Publish returns after all handlers finished, so events published in
// aggregate append order are observed in that order by every subscriber.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]port.EventHandler
	logger   *zap.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]port.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the event type, or for every event when
// the type is port.EventTypeWildcard.
func (b *Bus) Subscribe(eventType string, handler port.EventHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish fans each event out to matching subscribers. Delivery is
// at-least-once within the process; handler panics are recovered and logged.
func (b *Bus) Publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		b.publishOne(ctx, event)
	}
}

func (b *Bus) publishOne(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	matched := make([]port.EventHandler, 0, len(b.handlers[event.Type])+len(b.handlers[port.EventTypeWildcard]))
	matched = append(matched, b.handlers[event.Type]...)
	matched = append(matched, b.handlers[port.EventTypeWildcard]...)
	b.mu.RUnlock()

	if len(matched) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, handler := range matched {
		wg.Add(1)
		go func(h port.EventHandler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						zap.String("event_type", event.Type),
						zap.String("event_id", event.ID),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
	wg.Wait()
}
