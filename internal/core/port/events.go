package port

import (
	"context"

	"github.com/silver1334/lianxin/internal/core/domain"
)

// EventHandler consumes one domain event. Handler failures never abort
// delivery to the remaining subscribers.
type EventHandler func(ctx context.Context, event domain.Event)

// EventPublisher fans domain events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// EventBus adds subscription management on top of publishing. Subscribing to
// EventTypeWildcard receives every event.
type EventBus interface {
	EventPublisher
	Subscribe(eventType string, handler EventHandler)
}

// EventTypeWildcard matches all event types for a subscription.
const EventTypeWildcard = "*"
