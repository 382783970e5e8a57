package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/silver1334/lianxin/internal/core/domain"
	"github.com/silver1334/lianxin/internal/core/port"
)

func TestBusDeliversToTypeAndWildcard(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var mu sync.Mutex
	var typed, wildcard []string

	bus.Subscribe(domain.EventAccountLocked, func(_ context.Context, event domain.Event) {
		mu.Lock()
		typed = append(typed, event.ID)
		mu.Unlock()
	})
	bus.Subscribe(port.EventTypeWildcard, func(_ context.Context, event domain.Event) {
		mu.Lock()
		wildcard = append(wildcard, event.Type)
		mu.Unlock()
	})

	locked := domain.NewEvent(domain.EventAccountLocked, "acc-1", time.Now(), nil)
	login := domain.NewEvent(domain.EventAccountLoginSucceeded, "acc-1", time.Now(), nil)
	bus.Publish(context.Background(), locked, login)

	mu.Lock()
	defer mu.Unlock()
	if len(typed) != 1 || typed[0] != locked.ID {
		t.Fatalf("typed handler calls = %v", typed)
	}
	if len(wildcard) != 2 {
		t.Fatalf("wildcard handler calls = %v", wildcard)
	}
}

func TestBusPreservesPublishOrderPerSubscriber(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var mu sync.Mutex
	var seen []string
	bus.Subscribe(port.EventTypeWildcard, func(_ context.Context, event domain.Event) {
		mu.Lock()
		seen = append(seen, event.Type)
		mu.Unlock()
	})

	bus.Publish(context.Background(),
		domain.NewEvent("first", "acc-1", time.Now(), nil),
		domain.NewEvent("second", "acc-1", time.Now(), nil),
		domain.NewEvent("third", "acc-1", time.Now(), nil),
	)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[0] != "first" || seen[1] != "second" || seen[2] != "third" {
		t.Fatalf("expected append order preserved, got %v", seen)
	}
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var mu sync.Mutex
	delivered := 0

	bus.Subscribe("boom", func(context.Context, domain.Event) {
		panic("handler exploded")
	})
	bus.Subscribe("boom", func(context.Context, domain.Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	// Must not panic the publisher and must still reach the second handler.
	bus.Publish(context.Background(), domain.NewEvent("boom", "acc-1", time.Now(), nil))

	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Fatalf("expected surviving handler delivery, got %d", delivered)
	}
}

func TestBusNoSubscribersIsNoop(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	bus.Publish(context.Background(), domain.NewEvent("nobody.listens", "acc-1", time.Now(), nil))
}
