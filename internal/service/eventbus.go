package service

import (
	"context"
	"sync"

	"github.com/bnema/captioner/internal/port"
)

// EventBus fans session updates out to in-process subscribers such as SSE
// streams. Publishing never blocks: slow subscribers miss updates.
type EventBus struct {
	subscribers map[string][]chan port.Update
	mu          sync.RWMutex
}

var _ port.Notifier = (*EventBus)(nil)

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan port.Update),
	}
}

func (eb *EventBus) Subscribe(sessionID string) chan port.Update {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan port.Update, 16)
	eb.subscribers[sessionID] = append(eb.subscribers[sessionID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(sessionID string, ch chan port.Update) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[sessionID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[sessionID]) == 0 {
		delete(eb.subscribers, sessionID)
	}
}

func (eb *EventBus) Publish(sessionID string, u port.Update) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[sessionID] {
		select {
		case ch <- u:
		default:
		}
	}
}

func (eb *EventBus) Notify(_ context.Context, u port.Update) {
	if u.Session == nil {
		return
	}
	eb.Publish(u.Session.ID, u)
}

// Notifiers broadcasts every update to each notifier in order.
type Notifiers []port.Notifier

var _ port.Notifier = Notifiers(nil)

func (n Notifiers) Notify(ctx context.Context, u port.Update) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.Notify(ctx, u)
		}
	}
}
