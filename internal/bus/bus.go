// Package bus provides the async event bus between the conversation
// pipeline and its observers (CLI, channels, relay).
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event types emitted by the pipeline.
const (
	EventProgress  = "progress"
	EventMessage   = "message"
	EventReasoning = "reasoning"
	EventError     = "error"
	EventAnalysis  = "analysis"
)

// Message phases carried on EventMessage events.
const (
	PhaseResponding = "responding"
	PhaseStreaming  = "streaming"
	PhaseAnalyzing  = "analyzing"
	PhaseComplete   = "complete"
	PhaseError      = "error"
)

// Error kinds carried on EventError events.
const (
	ErrorKindDispatch    = "dispatch"
	ErrorKindProvider    = "provider"
	ErrorKindPersistence = "persistence"
)

// Event is a single observer notification.
type Event struct {
	Type      string    `json:"type"`
	TopicID   string    `json:"topic_id"`
	MessageID string    `json:"message_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Pct       int       `json:"pct,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus decouples the pipeline from whoever is watching it.
type EventBus struct {
	events chan Event
	subs   []func(Event)
	mu     sync.RWMutex
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		events: make(chan Event, 256),
	}
}

// Publish enqueues an event for delivery. It never blocks the caller;
// when the buffer is saturated the event is dropped with a warning.
func (b *EventBus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	select {
	case b.events <- evt:
	default:
		slog.Warn("event bus saturated, dropping event", "type", evt.Type, "topic", evt.TopicID)
	}
}

// Subscribe registers a callback for all events. Callbacks run on the
// dispatcher goroutine and must not block.
func (b *EventBus) Subscribe(callback func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = append(b.subs, callback)
}

// Dispatch runs the event dispatcher until the context is cancelled.
// This should be run as a goroutine.
func (b *EventBus) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-b.events:
			b.mu.RLock()
			subs := b.subs
			b.mu.RUnlock()

			for _, cb := range subs {
				cb(evt)
			}
		}
	}
}

// Pending returns the number of undelivered events.
func (b *EventBus) Pending() int {
	return len(b.events)
}
