// Package bus provides the in-process event system that drives re-rendering
// and mirroring: the message store, send coordinator, and sync loop publish
// lifecycle events, the terminal view and the telegram bridge subscribe.
package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Event is one published occurrence.
type Event struct {
	Type      string         // e.g. "store.updated", "send.failed"
	Source    string         // originating component
	Payload   map[string]any // event-specific data
	Timestamp time.Time
}

// Handler is a callback for events.
type Handler func(Event)

// EventBus is a topic-based publish/subscribe system with wildcard
// subscriptions and a bounded history buffer for replay.
type EventBus struct {
	mu         sync.RWMutex
	handlers   map[string][]namedHandler
	history    []Event
	maxHistory int
	logger     *slog.Logger
}

type namedHandler struct {
	id      string
	handler Handler
}

// NewEventBus creates an EventBus.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers:   make(map[string][]namedHandler),
		maxHistory: 500,
		logger:     logger,
	}
}

// On registers a handler for the given event type. Use "*" to listen to all
// events. Returns the handler id for Off.
func (eb *EventBus) On(eventType string, handler Handler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eventType + "-" + strconv.Itoa(len(eb.handlers[eventType]))
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{id: id, handler: handler})
	return id
}

// Off removes a handler by id.
func (eb *EventBus) Off(eventType, handlerID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	hs := eb.handlers[eventType]
	for i, h := range hs {
		if h.id == handlerID {
			eb.handlers[eventType] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

// Emit publishes an event synchronously to matching and wildcard handlers.
// A panicking handler is logged and does not take down the caller.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.history) >= eb.maxHistory {
		eb.history = eb.history[1:]
	}
	eb.history = append(eb.history, event)
	targets := make([]namedHandler, 0, len(eb.handlers[event.Type])+len(eb.handlers["*"]))
	targets = append(targets, eb.handlers[event.Type]...)
	targets = append(targets, eb.handlers["*"]...)
	eb.mu.Unlock()

	for _, h := range targets {
		eb.dispatch(event, h)
	}
}

func (eb *EventBus) dispatch(event Event, h namedHandler) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", h.id, "panic", r)
		}
	}()
	h.handler(event)
}

// EmitAsync publishes an event without blocking the caller.
func (eb *EventBus) EmitAsync(event Event) {
	go eb.Emit(event)
}

// Replay returns buffered events of the given type (or "*") since the given
// time.
func (eb *EventBus) Replay(eventType string, since time.Time) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var out []Event
	for _, e := range eb.history {
		if e.Timestamp.Before(since) {
			continue
		}
		if eventType == "*" || e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// HistoryLen returns the number of buffered events.
func (eb *EventBus) HistoryLen() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.history)
}

// Well-known event types.
const (
	EventStoreUpdated       = "store.updated"
	EventSendSubmitted      = "send.submitted"
	EventSendConfirmed      = "send.confirmed"
	EventSendFailed         = "send.failed"
	EventAccessDenied       = "access.denied"
	EventFeedFetchFailed    = "feed.fetch_failed"
	EventChannelActivated   = "channel.activated"
	EventChannelDeactivated = "channel.deactivated"
)
