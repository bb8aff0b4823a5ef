package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEventBus_EmitAndReceive(t *testing.T) {
	eb := NewEventBus(testLogger())

	var received int32
	eb.On(EventStoreUpdated, func(e Event) {
		atomic.AddInt32(&received, 1)
	})

	eb.Emit(Event{Type: EventStoreUpdated, Payload: map[string]any{"channel": "collection:0xaa"}})

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("expected 1 event received, got %d", received)
	}
}

func TestEventBus_WildcardHandler(t *testing.T) {
	eb := NewEventBus(testLogger())

	var count int32
	eb.On("*", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	eb.Emit(Event{Type: EventSendSubmitted})
	eb.Emit(Event{Type: EventSendFailed})

	if atomic.LoadInt32(&count) != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestEventBus_Off(t *testing.T) {
	eb := NewEventBus(testLogger())

	var count int32
	id := eb.On("test.event", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	eb.Emit(Event{Type: "test.event"})
	eb.Off("test.event", id)
	eb.Emit(Event{Type: "test.event"})

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", count)
	}
}

func TestEventBus_Replay(t *testing.T) {
	eb := NewEventBus(testLogger())

	eb.Emit(Event{Type: "a"})
	eb.Emit(Event{Type: "b"})
	eb.Emit(Event{Type: "a"})

	if got := len(eb.Replay("a", time.Time{})); got != 2 {
		t.Errorf("expected 2 'a' events, got %d", got)
	}
	if got := len(eb.Replay("*", time.Time{})); got != 3 {
		t.Errorf("expected 3 total events, got %d", got)
	}
}

func TestEventBus_HistoryLimit(t *testing.T) {
	eb := NewEventBus(testLogger())
	eb.maxHistory = 5

	for i := 0; i < 10; i++ {
		eb.Emit(Event{Type: "test"})
	}

	if eb.HistoryLen() != 5 {
		t.Errorf("expected 5, got %d", eb.HistoryLen())
	}
}

func TestEventBus_PanicRecovery(t *testing.T) {
	eb := NewEventBus(testLogger())

	eb.On("panic", func(e Event) {
		panic("handler blew up")
	})

	// Must not propagate to the caller.
	eb.Emit(Event{Type: "panic"})
}

func TestEventBus_EmitAsync(t *testing.T) {
	eb := NewEventBus(testLogger())

	done := make(chan struct{})
	eb.On("async", func(e Event) {
		close(done)
	})

	eb.EmitAsync(Event{Type: "async"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async event not delivered")
	}
}

func TestEventBus_TimestampAutoSet(t *testing.T) {
	eb := NewEventBus(testLogger())

	eb.Emit(Event{Type: "test"})

	events := eb.Replay("test", time.Time{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be auto-set")
	}
}
