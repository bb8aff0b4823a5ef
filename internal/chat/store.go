// Package chat implements the optimistic-send / poll / reconcile protocol
// that bridges locally-displayed state and relay-confirmed state: the
// client-local message store, the reconciler, the send coordinator state
// machine, and the sync loop.
package chat

import (
	"sync"

	"tokenchat/internal/bus"
	"tokenchat/internal/domain"
)

// Store is the ordered, client-local message sequence for one active
// channel. It is owned exclusively by that channel's view and discarded on
// deactivation. Every mutation publishes a store.updated event so the
// surrounding application can re-render.
type Store struct {
	channelID string
	events    *bus.EventBus

	mu       sync.RWMutex
	messages []domain.Message
}

// NewStore creates an empty store for a channel. events may be nil.
func NewStore(channelID string, events *bus.EventBus) *Store {
	return &Store{channelID: channelID, events: events}
}

// ChannelID returns the channel this store belongs to.
func (s *Store) ChannelID() string { return s.channelID }

// ReplaceAll swaps the full message list, as done on every successful poll.
func (s *Store) ReplaceAll(msgs []domain.Message) {
	s.mu.Lock()
	s.messages = append(s.messages[:0:0], msgs...)
	s.mu.Unlock()
	s.notify()
}

// Append adds one message at the end (the optimistic insert).
func (s *Store) Append(msg domain.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify()
}

// RemoveByID deletes the message with the given id, if present.
func (s *Store) RemoveByID(id string) bool {
	s.mu.Lock()
	removed := false
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		s.notify()
	}
	return removed
}

// Get returns the message with the given id.
func (s *Store) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Snapshot returns a copy of the current message list.
func (s *Store) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.messages...)
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Members returns the distinct sender addresses seen across canonical
// messages, in first-seen order. Optimistic entries do not count until
// confirmed.
func (s *Store) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.messages))
	var members []string
	for _, m := range s.messages {
		if m.IsOptimistic() || m.SenderAddress == "" {
			continue
		}
		addr := domain.NormalizeAddress(m.SenderAddress)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		members = append(members, addr)
	}
	return members
}

func (s *Store) notify() {
	if s.events == nil {
		return
	}
	s.events.Emit(bus.Event{
		Type:    bus.EventStoreUpdated,
		Source:  "store",
		Payload: map[string]any{"channel": s.channelID},
	})
}
