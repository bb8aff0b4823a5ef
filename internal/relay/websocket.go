package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tokenchat/internal/domain"
)

// wsFrame is the JSON protocol on the relay's push stream.
type wsFrame struct {
	Type     string           `json:"type"` // "snapshot" | "append"
	Channel  string           `json:"channel,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
	Message  *domain.Message  `json:"message,omitempty"`
}

// PushFeed subscribes to the relay's websocket stream and mirrors the
// canonical list per channel. It satisfies domain.FeedFetcher, so the sync
// loop can run unchanged against push delivery: FetchMessages returns the
// latest mirrored list without a network round-trip.
type PushFeed struct {
	url    string
	logger *slog.Logger
	dialer *websocket.Dialer

	mu       sync.RWMutex
	channels map[string][]domain.Message
	ready    map[string]bool
}

// PushFeedConfig holds the push feed settings.
type PushFeedConfig struct {
	URL    string // e.g. wss://relay.example.com/v1/stream
	Logger *slog.Logger
}

// NewPushFeed creates a push feed. Call Run to connect.
func NewPushFeed(cfg PushFeedConfig) *PushFeed {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PushFeed{
		url:      cfg.URL,
		logger:   cfg.Logger,
		dialer:   websocket.DefaultDialer,
		channels: make(map[string][]domain.Message),
		ready:    make(map[string]bool),
	}
}

// FetchMessages returns the mirrored canonical list for a channel. Before
// the first snapshot arrives it reports ErrFetchFailed so the sync loop
// keeps last-known-good state instead of flashing an empty feed.
func (f *PushFeed) FetchMessages(ctx context.Context, channelID string) ([]domain.Message, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ready[channelID] {
		return nil, domain.ErrFetchFailed
	}
	return append([]domain.Message(nil), f.channels[channelID]...), nil
}

// Run connects to the stream, subscribing to the given channels, and
// reconnects with backoff until the context is cancelled.
func (f *PushFeed) Run(ctx context.Context, channelIDs ...string) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.connectAndRead(ctx, channelIDs)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("push feed disconnected, reconnecting", "err", err, "backoff", backoff)

		// Stale mirrors must not satisfy fetches while disconnected.
		f.mu.Lock()
		for id := range f.ready {
			f.ready[id] = false
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *PushFeed) connectAndRead(ctx context.Context, channelIDs []string) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Server closes the socket on cancellation so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for _, id := range channelIDs {
		sub := map[string]string{"type": "subscribe", "channel": id}
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
	}
	f.logger.Info("push feed connected", "url", f.url, "channels", len(channelIDs))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			f.logger.Warn("invalid push frame", "err", err)
			continue
		}
		f.handleFrame(frame)
	}
}

func (f *PushFeed) handleFrame(frame wsFrame) {
	switch frame.Type {
	case "snapshot":
		f.mu.Lock()
		f.channels[frame.Channel] = frame.Messages
		f.ready[frame.Channel] = true
		f.mu.Unlock()
	case "append":
		if frame.Message == nil {
			return
		}
		f.mu.Lock()
		f.channels[frame.Channel] = append(f.channels[frame.Channel], *frame.Message)
		f.mu.Unlock()
	default:
		f.logger.Debug("unhandled push frame", "type", frame.Type)
	}
}
