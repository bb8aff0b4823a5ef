package chat

import (
	"context"
	"log/slog"
	"time"

	"tokenchat/internal/bus"
	"tokenchat/internal/domain"
	"tokenchat/internal/metrics"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

// SyncLoop periodically fetches the canonical message list for a channel
// and hands it to the apply sink (the coordinator's reconcile entry point).
// The fetcher is an interface so a push-based transport can replace the
// polling one without touching the reconciler.
type SyncLoop struct {
	channelID string
	fetcher   domain.FeedFetcher
	apply     func([]domain.Message)
	interval  time.Duration
	timeout   time.Duration
	events    *bus.EventBus
	logger    *slog.Logger
}

// SyncLoopConfig holds the loop's dependencies and tuning.
type SyncLoopConfig struct {
	ChannelID string
	Fetcher   domain.FeedFetcher
	Apply     func([]domain.Message)
	Interval  time.Duration
	Timeout   time.Duration
	Events    *bus.EventBus
	Logger    *slog.Logger
}

// NewSyncLoop creates a sync loop. Interval defaults to 3s, per-tick fetch
// timeout to 10s.
func NewSyncLoop(cfg SyncLoopConfig) *SyncLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SyncLoop{
		channelID: cfg.ChannelID,
		fetcher:   cfg.Fetcher,
		apply:     cfg.Apply,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// Run polls until the context is cancelled: once immediately, then on every
// tick. No tick fires after cancellation. A failed fetch is logged and
// skipped; the store keeps its last-known-good state.
func (l *SyncLoop) Run(ctx context.Context) {
	l.logger.Info("sync loop started", "channel", l.channelID, "interval", l.interval)
	metrics.ActiveChannels.Inc()
	defer metrics.ActiveChannels.Dec()

	l.tick(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("sync loop stopped", "channel", l.channelID)
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *SyncLoop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	fctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	msgs, err := l.fetcher.FetchMessages(fctx, l.channelID)
	metrics.PollsTotal.Inc()
	metrics.PollLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PollFailures.Inc()
		l.logger.Warn("feed fetch failed, keeping last-known-good state",
			"channel", l.channelID, "err", err)
		if l.events != nil {
			l.events.Emit(bus.Event{
				Type:    bus.EventFeedFetchFailed,
				Source:  "syncloop",
				Payload: map[string]any{"channel": l.channelID, "error": err.Error()},
			})
		}
		return
	}
	l.apply(msgs)
}
