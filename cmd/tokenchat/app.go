package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tokenchat/internal/bridge"
	"tokenchat/internal/bus"
	"tokenchat/internal/cache"
	"tokenchat/internal/chat"
	"tokenchat/internal/config"
	"tokenchat/internal/domain"
	"tokenchat/internal/gate"
	"tokenchat/internal/metrics"
	"tokenchat/internal/registry"
	"tokenchat/internal/relay"
)

// app wires the long-lived components shared by the chat, gateway, and
// status commands.
type app struct {
	cfg      *config.Config
	events   *bus.EventBus
	store    *cache.SQLiteCache
	registry *registry.Registry
	client   *relay.Client
	feed     domain.FeedFetcher
	assets   domain.AssetMetadataFetcher
	gate     *gate.Gate
	limiter  *chat.RateLimiter
	session  *domain.Session
	manager  *chat.Manager
	bridge   *bridge.Telegram
	pushStop context.CancelFunc
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	events := bus.NewEventBus(logger)

	store, err := cache.Open(cache.Config{
		Path:       cfg.Cache.Path,
		ProfileTTL: time.Duration(cfg.Cache.ProfileTTLMinutes) * time.Minute,
		AssetTTL:   time.Duration(cfg.Cache.AssetTTLMinutes) * time.Minute,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	reg := registry.New()
	if err := reg.LoadFromDirectory(cfg.Registry.Dir, logger); err != nil {
		store.Close()
		return nil, fmt.Errorf("load collections: %w", err)
	}

	client := relay.NewClient(relay.ClientConfig{
		BaseURL: cfg.Relay.BaseURL,
		APIKey:  cfg.Relay.APIKey,
		Timeout: time.Duration(cfg.Relay.FetchTimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	a := &app{
		cfg:      cfg,
		events:   events,
		store:    store,
		registry: reg,
		client:   client,
		feed:     client,
		assets:   cache.NewCachedAssets(client, store),
		limiter:  chat.NewRateLimiter(cfg.Send.MaxBurst, cfg.Send.RatePerMinute),
		manager:  chat.NewManager(),
		session:  sessionFromConfig(cfg.Identity),
	}

	a.gate = gate.New(gate.Config{
		Profiles: cache.NewCachedProfiles(client, store),
		Verifier: client,
		Logger:   logger,
	})

	if cfg.Relay.UsePush {
		push := relay.NewPushFeed(relay.PushFeedConfig{URL: cfg.Relay.WSURL, Logger: logger})
		pushCtx, cancel := context.WithCancel(ctx)
		a.pushStop = cancel
		channels := make([]string, 0, len(reg.All()))
		for _, col := range reg.All() {
			channels = append(channels, channelIDOf(col.ContractAddress))
		}
		go push.Run(pushCtx, channels...)
		a.feed = push
	}

	if cfg.Bridge.Enabled {
		br, err := bridge.NewTelegram(bridge.TelegramConfig{
			Token:  cfg.Bridge.Token,
			ChatID: cfg.Bridge.ChatID,
			Events: events,
			Logger: logger,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("telegram bridge: %w", err)
		}
		a.bridge = br
	}

	return a, nil
}

// activateChannel starts (or restarts) the view for a collection, seeded
// from the cached history so the feed is visible before the first poll.
func (a *app) activateChannel(ctx context.Context, contract string) *chat.View {
	seed, err := a.store.LoadChannelHistory(ctx, channelIDOf(contract))
	if err != nil {
		logger.Warn("cannot load cached history", "contract", contract, "err", err)
	}
	return a.manager.Activate(ctx, chat.ViewConfig{
		ContractAddress: contract,
		Session:         a.session,
		Gate:            a.gate,
		Relay:           a.client,
		Feed:            a.feed,
		Switcher:        &localSwitcher{},
		Limiter:         a.limiter,
		Events:          a.events,
		Logger:          logger,
		PollInterval:    time.Duration(a.cfg.Relay.PollIntervalSeconds) * time.Second,
		FetchTimeout:    time.Duration(a.cfg.Relay.FetchTimeoutSeconds) * time.Second,
		Seed:            seed,
	})
}

// persistHistories snapshots every live channel into the cache, so the next
// start renders immediately.
func (a *app) persistHistories(ctx context.Context) {
	for _, col := range a.registry.All() {
		channelID := channelIDOf(col.ContractAddress)
		view := a.manager.View(channelID)
		if view == nil {
			continue
		}
		if err := a.store.SaveChannelHistory(ctx, channelID, view.Messages()); err != nil {
			logger.Warn("cannot persist channel history", "channel", channelID, "err", err)
		}
	}
}

func (a *app) serveMetrics(ctx context.Context) error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Metrics.Endpoint, metrics.Collector.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()
	logger.Info("metrics server started", "port", a.cfg.Metrics.Port, "endpoint", a.cfg.Metrics.Endpoint)
	return nil
}

func (a *app) Close() {
	if a.pushStop != nil {
		a.pushStop()
	}
	a.manager.Shutdown()
	a.store.Close()
}

func sessionFromConfig(ic config.IdentityConfig) *domain.Session {
	identity := domain.Identity{
		ID:          ic.ID,
		Username:    ic.Username,
		RelayWallet: ic.RelayWallet,
		IsBot:       ic.IsBot,
	}
	for _, w := range ic.Wallets {
		identity.Wallets = append(identity.Wallets, domain.Wallet{
			Address: w.Address,
			Label:   w.Label,
		})
	}
	return &domain.Session{Identity: identity, ActiveWallet: ic.RelayWallet}
}

func channelIDOf(contract string) string {
	return domain.ChannelIDFor(contract)
}

// localSwitcher flips the session's active wallet without an external wallet
// frontend. Signing is delegated to the relay, so switching is bookkeeping.
type localSwitcher struct{}

func (localSwitcher) SwitchTo(ctx context.Context, address string) error { return nil }
