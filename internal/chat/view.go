package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tokenchat/internal/bus"
	"tokenchat/internal/domain"
	"tokenchat/internal/gate"
)

// View binds the message store, send coordinator, and sync loop for one
// active channel. It is what the surrounding application talks to:
// SendMessage, Messages, HasAccess, Members.
type View struct {
	channelID string
	contract  string
	session   *domain.Session
	gate      *gate.Gate
	store     *Store
	coord     *Coordinator
	loop      *SyncLoop
	events    *bus.EventBus
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// ViewConfig wires a channel view.
type ViewConfig struct {
	ContractAddress string
	Session         *domain.Session
	Gate            *gate.Gate
	Relay           domain.RelaySubmitter
	Feed            domain.FeedFetcher
	Switcher        domain.WalletSwitcher
	Limiter         *RateLimiter
	Events          *bus.EventBus
	Logger          *slog.Logger
	PollInterval    time.Duration
	FetchTimeout    time.Duration

	// Seed warm-starts the store from cached history before the first poll
	// lands.
	Seed []domain.Message
}

// NewView builds a channel view. It does not start polling; call Activate.
func NewView(cfg ViewConfig) *View {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	channelID := domain.ChannelIDFor(cfg.ContractAddress)
	store := NewStore(channelID, cfg.Events)
	if len(cfg.Seed) > 0 {
		store.ReplaceAll(cfg.Seed)
	}

	coord := NewCoordinator(CoordinatorConfig{
		ContractAddress: cfg.ContractAddress,
		Session:         cfg.Session,
		Gate:            cfg.Gate,
		Relay:           cfg.Relay,
		Switcher:        cfg.Switcher,
		Store:           store,
		Limiter:         cfg.Limiter,
		Events:          cfg.Events,
		Logger:          cfg.Logger,
	})

	loop := NewSyncLoop(SyncLoopConfig{
		ChannelID: channelID,
		Fetcher:   cfg.Feed,
		Apply:     coord.ApplyPoll,
		Interval:  cfg.PollInterval,
		Timeout:   cfg.FetchTimeout,
		Events:    cfg.Events,
		Logger:    cfg.Logger,
	})

	return &View{
		channelID: channelID,
		contract:  cfg.ContractAddress,
		session:   cfg.Session,
		gate:      cfg.Gate,
		store:     store,
		coord:     coord,
		loop:      loop,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// ChannelID returns the derived channel id.
func (v *View) ChannelID() string { return v.channelID }

// ContractAddress returns the collection contract backing the channel.
func (v *View) ContractAddress() string { return v.contract }

// Activate starts the sync loop. The loop stops when Deactivate is called
// or the parent context is cancelled.
func (v *View) Activate(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	go func() {
		defer close(v.done)
		v.loop.Run(loopCtx)
	}()
	if v.events != nil {
		v.events.Emit(bus.Event{
			Type:    bus.EventChannelActivated,
			Source:  "view",
			Payload: map[string]any{"channel": v.channelID},
		})
	}
}

// Deactivate cancels the sync loop and waits for it to stop; no poll fires
// afterwards. The store is discarded with the view. An in-flight relay
// submission is not cancelled; its eventual result is simply never
// observed.
func (v *View) Deactivate() {
	if v.cancel == nil {
		return
	}
	v.cancel()
	<-v.done
	v.cancel = nil
	if v.events != nil {
		v.events.Emit(bus.Event{
			Type:    bus.EventChannelDeactivated,
			Source:  "view",
			Payload: map[string]any{"channel": v.channelID},
		})
	}
}

// SendMessage submits content through the send coordinator.
func (v *View) SendMessage(ctx context.Context, content string) error {
	return v.coord.Send(ctx, content)
}

// Messages returns a snapshot of the current message list.
func (v *View) Messages() []domain.Message {
	return v.store.Snapshot()
}

// HasAccess is the cached hint driving composer vs. gate-message display.
func (v *View) HasAccess() bool {
	return v.gate.CanSend(v.session.Identity)
}

// Members returns the distinct sender addresses seen in canonical messages.
func (v *View) Members() []string {
	return v.store.Members()
}

// SendState exposes the coordinator's state, mainly for status displays.
func (v *View) SendState() SendState {
	return v.coord.State()
}

// Manager guarantees at most one live view (and thus one sync loop) per
// channel: activating a channel that already has a live view tears the old
// one down first.
type Manager struct {
	mu    sync.Mutex
	views map[string]*View
}

// NewManager creates an empty view manager.
func NewManager() *Manager {
	return &Manager{views: make(map[string]*View)}
}

// Activate builds and starts a view for cfg's channel, cancelling any
// previous view of the same channel first.
func (m *Manager) Activate(ctx context.Context, cfg ViewConfig) *View {
	channelID := domain.ChannelIDFor(cfg.ContractAddress)

	m.mu.Lock()
	old := m.views[channelID]
	m.mu.Unlock()
	if old != nil {
		old.Deactivate()
	}

	v := NewView(cfg)
	m.mu.Lock()
	m.views[channelID] = v
	m.mu.Unlock()
	v.Activate(ctx)
	return v
}

// View returns the live view for a channel, or nil.
func (m *Manager) View(channelID string) *View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[channelID]
}

// Deactivate tears down the view for a channel, if one is live.
func (m *Manager) Deactivate(channelID string) {
	m.mu.Lock()
	v := m.views[channelID]
	delete(m.views, channelID)
	m.mu.Unlock()
	if v != nil {
		v.Deactivate()
	}
}

// Shutdown tears down every live view.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	views := make([]*View, 0, len(m.views))
	for id, v := range m.views {
		views = append(views, v)
		delete(m.views, id)
	}
	m.mu.Unlock()
	for _, v := range views {
		v.Deactivate()
	}
}
