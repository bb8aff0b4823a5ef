package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokenchat/internal/bus"
	"tokenchat/internal/domain"
	"tokenchat/internal/gate"
	"tokenchat/internal/metrics"
)

// SendState is the coordinator's position in the send state machine.
type SendState string

const (
	StateIdle                 SendState = "idle"
	StateGating               SendState = "gating"
	StateSubmitting           SendState = "submitting"
	StateAwaitingConfirmation SendState = "awaiting-confirmation"
)

// Coordinator orchestrates one channel's sends: permission check →
// optimistic insert → authoritative re-verification → relay submission →
// resolution. Resolution of a successful send is not driven by the
// transaction outcome but by the reconciler observing the canonical feed,
// which may take multiple poll cycles.
type Coordinator struct {
	channelID string
	contract  string
	session   *domain.Session
	gate      *gate.Gate
	relay     domain.RelaySubmitter
	switcher  domain.WalletSwitcher
	store     *Store
	limiter   *RateLimiter
	events    *bus.EventBus
	logger    *slog.Logger

	mu          sync.Mutex
	state       SendState
	outstanding string // id of the optimistic message awaiting confirmation
}

// CoordinatorConfig holds the coordinator's dependencies.
type CoordinatorConfig struct {
	ContractAddress string
	Session         *domain.Session
	Gate            *gate.Gate
	Relay           domain.RelaySubmitter
	Switcher        domain.WalletSwitcher
	Store           *Store
	Limiter         *RateLimiter
	Events          *bus.EventBus
	Logger          *slog.Logger
}

// NewCoordinator creates a send coordinator in the idle state.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		channelID: domain.ChannelIDFor(cfg.ContractAddress),
		contract:  cfg.ContractAddress,
		session:   cfg.Session,
		gate:      cfg.Gate,
		relay:     cfg.Relay,
		switcher:  cfg.Switcher,
		store:     cfg.Store,
		limiter:   cfg.Limiter,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// State returns the current send state.
func (c *Coordinator) State() SendState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == "" {
		return StateIdle
	}
	return c.state
}

// Send runs the full state machine for one message. It returns once the
// relay has accepted the submission; confirmation arrives later through the
// feed. Errors are terminal for this attempt and leave no optimistic entry
// behind.
func (c *Coordinator) Send(ctx context.Context, content string) error {
	c.mu.Lock()
	if c.state != "" && c.state != StateIdle {
		c.mu.Unlock()
		return domain.ErrSendInFlight
	}
	// Fail fast on the cached hint, before any network call.
	if !c.gate.CanSend(c.session.Identity) {
		c.mu.Unlock()
		return domain.ErrNotPermitted
	}
	c.state = StateGating
	c.mu.Unlock()

	metrics.SendsTotal.Inc()

	if err := c.gate.VerifySend(ctx, c.session.Identity, c.contract); err != nil {
		c.setState(StateIdle)
		c.emit(bus.EventAccessDenied, map[string]any{"error": err.Error()})
		return err
	}

	// Submissions must come from the identity's designated relay wallet.
	if c.session.NeedsWalletSwitch() {
		if err := c.switcher.SwitchTo(ctx, c.session.Identity.RelayWallet); err != nil {
			c.setState(StateIdle)
			return fmt.Errorf("%w: %v", domain.ErrWalletSwitchFailed, err)
		}
		c.session.ActiveWallet = c.session.Identity.RelayWallet
		c.logger.Debug("switched to relay wallet", "wallet", c.session.ActiveWallet)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.setState(StateIdle)
			return err
		}
	}

	kind := domain.KindMessage
	if c.session.Identity.IsBot {
		kind = domain.KindBotResponse
	}
	msg := domain.Message{
		ID:            domain.PendingIDPrefix + uuid.NewString(),
		ChannelID:     c.channelID,
		Kind:          kind,
		Content:       content,
		SenderAddress: domain.NormalizeAddress(c.session.Identity.RelayWallet),
		Timestamp:     time.Now(),
		IsBot:         c.session.Identity.IsBot,
		Pending:       true,
	}

	// Entering submitting: the one point where the UI shows the message
	// before relay confirmation.
	c.mu.Lock()
	c.state = StateSubmitting
	c.outstanding = msg.ID
	c.mu.Unlock()
	c.store.Append(msg)

	start := time.Now()
	tx, err := c.relay.SubmitMessage(ctx, c.channelID, msg.SenderAddress, content, kind)
	metrics.SubmitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.store.RemoveByID(msg.ID)
		c.mu.Lock()
		c.state = StateIdle
		c.outstanding = ""
		c.mu.Unlock()
		metrics.SendFailures.Inc()
		c.emit(bus.EventSendFailed, map[string]any{"error": err.Error()})
		c.logger.Warn("relay submission failed", "channel", c.channelID, "err", err)
		// The collaborator's error text travels verbatim to the caller.
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	// A poll may already have confirmed the message while the submission
	// round-trip was in flight; only advance if it is still outstanding.
	c.mu.Lock()
	if c.outstanding == msg.ID {
		c.state = StateAwaitingConfirmation
	}
	c.mu.Unlock()
	c.emit(bus.EventSendSubmitted, map[string]any{"tx": tx.Hash, "id": msg.ID})
	c.logger.Info("message submitted",
		"channel", c.channelID,
		"tx", tx.Hash,
		"sender", msg.SenderAddress,
	)
	return nil
}

// ApplyPoll feeds a freshly polled canonical list through the reconciler
// and replaces the store. When the outstanding optimistic message is
// superseded by a canonical entry, the send resolves successfully.
func (c *Coordinator) ApplyPoll(canonical []domain.Message) {
	c.mu.Lock()
	outID := c.outstanding
	c.mu.Unlock()

	var optimistic *domain.Message
	if outID != "" {
		if m, ok := c.store.Get(outID); ok {
			optimistic = &m
		}
	}

	merged, superseded := Reconcile(canonical, optimistic)
	if superseded {
		c.mu.Lock()
		c.outstanding = ""
		if c.state == StateSubmitting || c.state == StateAwaitingConfirmation {
			c.state = StateIdle
		}
		c.mu.Unlock()
		metrics.ReconcileMatches.Inc()
		c.emit(bus.EventSendConfirmed, map[string]any{"id": outID})
		c.logger.Debug("optimistic message superseded", "channel", c.channelID, "id", outID)
	}
	c.store.ReplaceAll(merged)
}

func (c *Coordinator) setState(s SendState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) emit(eventType string, payload map[string]any) {
	if c.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["channel"] = c.channelID
	c.events.Emit(bus.Event{Type: eventType, Source: "coordinator", Payload: payload})
}
