// Package gate enforces token-gated write access to collection channels.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tokenchat/internal/domain"
	"tokenchat/internal/metrics"
)

// Gate answers two questions: the cheap cached hint that drives UI
// affordances (CanSend) and the authoritative ownership re-verification
// that must pass before every relay submission (VerifySend). The hint is
// never trusted to authorize a write.
type Gate struct {
	profiles domain.ProfileResolver
	verifier domain.OwnershipVerifier
	logger   *slog.Logger

	mu    sync.RWMutex
	hints map[string]bool // identity ID -> cached hint
}

// Config holds the Gate's collaborators.
type Config struct {
	Profiles domain.ProfileResolver
	Verifier domain.OwnershipVerifier
	Logger   *slog.Logger
}

// New creates a Gate.
func New(cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		profiles: cfg.Profiles,
		verifier: cfg.Verifier,
		logger:   cfg.Logger,
		hints:    make(map[string]bool),
	}
}

// CanSend is the cached access hint: the identity has at least one linked
// wallet. Computed once per identity from local state, shared across
// channel switches, and used only to decide whether to show the composer.
func (g *Gate) CanSend(identity domain.Identity) bool {
	if identity.IsBot {
		return true
	}

	g.mu.RLock()
	hint, ok := g.hints[identity.ID]
	g.mu.RUnlock()
	if ok {
		return hint
	}

	hint = identity.HasWallets()
	g.mu.Lock()
	g.hints[identity.ID] = hint
	g.mu.Unlock()
	return hint
}

// VerifySend authoritatively re-verifies that the identity may write to the
// channel gated by contractAddress. It resolves the full linked wallet set
// (ownership may reside in any linked wallet, not just the active one) and
// asks the server-side verifier. Returns domain.ErrNotPermitted when the
// cached hint is already false (no network call is made) and
// domain.ErrAccessDenied when verification does not positively confirm
// ownership. Bot identities bypass the gate.
func (g *Gate) VerifySend(ctx context.Context, identity domain.Identity, contractAddress string) error {
	if identity.IsBot {
		return nil
	}
	if !g.CanSend(identity) {
		return domain.ErrNotPermitted
	}

	wallets, err := g.profiles.ResolveWallets(ctx, identity.ID)
	if err != nil {
		g.logger.Warn("wallet resolution failed, falling back to local wallet list",
			"identity", identity.ID, "err", err)
		wallets = identity.WalletAddresses()
	}
	if len(wallets) == 0 {
		return domain.ErrAccessDenied
	}

	owns, err := g.verifier.VerifyOwnership(ctx, contractAddress, wallets)
	if err != nil {
		// Cannot verify means cannot write: a gate that fails open is no
		// gate. Still surfaced as a denial, not a network error.
		metrics.AccessDenials.Inc()
		return fmt.Errorf("%w (verification unavailable: %v)", domain.ErrAccessDenied, err)
	}
	if !owns {
		metrics.AccessDenials.Inc()
		g.logger.Info("ownership verification denied",
			"identity", identity.ID,
			"contract", contractAddress,
			"wallets", len(wallets),
		)
		return domain.ErrAccessDenied
	}
	return nil
}
