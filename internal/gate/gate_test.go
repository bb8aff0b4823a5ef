package gate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"tokenchat/internal/domain"
)

type fakeProfiles struct {
	wallets      []string
	err          error
	resolveCalls int
}

func (f *fakeProfiles) ResolveWallets(ctx context.Context, identityID string) ([]string, error) {
	f.resolveCalls++
	return f.wallets, f.err
}

func (f *fakeProfiles) ResolveProfile(ctx context.Context, address string) (*domain.Profile, error) {
	return nil, nil
}

type fakeVerifier struct {
	owns        bool
	err         error
	calls       int
	lastWallets []string
}

func (f *fakeVerifier) VerifyOwnership(ctx context.Context, contractAddress string, wallets []string) (bool, error) {
	f.calls++
	f.lastWallets = wallets
	return f.owns, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func identityWithWallets(addrs ...string) domain.Identity {
	id := domain.Identity{ID: "id-1"}
	for _, a := range addrs {
		id.Wallets = append(id.Wallets, domain.Wallet{Address: a})
	}
	return id
}

func TestCanSend_HintFromLinkedWallets(t *testing.T) {
	g := New(Config{Profiles: &fakeProfiles{}, Verifier: &fakeVerifier{}, Logger: testLogger()})

	if g.CanSend(domain.Identity{ID: "empty"}) {
		t.Error("identity without wallets should not pass the hint")
	}
	if !g.CanSend(identityWithWallets("0xAA")) {
		t.Error("identity with a wallet should pass the hint")
	}
}

func TestCanSend_BotBypass(t *testing.T) {
	g := New(Config{Profiles: &fakeProfiles{}, Verifier: &fakeVerifier{}, Logger: testLogger()})

	if !g.CanSend(domain.Identity{ID: "bot", IsBot: true}) {
		t.Error("bot identities bypass the gate")
	}
}

// The authoritative path must never run when the cached hint is false.
func TestVerifySend_FailsFastWithoutNetwork(t *testing.T) {
	profiles := &fakeProfiles{}
	verifier := &fakeVerifier{owns: true}
	g := New(Config{Profiles: profiles, Verifier: verifier, Logger: testLogger()})

	err := g.VerifySend(context.Background(), domain.Identity{ID: "empty"}, "0xC0")
	if !errors.Is(err, domain.ErrNotPermitted) {
		t.Fatalf("expected ErrNotPermitted, got %v", err)
	}
	if profiles.resolveCalls != 0 || verifier.calls != 0 {
		t.Errorf("no collaborator call expected, got resolve=%d verify=%d",
			profiles.resolveCalls, verifier.calls)
	}
}

func TestVerifySend_PassesFullWalletSet(t *testing.T) {
	profiles := &fakeProfiles{wallets: []string{"0xaa", "0xbb", "0xcc"}}
	verifier := &fakeVerifier{owns: true}
	g := New(Config{Profiles: profiles, Verifier: verifier, Logger: testLogger()})

	err := g.VerifySend(context.Background(), identityWithWallets("0xAA"), "0xC0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verifier.lastWallets) != 3 {
		t.Fatalf("verifier must receive the complete linked wallet set, got %v", verifier.lastWallets)
	}
}

// Scenario: verification returns false for all linked wallets.
func TestVerifySend_Denied(t *testing.T) {
	profiles := &fakeProfiles{wallets: []string{"0xAA", "0xBB"}}
	verifier := &fakeVerifier{owns: false}
	g := New(Config{Profiles: profiles, Verifier: verifier, Logger: testLogger()})

	err := g.VerifySend(context.Background(), identityWithWallets("0xAA"), "0xC0")
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestVerifySend_VerifierErrorIsDenialNotNetworkError(t *testing.T) {
	profiles := &fakeProfiles{wallets: []string{"0xAA"}}
	verifier := &fakeVerifier{err: errors.New("upstream 503")}
	g := New(Config{Profiles: profiles, Verifier: verifier, Logger: testLogger()})

	err := g.VerifySend(context.Background(), identityWithWallets("0xAA"), "0xC0")
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestVerifySend_ResolverFailureFallsBackToLocalWallets(t *testing.T) {
	profiles := &fakeProfiles{err: errors.New("profile store down")}
	verifier := &fakeVerifier{owns: true}
	g := New(Config{Profiles: profiles, Verifier: verifier, Logger: testLogger()})

	err := g.VerifySend(context.Background(), identityWithWallets("0xAA", "0xBB"), "0xC0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verifier.lastWallets) != 2 {
		t.Fatalf("expected fallback to the identity's local wallets, got %v", verifier.lastWallets)
	}
}

func TestVerifySend_BotBypassesVerification(t *testing.T) {
	verifier := &fakeVerifier{owns: false}
	g := New(Config{Profiles: &fakeProfiles{}, Verifier: verifier, Logger: testLogger()})

	err := g.VerifySend(context.Background(), domain.Identity{ID: "bot", IsBot: true}, "0xC0")
	if err != nil {
		t.Fatalf("bot send should bypass verification, got %v", err)
	}
	if verifier.calls != 0 {
		t.Errorf("verifier should not be called for bots, got %d calls", verifier.calls)
	}
}
