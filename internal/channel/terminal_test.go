package channel

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"tokenchat/internal/bus"
	"tokenchat/internal/chat"
	"tokenchat/internal/domain"
	"tokenchat/internal/gate"
	"tokenchat/internal/registry"
)

type stubProfiles struct{}

func (stubProfiles) ResolveWallets(ctx context.Context, identityID string) ([]string, error) {
	return []string{"0xaa"}, nil
}

func (stubProfiles) ResolveProfile(ctx context.Context, address string) (*domain.Profile, error) {
	return nil, nil
}

type stubVerifier struct{ owns bool }

func (v stubVerifier) VerifyOwnership(ctx context.Context, contractAddress string, wallets []string) (bool, error) {
	return v.owns, nil
}

type stubRelay struct{ calls int }

func (r *stubRelay) SubmitMessage(ctx context.Context, channelID, senderAddress, content string, kind domain.MessageKind) (domain.TxHandle, error) {
	r.calls++
	return domain.TxHandle{Hash: "0xtx"}, nil
}

type stubSwitcher struct{}

func (stubSwitcher) SwitchTo(ctx context.Context, address string) error { return nil }

type stubFeed struct{}

func (stubFeed) FetchMessages(ctx context.Context, channelID string) ([]domain.Message, error) {
	return nil, nil
}

func testTerminal(t *testing.T, owns bool, input string) (*bytes.Buffer, *stubRelay) {
	t.Helper()
	identity := domain.Identity{
		ID:          "user-1",
		Username:    "alice",
		Wallets:     []domain.Wallet{{Address: "0xAA"}},
		RelayWallet: "0xAA",
	}
	session := &domain.Session{Identity: identity, ActiveWallet: "0xAA"}
	events := bus.NewEventBus(nil)
	relay := &stubRelay{}
	g := gate.New(gate.Config{Profiles: stubProfiles{}, Verifier: stubVerifier{owns: owns}})

	view := chat.NewView(chat.ViewConfig{
		ContractAddress: "0xC0FFEE",
		Session:         session,
		Gate:            g,
		Relay:           relay,
		Feed:            stubFeed{},
		Switcher:        stubSwitcher{},
		Events:          events,
		Seed: []domain.Message{
			{ID: "r1", Content: "welcome to #bayc", SenderAddress: "0xbb"},
		},
	})

	reg := registry.New()
	reg.Add(registry.Collection{Slug: "bayc", ContractAddress: "0xC0FFEE", Name: "Bored Apes"})

	out := &bytes.Buffer{}
	term := NewTerminal(TerminalConfig{
		View:     view,
		Registry: reg,
		Events:   events,
		In:       strings.NewReader(input),
		Out:      out,
	})
	if err := term.Run(context.Background()); err != nil {
		t.Fatalf("terminal run: %v", err)
	}
	return out, relay
}

func TestTerminal_RendersFeedAndQuits(t *testing.T) {
	out, _ := testTerminal(t, true, "/quit\n")
	got := out.String()
	if !strings.Contains(got, "Bored Apes") {
		t.Errorf("channel label missing: %s", got)
	}
	if !strings.Contains(got, "welcome to") {
		t.Errorf("seeded message not rendered: %s", got)
	}
	// The #bayc reference is annotated with the registry name.
	if !strings.Contains(got, "#bayc (Bored Apes)") {
		t.Errorf("collection reference not annotated: %s", got)
	}
}

func TestTerminal_SendGoesToRelay(t *testing.T) {
	_, relay := testTerminal(t, true, "gm everyone\n/quit\n")
	if relay.calls != 1 {
		t.Errorf("expected 1 relay submission, got %d", relay.calls)
	}
}

func TestTerminal_DeniedSendShowsGateMessage(t *testing.T) {
	out, relay := testTerminal(t, false, "gm everyone\n/quit\n")
	if relay.calls != 0 {
		t.Error("denied send must not reach the relay")
	}
	if !strings.Contains(out.String(), "ownership verification did not pass") {
		t.Errorf("denial message missing: %s", out.String())
	}
}

func TestTerminal_MembersCommand(t *testing.T) {
	out, _ := testTerminal(t, true, "/members\n/quit\n")
	if !strings.Contains(out.String(), "1 member(s)") || !strings.Contains(out.String(), "0xbb") {
		t.Errorf("members listing wrong: %s", out.String())
	}
}

func TestTerminal_StatusCommand(t *testing.T) {
	out, _ := testTerminal(t, true, "/status\n/quit\n")
	got := out.String()
	if !strings.Contains(got, "send state: idle") || !strings.Contains(got, "can send: true") {
		t.Errorf("status output wrong: %s", got)
	}
}

func TestTerminal_CancelUnblocksRun(t *testing.T) {
	identity := domain.Identity{
		ID:          "user-1",
		Wallets:     []domain.Wallet{{Address: "0xAA"}},
		RelayWallet: "0xAA",
	}
	session := &domain.Session{Identity: identity, ActiveWallet: "0xAA"}
	g := gate.New(gate.Config{Profiles: stubProfiles{}, Verifier: stubVerifier{owns: true}})
	view := chat.NewView(chat.ViewConfig{
		ContractAddress: "0xC0FFEE",
		Session:         session,
		Gate:            g,
		Relay:           &stubRelay{},
		Feed:            stubFeed{},
		Switcher:        stubSwitcher{},
	})

	// A pipe with no writes keeps the reader blocked mid-line, like a user
	// sitting at the prompt.
	pr, pw := io.Pipe()
	defer pw.Close()
	term := NewTerminal(TerminalConfig{View: view, In: pr, Out: &bytes.Buffer{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
