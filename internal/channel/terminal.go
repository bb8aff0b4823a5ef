// Package channel renders an active collection channel in the terminal: the
// message feed, the composer, and the gate message for non-holders.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tokenchat/internal/bus"
	"tokenchat/internal/chat"
	"tokenchat/internal/domain"
	"tokenchat/internal/registry"
	"tokenchat/internal/segment"
)

// Terminal is the interactive REPL over one channel view.
type Terminal struct {
	view     *chat.View
	registry *registry.Registry
	assets   domain.AssetMetadataFetcher
	events   *bus.EventBus
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
}

// TerminalConfig holds the terminal dependencies.
type TerminalConfig struct {
	View     *chat.View
	Registry *registry.Registry
	Assets   domain.AssetMetadataFetcher
	Events   *bus.EventBus
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
}

// NewTerminal creates a terminal over an activated view.
func NewTerminal(cfg TerminalConfig) *Terminal {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Terminal{
		view:     cfg.View,
		registry: cfg.Registry,
		assets:   cfg.Assets,
		events:   cfg.Events,
		logger:   cfg.Logger,
		in:       cfg.In,
		out:      cfg.Out,
	}
}

// Run reads lines until /quit, EOF, or context cancellation. Feed updates
// for the view's channel redraw between prompts.
func (t *Terminal) Run(ctx context.Context) error {
	if t.events != nil {
		id := t.events.On(bus.EventStoreUpdated, func(e bus.Event) {
			if ch, _ := e.Payload["channel"].(string); ch == t.view.ChannelID() {
				t.render()
			}
		})
		defer t.events.Off(bus.EventStoreUpdated, id)
	}

	fmt.Fprintf(t.out, "Joined %s. Type a message, /help for commands, /quit to leave.\n", t.channelLabel())
	t.render()

	if !t.view.HasAccess() {
		fmt.Fprintln(t.out, "You need an asset from this collection to send messages. The feed stays readable.")
	}

	// Reading happens on its own goroutine so cancellation is not stuck
	// behind a blocked Scan waiting for the next line.
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	t.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err // nil on EOF
				default:
					return nil
				}
			}

			line := strings.TrimSpace(raw)
			if line == "" {
				t.prompt()
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := t.handleCommand(ctx, line); quit {
					return nil
				}
				t.prompt()
				continue
			}

			if err := t.view.SendMessage(ctx, line); err != nil {
				t.printSendError(err)
			}
			t.prompt()
		}
	}
}

func (t *Terminal) handleCommand(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		fmt.Fprintln(t.out, "/members        list senders seen in this channel")
		fmt.Fprintln(t.out, "/status         show send state and access")
		fmt.Fprintln(t.out, "/asset <id>     preview an asset of this collection")
		fmt.Fprintln(t.out, "/quit           leave the channel")
	case "/members":
		members := t.view.Members()
		fmt.Fprintf(t.out, "%d member(s):\n", len(members))
		for _, m := range members {
			fmt.Fprintf(t.out, "  %s\n", m)
		}
	case "/status":
		fmt.Fprintf(t.out, "channel: %s\nsend state: %s\ncan send: %v\n",
			t.view.ChannelID(), t.view.SendState(), t.view.HasAccess())
	case "/asset":
		if len(fields) < 2 {
			fmt.Fprintln(t.out, "usage: /asset <token-id>")
			break
		}
		t.previewAsset(ctx, fields[1])
	default:
		fmt.Fprintf(t.out, "unknown command %s, try /help\n", fields[0])
	}
	return false
}

func (t *Terminal) previewAsset(ctx context.Context, tokenID string) {
	if t.assets == nil {
		fmt.Fprintln(t.out, "asset previews are not configured")
		return
	}
	meta, err := t.assets.FetchAssetMetadata(ctx, t.view.ContractAddress(), tokenID)
	if err != nil || meta == nil {
		fmt.Fprintf(t.out, "no metadata for token %s\n", tokenID)
		return
	}
	fmt.Fprintf(t.out, "%s\n", meta.Name)
	if meta.ImageURL != "" {
		fmt.Fprintf(t.out, "  image: %s\n", meta.ImageURL)
	}
	for k, v := range meta.Attributes {
		fmt.Fprintf(t.out, "  %s: %s\n", k, v)
	}
}

func (t *Terminal) printSendError(err error) {
	switch {
	case errors.Is(err, domain.ErrNotPermitted):
		fmt.Fprintln(t.out, "You cannot send here: no linked wallet holds this collection.")
	case errors.Is(err, domain.ErrAccessDenied):
		fmt.Fprintln(t.out, "Send blocked: ownership verification did not pass.")
	case errors.Is(err, domain.ErrSendInFlight):
		fmt.Fprintln(t.out, "Hold on, your previous message is still being confirmed.")
	case errors.Is(err, domain.ErrWalletSwitchFailed):
		fmt.Fprintln(t.out, "Could not switch to your relay wallet. Message not sent.")
	default:
		fmt.Fprintf(t.out, "Send failed: %v\n", err)
	}
}

func (t *Terminal) render() {
	msgs := t.view.Messages()
	fmt.Fprintf(t.out, "\r\033[K--- %s (%d messages) ---\n", t.channelLabel(), len(msgs))
	for _, m := range msgs {
		t.renderMessage(m)
	}
}

func (t *Terminal) renderMessage(m domain.Message) {
	sender := shortAddr(m.SenderAddress)
	marker := ""
	if m.Pending {
		marker = " [sending]"
	}
	if m.IsBot {
		sender += " [bot]"
	}
	fmt.Fprintf(t.out, "%s%s: %s\n", sender, marker, t.renderContent(m.Content))
}

// renderContent annotates mentions and references inline; the raw text is
// preserved so copy/paste stays faithful.
func (t *Terminal) renderContent(content string) string {
	segs := segment.Parse(content, segment.Options{
		ChannelContractAddress: t.view.ContractAddress(),
	})
	var b strings.Builder
	for _, s := range segs {
		switch s.Kind {
		case segment.KindMention:
			b.WriteString("\033[36m" + s.Raw + "\033[0m")
		case segment.KindCollection:
			b.WriteString("\033[33m" + s.Raw + t.collectionHint(s) + "\033[0m")
		case segment.KindAsset:
			b.WriteString("\033[33m" + s.Raw + "\033[0m")
		default:
			b.WriteString(s.Raw)
		}
	}
	return b.String()
}

func (t *Terminal) collectionHint(s segment.Segment) string {
	if t.registry == nil || s.CollectionSlug == "" {
		return ""
	}
	if col, ok := t.registry.BySlug(s.CollectionSlug); ok && col.Name != "" {
		return " (" + col.Name + ")"
	}
	return ""
}

func (t *Terminal) channelLabel() string {
	if t.registry != nil {
		if col, ok := t.registry.ByContract(t.view.ContractAddress()); ok && col.Name != "" {
			return col.Name
		}
	}
	return t.view.ChannelID()
}

func (t *Terminal) prompt() {
	fmt.Fprint(t.out, "you> ")
}

func shortAddr(addr string) string {
	if len(addr) > 10 {
		return addr[:6] + "…" + addr[len(addr)-4:]
	}
	return addr
}
