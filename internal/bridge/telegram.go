// Package bridge mirrors confirmed channel messages to Telegram. The mirror
// is read-only: Telegram users see the conversation, writing still requires
// a wallet and goes through the relay.
package bridge

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tokenchat/internal/bus"
	"tokenchat/internal/domain"
	"tokenchat/internal/metrics"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram mirrors store updates for attached channels to a Telegram chat.
type Telegram struct {
	token  string
	chatID int64
	bot    *tgbotapi.BotAPI
	events *bus.EventBus
	logger *slog.Logger

	// send is swapped out in tests.
	send func(chatID int64, text string)

	mu       sync.Mutex
	channels map[string]*mirrorState
}

type mirrorState struct {
	snapshot func() []domain.Message
	seen     map[string]struct{}
}

// TelegramConfig holds the bridge settings.
type TelegramConfig struct {
	Token  string
	ChatID int64
	Events *bus.EventBus
	Logger *slog.Logger
}

// NewTelegram creates the bridge and connects the bot.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	t := &Telegram{
		token:    cfg.Token,
		chatID:   cfg.ChatID,
		bot:      bot,
		events:   cfg.Events,
		logger:   cfg.Logger,
		channels: make(map[string]*mirrorState),
	}
	t.send = t.sendMessage
	t.logger.Info("telegram bridge connected", "username", bot.Self.UserName)
	t.subscribe()
	return t, nil
}

func (t *Telegram) subscribe() {
	t.events.On(bus.EventStoreUpdated, func(e bus.Event) {
		channelID, _ := e.Payload["channel"].(string)
		if channelID == "" {
			return
		}
		t.mirror(channelID)
	})
}

// Attach starts mirroring a channel. snapshot must return the channel's
// current message list; messages already present are marked seen so
// attaching does not replay history.
func (t *Telegram) Attach(channelID string, snapshot func() []domain.Message) {
	state := &mirrorState{snapshot: snapshot, seen: make(map[string]struct{})}
	for _, m := range snapshot() {
		state.seen[m.ID] = struct{}{}
	}
	t.mu.Lock()
	t.channels[channelID] = state
	t.mu.Unlock()
}

// Detach stops mirroring a channel.
func (t *Telegram) Detach(channelID string) {
	t.mu.Lock()
	delete(t.channels, channelID)
	t.mu.Unlock()
}

func (t *Telegram) mirror(channelID string) {
	// Diff under the lock, deliver outside it: concurrent store updates
	// must not double-mirror, and a slow Telegram send must not block
	// other channels.
	t.mu.Lock()
	state := t.channels[channelID]
	if state == nil {
		t.mu.Unlock()
		return
	}
	var fresh []domain.Message
	for _, m := range state.snapshot() {
		// Optimistic entries are not mirrored; the canonical echo is.
		if m.IsOptimistic() {
			continue
		}
		if _, ok := state.seen[m.ID]; ok {
			continue
		}
		state.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	t.mu.Unlock()

	for _, m := range fresh {
		t.send(t.chatID, formatMirror(m))
		metrics.BridgeMirrored.Inc()
	}
}

func formatMirror(m domain.Message) string {
	sender := m.SenderAddress
	if len(sender) > 10 {
		sender = sender[:6] + "…" + sender[len(sender)-4:]
	}
	if m.IsBot {
		sender = sender + " [bot]"
	}
	return sender + ": " + m.Content
}

// sendMessage splits long text at the Telegram length limit, preferring
// newline boundaries.
func (t *Telegram) sendMessage(chatID int64, text string) {
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends one message with retry and rate limit handling.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", telegramMaxSendRetries+1)
	}
}
