package domain

import (
	"strings"
	"time"
)

// MessageKind classifies a chat entry.
type MessageKind string

const (
	KindSystem      MessageKind = "system"
	KindMessage     MessageKind = "message"
	KindBotResponse MessageKind = "bot-response"
)

// PendingIDPrefix marks locally-originated message ids. Relay-assigned ids
// never carry it, so the two id spaces cannot collide.
const PendingIDPrefix = "pending-"

// Message is the canonical unit of chat content. Canonical messages carry a
// relay-assigned id; an optimistic message carries a synthetic pending- id
// until the relay feed echoes it back.
type Message struct {
	ID            string      `json:"id"`
	ChannelID     string      `json:"channelId"`
	Kind          MessageKind `json:"kind"`
	Content       string      `json:"content"`
	SenderAddress string      `json:"senderAddress"`
	Timestamp     time.Time   `json:"timestamp"`
	IsBot         bool        `json:"isBot,omitempty"`
	Pending       bool        `json:"pending,omitempty"`
}

// IsOptimistic reports whether the message originated locally and has not
// yet been observed in the canonical feed.
func (m Message) IsOptimistic() bool {
	return m.Pending || strings.HasPrefix(m.ID, PendingIDPrefix)
}

// NormalizeAddress lowercases a wallet address for comparison. Addresses are
// otherwise treated as opaque strings.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameSender compares two wallet addresses case-insensitively.
func SameSender(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// ChannelIDFor derives the chat channel id for a collection contract
// address. One channel per collection.
func ChannelIDFor(contractAddress string) string {
	return "collection:" + NormalizeAddress(contractAddress)
}
