package chat

import (
	"testing"
	"time"

	"tokenchat/internal/domain"
)

func canonicalMsg(id, content, sender string) domain.Message {
	return domain.Message{
		ID:            id,
		ChannelID:     "collection:0xc0",
		Kind:          domain.KindMessage,
		Content:       content,
		SenderAddress: sender,
		Timestamp:     time.Now(),
	}
}

func optimisticMsg(content, sender string) domain.Message {
	m := canonicalMsg(domain.PendingIDPrefix+"test", content, sender)
	m.Pending = true
	return m
}

func TestReconcile_NoOptimistic_CanonicalWins(t *testing.T) {
	canonical := []domain.Message{canonicalMsg("r1", "hello", "0xaa")}

	merged, superseded := Reconcile(canonical, nil)
	if superseded {
		t.Error("nothing to supersede")
	}
	if len(merged) != 1 || merged[0].ID != "r1" {
		t.Fatalf("expected canonical list unchanged, got %+v", merged)
	}
}

// Scenario: poll returns [] right after an optimistic send; the store keeps
// the single trailing pending entry.
func TestReconcile_EmptyPollKeepsOptimistic(t *testing.T) {
	opt := optimisticMsg("hi", "0xAA")

	merged, superseded := Reconcile(nil, &opt)
	if superseded {
		t.Error("optimistic message should not be superseded by an empty poll")
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 message, got %d", len(merged))
	}
	if !merged[0].Pending {
		t.Error("optimistic message must keep its pending display state")
	}
}

// Scenario: the canonical entry arrives with a lowercase sender; the match
// is case-insensitive and the canonical entry replaces the optimistic one.
func TestReconcile_CaseInsensitiveSenderMatch(t *testing.T) {
	opt := optimisticMsg("hi", "0xAA")
	canonical := []domain.Message{canonicalMsg("r1", "hi", "0xaa")}

	merged, superseded := Reconcile(canonical, &opt)
	if !superseded {
		t.Fatal("expected the optimistic message to be superseded")
	}
	if len(merged) != 1 || merged[0].ID != "r1" {
		t.Fatalf("expected only the canonical entry, got %+v", merged)
	}
	if merged[0].Pending {
		t.Error("no pending entry may remain after supersession")
	}
}

func TestReconcile_ContentMismatchKeepsOptimistic(t *testing.T) {
	opt := optimisticMsg("hi", "0xaa")
	canonical := []domain.Message{
		canonicalMsg("r1", "different", "0xaa"),
		canonicalMsg("r2", "hi", "0xbb"), // same content, wrong sender
	}

	merged, superseded := Reconcile(canonical, &opt)
	if superseded {
		t.Fatal("neither entry matches content+sender")
	}
	if len(merged) != 3 {
		t.Fatalf("expected canonical list plus trailing optimistic, got %d", len(merged))
	}
	last := merged[len(merged)-1]
	if !last.Pending || last.Content != "hi" {
		t.Fatalf("optimistic entry must trail the list, got %+v", last)
	}
}

// Convergence: once the message appears verbatim in a poll, exactly one
// matching entry remains and it is not pending, regardless of how many
// polls missed it before.
func TestReconcile_Convergence(t *testing.T) {
	opt := optimisticMsg("gm", "0xAA")

	polls := [][]domain.Message{
		nil,
		{canonicalMsg("r1", "other", "0xbb")},
		{canonicalMsg("r1", "other", "0xbb"), canonicalMsg("r2", "gm", "0xaa")},
	}

	var outstanding *domain.Message = &opt
	var store []domain.Message
	for _, poll := range polls {
		var superseded bool
		store, superseded = Reconcile(poll, outstanding)
		if superseded {
			outstanding = nil
		}
	}

	matches := 0
	for _, m := range store {
		if m.Content == "gm" && domain.SameSender(m.SenderAddress, "0xAA") {
			matches++
			if m.Pending {
				t.Error("converged entry must not be pending")
			}
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one matching entry after convergence, got %d", matches)
	}
}
