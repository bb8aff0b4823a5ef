package chat

import "tokenchat/internal/domain"

// Reconcile merges a freshly polled canonical list with at most one
// outstanding optimistic message.
//
// With nothing local to protect, the canonical list wins unconditionally.
// Otherwise the canonical list is searched for an entry with equal content
// and a case-insensitively equal sender address: a match means the
// optimistic message has been superseded and the canonical entry replaces
// it; no match keeps the optimistic message appended at the end, still
// pending.
//
// The match is content+sender, not id: the relay does not echo back a
// client-chosen correlation id.
func Reconcile(canonical []domain.Message, optimistic *domain.Message) (merged []domain.Message, superseded bool) {
	if optimistic == nil {
		return canonical, false
	}
	for _, m := range canonical {
		if m.Content == optimistic.Content && domain.SameSender(m.SenderAddress, optimistic.SenderAddress) {
			return canonical, true
		}
	}
	merged = make([]domain.Message, 0, len(canonical)+1)
	merged = append(merged, canonical...)
	merged = append(merged, *optimistic)
	return merged, false
}
