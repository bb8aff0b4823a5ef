package domain

// Wallet is one address linked to an identity. Ownership of a qualifying
// asset may reside in any linked wallet.
type Wallet struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// Identity groups the linked wallets of one user. RelayWallet is the
// designated gasless signing wallet; relay submissions must originate from
// it.
type Identity struct {
	ID          string   `json:"id"`
	Username    string   `json:"username,omitempty"`
	Wallets     []Wallet `json:"wallets"`
	RelayWallet string   `json:"relayWallet"`
	IsBot       bool     `json:"isBot,omitempty"`
}

// WalletAddresses returns every linked address, normalized.
func (id Identity) WalletAddresses() []string {
	addrs := make([]string, 0, len(id.Wallets))
	for _, w := range id.Wallets {
		addrs = append(addrs, NormalizeAddress(w.Address))
	}
	return addrs
}

// HasWallets reports whether the identity has at least one linked wallet.
func (id Identity) HasWallets() bool {
	return len(id.Wallets) > 0
}

// Session carries the ambient wallet state explicitly instead of through
// globals: the current identity and the currently active signing wallet.
// The send coordinator mutates ActiveWallet after a successful switch.
type Session struct {
	Identity     Identity
	ActiveWallet string
}

// NeedsWalletSwitch reports whether the active signing wallet differs from
// the identity's relay wallet.
func (s *Session) NeedsWalletSwitch() bool {
	return !SameSender(s.ActiveWallet, s.Identity.RelayWallet)
}
