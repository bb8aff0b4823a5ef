package domain

import "context"

// Profile is display-only data for a wallet address. Never used for
// authorization decisions.
type Profile struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// AssetMetadata backs hover previews for asset references.
type AssetMetadata struct {
	Name       string            `json:"name"`
	ImageURL   string            `json:"imageUrl,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TxHandle identifies an accepted relay transaction. Anything beyond
// acceptance (finality, gas sponsorship) is owned by the relay.
type TxHandle struct {
	Hash string `json:"hash"`
}

// ProfileResolver maps identities and addresses to display data.
type ProfileResolver interface {
	// ResolveWallets returns every wallet address linked to the identity.
	ResolveWallets(ctx context.Context, identityID string) ([]string, error)
	// ResolveProfile returns display data for an address, or nil when the
	// address has no profile.
	ResolveProfile(ctx context.Context, address string) (*Profile, error)
}

// OwnershipVerifier is the authoritative token-gating check, invoked
// server-side. It must be called with the complete linked wallet set.
type OwnershipVerifier interface {
	VerifyOwnership(ctx context.Context, contractAddress string, wallets []string) (bool, error)
}

// RelaySubmitter submits a message transaction to the relay contract. The
// write is gas sponsored; failure modes are opaque and treated uniformly as
// submission failures.
type RelaySubmitter interface {
	SubmitMessage(ctx context.Context, channelID, senderAddress, content string, kind MessageKind) (TxHandle, error)
}

// FeedFetcher returns the canonical message list for a channel in feed
// order. Implementations may poll an HTTP endpoint or snapshot a push
// subscription; the sync loop does not care which.
type FeedFetcher interface {
	FetchMessages(ctx context.Context, channelID string) ([]Message, error)
}

// AssetMetadataFetcher loads preview data for an asset reference.
type AssetMetadataFetcher interface {
	FetchAssetMetadata(ctx context.Context, contractAddress, tokenID string) (*AssetMetadata, error)
}

// WalletSwitcher asks the wallet frontend to change the active signing
// wallet.
type WalletSwitcher interface {
	SwitchTo(ctx context.Context, address string) error
}
