// Package relay talks to the message relay service: the canonical feed,
// gas-sponsored message submission, server-side ownership verification, and
// profile/asset lookups.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"tokenchat/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP relay client. It implements domain.FeedFetcher,
// domain.RelaySubmitter, domain.OwnershipVerifier, domain.ProfileResolver,
// and domain.AssetMetadataFetcher.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// ClientConfig holds the relay client settings.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a relay client with a pooled transport.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

// FetchMessages returns the canonical message list for a channel in feed
// order.
func (c *Client) FetchMessages(ctx context.Context, channelID string) ([]domain.Message, error) {
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	path := "/v1/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return out.Messages, nil
}

// SubmitMessage posts a message transaction. The relay sponsors gas; the
// response only acknowledges acceptance.
func (c *Client) SubmitMessage(ctx context.Context, channelID, senderAddress, content string, kind domain.MessageKind) (domain.TxHandle, error) {
	body := map[string]any{
		"sender":  senderAddress,
		"content": content,
		"kind":    kind,
	}
	var out struct {
		TxHash string `json:"txHash"`
	}
	path := "/v1/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.postJSON(ctx, path, body, &out); err != nil {
		return domain.TxHandle{}, fmt.Errorf("submit message: %w", err)
	}
	return domain.TxHandle{Hash: out.TxHash}, nil
}

// VerifyOwnership asks the relay whether any of the wallets holds an asset
// of the collection.
func (c *Client) VerifyOwnership(ctx context.Context, contractAddress string, wallets []string) (bool, error) {
	body := map[string]any{
		"contract": contractAddress,
		"wallets":  wallets,
	}
	var out struct {
		Owns bool `json:"owns"`
	}
	if err := c.postJSON(ctx, "/v1/ownership/verify", body, &out); err != nil {
		return false, fmt.Errorf("verify ownership: %w", err)
	}
	return out.Owns, nil
}

// ResolveWallets returns every wallet address linked to an identity.
func (c *Client) ResolveWallets(ctx context.Context, identityID string) ([]string, error) {
	var out struct {
		Wallets []string `json:"wallets"`
	}
	path := "/v1/identities/" + url.PathEscape(identityID) + "/wallets"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("resolve wallets: %w", err)
	}
	normalized := make([]string, 0, len(out.Wallets))
	for _, w := range out.Wallets {
		normalized = append(normalized, domain.NormalizeAddress(w))
	}
	return normalized, nil
}

// ResolveProfile returns display data for an address, or nil when the relay
// has no profile for it.
func (c *Client) ResolveProfile(ctx context.Context, address string) (*domain.Profile, error) {
	var out domain.Profile
	path := "/v1/profiles/" + url.PathEscape(domain.NormalizeAddress(address))
	err := c.getJSON(ctx, path, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	return &out, nil
}

// FetchAssetMetadata loads preview data for one asset of a collection.
func (c *Client) FetchAssetMetadata(ctx context.Context, contractAddress, tokenID string) (*domain.AssetMetadata, error) {
	var out domain.AssetMetadata
	path := "/v1/collections/" + url.PathEscape(domain.NormalizeAddress(contractAddress)) +
		"/assets/" + url.PathEscape(tokenID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("fetch asset metadata: %w", err)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	}, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.doJSON(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, buildReq func() (*http.Request, error), out any) error {
	resp, err := doWithRetry(ctx, c.client, buildReq, c.logger)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError is a non-retryable HTTP error response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}
