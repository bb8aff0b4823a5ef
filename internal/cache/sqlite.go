// Package cache persists data that survives channel switches and restarts:
// resolved profiles, asset metadata previews, and the last confirmed message
// list per channel, used to warm-start a freshly activated view.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tokenchat/internal/domain"
)

const (
	defaultProfileTTL = 15 * time.Minute
	defaultAssetTTL   = time.Hour
)

// SQLiteCache is the on-disk cache.
type SQLiteCache struct {
	db         *sql.DB
	logger     *slog.Logger
	profileTTL time.Duration
	assetTTL   time.Duration
}

// Config holds the cache settings.
type Config struct {
	Path       string
	ProfileTTL time.Duration
	AssetTTL   time.Duration
	Logger     *slog.Logger
}

// Open creates or opens the cache database.
func Open(cfg Config) (*SQLiteCache, error) {
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = defaultProfileTTL
	}
	if cfg.AssetTTL <= 0 {
		cfg.AssetTTL = defaultAssetTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open cache database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCache{
		db:         db,
		logger:     cfg.Logger,
		profileTTL: cfg.ProfileTTL,
		assetTTL:   cfg.AssetTTL,
	}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		address     TEXT PRIMARY KEY,
		username    TEXT,
		avatar_url  TEXT,
		fetched_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assets (
		contract    TEXT NOT NULL,
		token_id    TEXT NOT NULL,
		payload     TEXT NOT NULL,
		fetched_at  DATETIME NOT NULL,
		PRIMARY KEY (contract, token_id)
	);

	CREATE TABLE IF NOT EXISTS channel_history (
		channel_id  TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		updated_at  DATETIME NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// PutProfile stores a resolved profile for an address.
func (c *SQLiteCache) PutProfile(ctx context.Context, address string, profile domain.Profile) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO profiles (address, username, avatar_url, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET
		   username = excluded.username,
		   avatar_url = excluded.avatar_url,
		   fetched_at = excluded.fetched_at`,
		domain.NormalizeAddress(address), profile.Username, profile.AvatarURL, time.Now(),
	)
	return err
}

// GetProfile returns a cached profile, or nil when absent or expired.
func (c *SQLiteCache) GetProfile(ctx context.Context, address string) (*domain.Profile, error) {
	var p domain.Profile
	var fetchedAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT username, avatar_url, fetched_at FROM profiles WHERE address = ?`,
		domain.NormalizeAddress(address),
	).Scan(&p.Username, &p.AvatarURL, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Since(fetchedAt) > c.profileTTL {
		return nil, nil
	}
	return &p, nil
}

// PutAsset stores asset metadata for a contract/token pair.
func (c *SQLiteCache) PutAsset(ctx context.Context, contract, tokenID string, meta domain.AssetMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO assets (contract, token_id, payload, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(contract, token_id) DO UPDATE SET
		   payload = excluded.payload,
		   fetched_at = excluded.fetched_at`,
		domain.NormalizeAddress(contract), tokenID, string(payload), time.Now(),
	)
	return err
}

// GetAsset returns cached asset metadata, or nil when absent or expired.
func (c *SQLiteCache) GetAsset(ctx context.Context, contract, tokenID string) (*domain.AssetMetadata, error) {
	var payload string
	var fetchedAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM assets WHERE contract = ? AND token_id = ?`,
		domain.NormalizeAddress(contract), tokenID,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Since(fetchedAt) > c.assetTTL {
		return nil, nil
	}
	var meta domain.AssetMetadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return nil, fmt.Errorf("corrupt asset cache entry: %w", err)
	}
	return &meta, nil
}

// SaveChannelHistory stores the confirmed message list for a channel.
// Optimistic entries are excluded; a warm start must never resurrect a
// pending message whose fate is unknown.
func (c *SQLiteCache) SaveChannelHistory(ctx context.Context, channelID string, msgs []domain.Message) error {
	confirmed := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsOptimistic() {
			continue
		}
		confirmed = append(confirmed, m)
	}
	payload, err := json.Marshal(confirmed)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO channel_history (channel_id, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		channelID, string(payload), time.Now(),
	)
	return err
}

// LoadChannelHistory returns the stored message list for a channel, or nil
// when none is stored.
func (c *SQLiteCache) LoadChannelHistory(ctx context.Context, channelID string) ([]domain.Message, error) {
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM channel_history WHERE channel_id = ?`, channelID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []domain.Message
	if err := json.Unmarshal([]byte(payload), &msgs); err != nil {
		return nil, fmt.Errorf("corrupt channel history entry: %w", err)
	}
	return msgs, nil
}

// Prune deletes expired profile and asset rows.
func (c *SQLiteCache) Prune(ctx context.Context) error {
	now := time.Now()
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE fetched_at < ?`, now.Add(-c.profileTTL)); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM assets WHERE fetched_at < ?`, now.Add(-c.assetTTL))
	return err
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
