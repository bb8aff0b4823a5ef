package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tokenchat/internal/domain"
)

func openTestCache(t *testing.T, cfg Config) *SQLiteCache {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "cache.db")
	}
	c, err := Open(cfg)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_ProfileRoundTrip(t *testing.T) {
	c := openTestCache(t, Config{})
	ctx := context.Background()

	if err := c.PutProfile(ctx, "0xAA", domain.Profile{Username: "alice", AvatarURL: "https://x/a.png"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Lookup normalizes the address.
	got, err := c.GetProfile(ctx, "0xaa")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Username != "alice" {
		t.Fatalf("unexpected profile %+v", got)
	}

	if got, _ := c.GetProfile(ctx, "0xbb"); got != nil {
		t.Error("expected miss for unknown address")
	}
}

func TestCache_ProfileExpiry(t *testing.T) {
	c := openTestCache(t, Config{ProfileTTL: time.Nanosecond})
	ctx := context.Background()

	c.PutProfile(ctx, "0xaa", domain.Profile{Username: "alice"})
	time.Sleep(time.Millisecond)

	if got, _ := c.GetProfile(ctx, "0xaa"); got != nil {
		t.Error("expired profile must read as a miss")
	}
}

func TestCache_AssetRoundTrip(t *testing.T) {
	c := openTestCache(t, Config{})
	ctx := context.Background()

	meta := domain.AssetMetadata{
		Name:       "Ape #42",
		ImageURL:   "https://x/42.png",
		Attributes: map[string]string{"fur": "golden"},
	}
	if err := c.PutAsset(ctx, "0xC0FFEE", "42", meta); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := c.GetAsset(ctx, "0xc0ffee", "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Name != "Ape #42" || got.Attributes["fur"] != "golden" {
		t.Fatalf("unexpected metadata %+v", got)
	}
}

func TestCache_ChannelHistorySkipsOptimistic(t *testing.T) {
	c := openTestCache(t, Config{})
	ctx := context.Background()

	msgs := []domain.Message{
		{ID: "r1", Content: "hello", SenderAddress: "0xaa"},
		{ID: domain.PendingIDPrefix + "x", Content: "in flight", SenderAddress: "0xaa", Pending: true},
	}
	if err := c.SaveChannelHistory(ctx, "collection:0xc0", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := c.LoadChannelHistory(ctx, "collection:0xc0")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("optimistic entries must not be persisted, got %+v", got)
	}

	if got, _ := c.LoadChannelHistory(ctx, "collection:0xother"); got != nil {
		t.Error("expected nil history for unknown channel")
	}
}

func TestCache_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c := openTestCache(t, Config{Path: path})
	c.PutProfile(ctx, "0xaa", domain.Profile{Username: "alice"})
	c.Close()

	c2 := openTestCache(t, Config{Path: path})
	got, err := c2.GetProfile(ctx, "0xaa")
	if err != nil || got == nil {
		t.Fatalf("profile lost across reopen: %v %+v", err, got)
	}
}

func TestCache_PruneDeletesExpiredRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c := openTestCache(t, Config{Path: path, ProfileTTL: time.Nanosecond, AssetTTL: time.Nanosecond})
	c.PutProfile(ctx, "0xaa", domain.Profile{Username: "alice"})
	c.PutAsset(ctx, "0xc0ffee", "42", domain.AssetMetadata{Name: "Ape #42"})
	time.Sleep(time.Millisecond)

	if err := c.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
	c.Close()

	// Reopen with generous TTLs: a plain read-time filter would now return
	// the rows again, pruned rows stay gone.
	c2 := openTestCache(t, Config{Path: path, ProfileTTL: time.Hour, AssetTTL: time.Hour})
	if got, _ := c2.GetProfile(ctx, "0xaa"); got != nil {
		t.Errorf("pruned profile still present: %+v", got)
	}
	if got, _ := c2.GetAsset(ctx, "0xc0ffee", "42"); got != nil {
		t.Errorf("pruned asset still present: %+v", got)
	}
}
