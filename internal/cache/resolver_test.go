package cache

import (
	"context"
	"testing"

	"tokenchat/internal/domain"
)

type countingResolver struct {
	profileCalls int
	walletCalls  int
}

func (r *countingResolver) ResolveWallets(ctx context.Context, identityID string) ([]string, error) {
	r.walletCalls++
	return []string{"0xaa"}, nil
}

func (r *countingResolver) ResolveProfile(ctx context.Context, address string) (*domain.Profile, error) {
	r.profileCalls++
	return &domain.Profile{Username: "alice"}, nil
}

func TestCachedProfiles_SecondLookupHitsCache(t *testing.T) {
	c := openTestCache(t, Config{})
	upstream := &countingResolver{}
	r := NewCachedProfiles(upstream, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := r.ResolveProfile(ctx, "0xAA")
		if err != nil || got == nil || got.Username != "alice" {
			t.Fatalf("lookup %d: %v %+v", i, err, got)
		}
	}
	if upstream.profileCalls != 1 {
		t.Errorf("expected 1 upstream call, got %d", upstream.profileCalls)
	}
}

func TestCachedProfiles_WalletsNeverCached(t *testing.T) {
	c := openTestCache(t, Config{})
	upstream := &countingResolver{}
	r := NewCachedProfiles(upstream, c)
	ctx := context.Background()

	r.ResolveWallets(ctx, "user-1")
	r.ResolveWallets(ctx, "user-1")
	if upstream.walletCalls != 2 {
		t.Errorf("wallet resolution must always go upstream, got %d calls", upstream.walletCalls)
	}
}

type countingAssets struct{ calls int }

func (a *countingAssets) FetchAssetMetadata(ctx context.Context, contract, tokenID string) (*domain.AssetMetadata, error) {
	a.calls++
	return &domain.AssetMetadata{Name: "Ape #" + tokenID}, nil
}

func TestCachedAssets_SecondLookupHitsCache(t *testing.T) {
	c := openTestCache(t, Config{})
	upstream := &countingAssets{}
	r := NewCachedAssets(upstream, c)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := r.FetchAssetMetadata(ctx, "0xc0ffee", "42")
		if err != nil || got == nil || got.Name != "Ape #42" {
			t.Fatalf("lookup %d: %v %+v", i, err, got)
		}
	}
	if upstream.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", upstream.calls)
	}
}
