package cache

import (
	"context"

	"tokenchat/internal/domain"
)

// CachedProfiles wraps a ProfileResolver with the on-disk cache. Wallet
// resolution is never cached: the linked wallet set feeds authorization and
// must be fresh.
type CachedProfiles struct {
	next  domain.ProfileResolver
	cache *SQLiteCache
}

// NewCachedProfiles wraps next with cache.
func NewCachedProfiles(next domain.ProfileResolver, cache *SQLiteCache) *CachedProfiles {
	return &CachedProfiles{next: next, cache: cache}
}

func (r *CachedProfiles) ResolveWallets(ctx context.Context, identityID string) ([]string, error) {
	return r.next.ResolveWallets(ctx, identityID)
}

func (r *CachedProfiles) ResolveProfile(ctx context.Context, address string) (*domain.Profile, error) {
	if cached, err := r.cache.GetProfile(ctx, address); err == nil && cached != nil {
		return cached, nil
	}
	profile, err := r.next.ResolveProfile(ctx, address)
	if err != nil || profile == nil {
		return profile, err
	}
	if err := r.cache.PutProfile(ctx, address, *profile); err != nil {
		return profile, nil // cache write failure is not a lookup failure
	}
	return profile, nil
}

// CachedAssets wraps an AssetMetadataFetcher with the on-disk cache.
type CachedAssets struct {
	next  domain.AssetMetadataFetcher
	cache *SQLiteCache
}

// NewCachedAssets wraps next with cache.
func NewCachedAssets(next domain.AssetMetadataFetcher, cache *SQLiteCache) *CachedAssets {
	return &CachedAssets{next: next, cache: cache}
}

func (r *CachedAssets) FetchAssetMetadata(ctx context.Context, contractAddress, tokenID string) (*domain.AssetMetadata, error) {
	if cached, err := r.cache.GetAsset(ctx, contractAddress, tokenID); err == nil && cached != nil {
		return cached, nil
	}
	meta, err := r.next.FetchAssetMetadata(ctx, contractAddress, tokenID)
	if err != nil || meta == nil {
		return meta, err
	}
	if err := r.cache.PutAsset(ctx, contractAddress, tokenID, *meta); err != nil {
		return meta, nil
	}
	return meta, nil
}
