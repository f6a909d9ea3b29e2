package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-orgcreator/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const claimOutcomeCacheKeyPrefix = "go-orgcreator::claim_outcome::v1"

// OutcomeStore is the ledger contract both the SQL and cached stores satisfy.
type OutcomeStore interface {
	core.ClaimOutcomeRecorder
	core.ClaimOutcomeReader
}

// CachedClaimOutcomeStore serves Get from a read-through cache. Record writes
// to the base store and then drops the claim's cache entry. List is never
// cached.
type CachedClaimOutcomeStore struct {
	base  OutcomeStore
	cache repositorycache.CacheService
}

func NewCachedClaimOutcomeStore(base OutcomeStore, cacheService repositorycache.CacheService) (*CachedClaimOutcomeStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base claim outcome store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: claim outcome cache service is required")
	}
	return &CachedClaimOutcomeStore{base: base, cache: cacheService}, nil
}

// ClaimOutcomeCacheKey is go-orgcreator::claim_outcome::v1::<claim id>, with
// the claim id path-escaped.
func ClaimOutcomeCacheKey(claimID string) (string, error) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return "", fmt.Errorf("sqlstore: claim id is required")
	}
	return claimOutcomeCacheKeyPrefix + "::" + url.PathEscape(claimID), nil
}

func (s *CachedClaimOutcomeStore) Get(ctx context.Context, claimID string) (core.ClaimOutcome, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: cached claim outcome store is not configured")
	}
	cacheKey, err := ClaimOutcomeCacheKey(claimID)
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ClaimOutcome, error) {
		return s.base.Get(ctx, strings.TrimSpace(claimID))
	})
}

func (s *CachedClaimOutcomeStore) List(ctx context.Context, filter core.ClaimOutcomeFilter) ([]core.ClaimOutcome, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached claim outcome store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedClaimOutcomeStore) Record(ctx context.Context, outcome core.ClaimOutcome) (core.ClaimOutcome, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: cached claim outcome store is not configured")
	}
	saved, err := s.base.Record(ctx, outcome)
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	cacheKey, err := ClaimOutcomeCacheKey(saved.ClaimID)
	if err != nil {
		return saved, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return saved, err
	}
	return saved, nil
}
