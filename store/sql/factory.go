package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-orgcreator/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the ledger stores over one bun database.
type RepositoryFactory struct {
	db           *bun.DB
	outcomeStore *ClaimOutcomeStore
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return newRepositoryFactory(client)
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	return newRepositoryFactory(db)
}

func newRepositoryFactory(candidate any) (*RepositoryFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	outcomeStore, err := NewClaimOutcomeStore(db)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, outcomeStore: outcomeStore}, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ClaimOutcomeStore() *ClaimOutcomeStore {
	if f == nil {
		return nil
	}
	return f.outcomeStore
}

// OutcomeStore returns the ledger, wrapped in a read-through cache when
// cacheService is set.
func (f *RepositoryFactory) OutcomeStore(cacheService repositorycache.CacheService) (OutcomeStore, error) {
	if f == nil || f.outcomeStore == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is not configured")
	}
	if cacheService == nil {
		return f.outcomeStore, nil
	}
	return NewCachedClaimOutcomeStore(f.outcomeStore, cacheService)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var (
	_ OutcomeStore              = (*ClaimOutcomeStore)(nil)
	_ OutcomeStore              = (*CachedClaimOutcomeStore)(nil)
	_ core.ClaimOutcomeRecorder = (*CachedClaimOutcomeStore)(nil)
)
