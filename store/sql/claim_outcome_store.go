package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-orgcreator/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultOutcomeListLimit = 50

// ClaimOutcomeStore is the bun-backed outcome ledger.
type ClaimOutcomeStore struct {
	db   *bun.DB
	repo repository.Repository[*claimOutcomeRecord]
	now  func() time.Time
}

func NewClaimOutcomeStore(db *bun.DB) (*ClaimOutcomeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*claimOutcomeRecord](db, claimOutcomeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid claim outcome repository wiring: %w", err)
		}
	}
	return &ClaimOutcomeStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record upserts the outcome row for the claim. A claim that was already
// recorded keeps its id and creation time and gains one attempt.
func (s *ClaimOutcomeStore) Record(ctx context.Context, outcome core.ClaimOutcome) (core.ClaimOutcome, error) {
	if s == nil || s.db == nil {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: claim outcome store is not configured")
	}
	claimID := strings.TrimSpace(outcome.ClaimID)
	if claimID == "" {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: claim id is required")
	}
	outcome.ClaimID = claimID

	record, err := s.recordOnce(ctx, outcome)
	if err != nil && !errors.Is(err, context.Canceled) {
		// a concurrent first insert for the same claim loses on the unique
		// index; the second pass finds the row and updates it
		record, err = s.recordOnce(ctx, outcome)
	}
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	return record.toDomain(), nil
}

func (s *ClaimOutcomeStore) recordOnce(ctx context.Context, outcome core.ClaimOutcome) (*claimOutcomeRecord, error) {
	var saved *claimOutcomeRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		record, err := findClaimOutcomeTx(ctx, tx, outcome.ClaimID)
		if err != nil {
			return err
		}
		if record == nil {
			record = &claimOutcomeRecord{
				ID:        uuid.NewString(),
				ClaimID:   outcome.ClaimID,
				Attempts:  1,
				CreatedAt: now,
			}
			record.apply(outcome, now)
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
			saved = record
			return nil
		}
		record.apply(outcome, now)
		record.Attempts++
		if _, err := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		saved = record
		return nil
	})
	return saved, err
}

func (s *ClaimOutcomeStore) Get(ctx context.Context, claimID string) (core.ClaimOutcome, error) {
	if s == nil || s.repo == nil {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: claim outcome store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("claim_id", "=", claimID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	if len(records) == 0 {
		return core.ClaimOutcome{}, fmt.Errorf("%w: claim %q", core.ErrClaimOutcomeNotFound, claimID)
	}
	return records[0].toDomain(), nil
}

func (s *ClaimOutcomeStore) List(ctx context.Context, filter core.ClaimOutcomeFilter) ([]core.ClaimOutcome, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: claim outcome store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOutcomeListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if outcome := strings.TrimSpace(string(filter.Outcome)); outcome != "" {
		selectors = append(selectors, repository.SelectBy("outcome", "=", outcome))
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		selectors = append(selectors, repository.SelectBy("source", "=", source))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.ClaimOutcome, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func findClaimOutcomeTx(ctx context.Context, tx bun.Tx, claimID string) (*claimOutcomeRecord, error) {
	record := &claimOutcomeRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
