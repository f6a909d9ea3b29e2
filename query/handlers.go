package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-orgcreator/core"
)

const DefaultListLimit = 50

type GetClaimOutcomeQuery struct {
	reader core.ClaimOutcomeReader
}

func NewGetClaimOutcomeQuery(reader core.ClaimOutcomeReader) *GetClaimOutcomeQuery {
	return &GetClaimOutcomeQuery{reader: reader}
}

// Query returns the latest outcome recorded for a claim.
func (q *GetClaimOutcomeQuery) Query(ctx context.Context, msg GetClaimOutcomeMessage) (core.ClaimOutcome, error) {
	if q == nil || q.reader == nil {
		return core.ClaimOutcome{}, queryDependencyError("query: claim outcome reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ClaimOutcome{}, err
	}
	return q.reader.Get(ctx, strings.TrimSpace(msg.ClaimID))
}

type ListClaimOutcomesQuery struct {
	reader core.ClaimOutcomeReader
}

func NewListClaimOutcomesQuery(reader core.ClaimOutcomeReader) *ListClaimOutcomesQuery {
	return &ListClaimOutcomesQuery{reader: reader}
}

func (q *ListClaimOutcomesQuery) Query(ctx context.Context, msg ListClaimOutcomesMessage) ([]core.ClaimOutcome, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: claim outcome reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	filter := msg.Filter
	filter.Source = strings.TrimSpace(filter.Source)
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	return q.reader.List(ctx, filter)
}
