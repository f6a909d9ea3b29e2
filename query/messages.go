package query

import (
	"strings"

	"github.com/goliatone/go-orgcreator/core"
)

const (
	TypeGetClaimOutcome   = "orgcreator.query.claim_outcome.get"
	TypeListClaimOutcomes = "orgcreator.query.claim_outcome.list"

	MaxListLimit = 500
)

type GetClaimOutcomeMessage struct {
	ClaimID string
}

func (GetClaimOutcomeMessage) Type() string { return TypeGetClaimOutcome }

func (m GetClaimOutcomeMessage) Validate() error {
	if strings.TrimSpace(m.ClaimID) == "" {
		return queryValidationError("claim_id", "claim id is required")
	}
	return nil
}

type ListClaimOutcomesMessage struct {
	Filter core.ClaimOutcomeFilter
}

func (ListClaimOutcomesMessage) Type() string { return TypeListClaimOutcomes }

func (m ListClaimOutcomesMessage) Validate() error {
	if m.Filter.Limit < 0 || m.Filter.Limit > MaxListLimit {
		return queryValidationError("limit", "limit must be between 0 and 500")
	}
	switch m.Filter.Outcome {
	case "", core.OutcomeAccepted, core.OutcomeRejected, core.OutcomeAborted, core.OutcomeFailed:
	default:
		return queryValidationError("outcome", "unknown outcome "+string(m.Filter.Outcome))
	}
	return nil
}
