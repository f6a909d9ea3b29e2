package sqlstore

import (
	"time"

	"github.com/goliatone/go-orgcreator/core"
	"github.com/uptrace/bun"
)

// claimOutcomeRecord holds the latest outcome per claim. Repeat handles of the
// same claim update the row and bump attempts.
type claimOutcomeRecord struct {
	bun.BaseModel `bun:"table:org_claim_outcomes,alias:oco"`

	ID        string    `bun:"id,pk"`
	ClaimID   string    `bun:"claim_id,notnull"`
	Outcome   string    `bun:"outcome,notnull"`
	Decision  string    `bun:"decision,notnull"`
	Reason    string    `bun:"reason,notnull"`
	OrgName   string    `bun:"org_name,notnull"`
	Owner     string    `bun:"owner,notnull"`
	Source    string    `bun:"source,notnull"`
	Error     string    `bun:"error,notnull"`
	Attempts  int       `bun:"attempts,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *claimOutcomeRecord) toDomain() core.ClaimOutcome {
	if r == nil {
		return core.ClaimOutcome{}
	}
	return core.ClaimOutcome{
		ID:        r.ID,
		ClaimID:   r.ClaimID,
		Outcome:   core.Outcome(r.Outcome),
		Decision:  core.DecisionKind(r.Decision),
		Reason:    r.Reason,
		OrgName:   r.OrgName,
		Owner:     r.Owner,
		Source:    r.Source,
		Error:     r.Error,
		Attempts:  r.Attempts,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// apply copies the mutable fields of an outcome onto the record.
func (r *claimOutcomeRecord) apply(outcome core.ClaimOutcome, now time.Time) {
	r.Outcome = string(outcome.Outcome)
	r.Decision = string(outcome.Decision)
	r.Reason = outcome.Reason
	r.OrgName = outcome.OrgName
	r.Owner = outcome.Owner
	r.Source = outcome.Source
	r.Error = outcome.Error
	r.UpdatedAt = now
}
