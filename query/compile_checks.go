package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-orgcreator/core"
)

var (
	_ gocmd.Querier[GetClaimOutcomeMessage, core.ClaimOutcome]     = (*GetClaimOutcomeQuery)(nil)
	_ gocmd.Querier[ListClaimOutcomesMessage, []core.ClaimOutcome] = (*ListClaimOutcomesQuery)(nil)
)
