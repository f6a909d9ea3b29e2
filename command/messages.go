package command

import "strings"

const TypeHandleClaim = "orgcreator.command.claim.handle"

// HandleClaimMessage asks the orchestrator to handle one claim request.
type HandleClaimMessage struct {
	ClaimID string
	// Source tags the outcome record. Empty means a manual run.
	Source string
}

func (HandleClaimMessage) Type() string { return TypeHandleClaim }

func (m HandleClaimMessage) Validate() error {
	if strings.TrimSpace(m.ClaimID) == "" {
		return commandValidationError("claim_id", "claim id is required")
	}
	return nil
}
