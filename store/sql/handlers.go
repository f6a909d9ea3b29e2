package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func claimOutcomeHandlers() repository.ModelHandlers[*claimOutcomeRecord] {
	return repository.ModelHandlers[*claimOutcomeRecord]{
		NewRecord: func() *claimOutcomeRecord {
			return &claimOutcomeRecord{}
		},
		GetID: func(record *claimOutcomeRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *claimOutcomeRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "claim_id"
		},
		GetIdentifierValue: func(record *claimOutcomeRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ClaimID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
