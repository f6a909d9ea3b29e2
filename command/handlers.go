package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-orgcreator/core"
)

type ClaimService interface {
	HandleFrom(ctx context.Context, claimID string, source string) (core.Outcome, error)
}

// HandleClaimResult is stored in the go-command result collector when the
// caller attached one to ctx.
type HandleClaimResult struct {
	ClaimID string
	Source  string
	Outcome core.Outcome
}

type HandleClaimCommand struct {
	service ClaimService
}

func NewHandleClaimCommand(service ClaimService) *HandleClaimCommand {
	return &HandleClaimCommand{service: service}
}

func (c *HandleClaimCommand) Execute(ctx context.Context, msg HandleClaimMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: claim service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	source := strings.TrimSpace(msg.Source)
	if source == "" {
		source = core.SourceManual
	}
	claimID := strings.TrimSpace(msg.ClaimID)
	outcome, err := c.service.HandleFrom(ctx, claimID, source)
	if err != nil {
		return err
	}
	storeResult(ctx, HandleClaimResult{ClaimID: claimID, Source: source, Outcome: outcome})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
