package orgcreator

import (
	"fmt"

	orgcommand "github.com/goliatone/go-orgcreator/command"
	"github.com/goliatone/go-orgcreator/core"
	orgquery "github.com/goliatone/go-orgcreator/query"
)

type Commands struct {
	HandleClaim *orgcommand.HandleClaimCommand
}

// Queries is empty when no outcome reader could be resolved.
type Queries struct {
	GetClaimOutcome   *orgquery.GetClaimOutcomeQuery
	ListClaimOutcomes *orgquery.ListClaimOutcomesQuery
}

type Facade struct {
	service  orgcommand.ClaimService
	reader   core.ClaimOutcomeReader
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	outcomeReader core.ClaimOutcomeReader
}

func WithOutcomeReader(reader core.ClaimOutcomeReader) FacadeOption {
	return func(options *facadeOptions) {
		options.outcomeReader = reader
	}
}

func NewFacade(service orgcommand.ClaimService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("orgcreator: claim service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.outcomeReader
	if reader == nil {
		reader = resolveOutcomeReader(service)
	}

	facade := &Facade{service: service, reader: reader}
	facade.commands = Commands{
		HandleClaim: orgcommand.NewHandleClaimCommand(service),
	}
	if reader != nil {
		facade.queries = Queries{
			GetClaimOutcome:   orgquery.NewGetClaimOutcomeQuery(reader),
			ListClaimOutcomes: orgquery.NewListClaimOutcomesQuery(reader),
		}
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() orgcommand.ClaimService {
	if f == nil {
		return nil
	}
	return f.service
}

// OutcomeReader is the reader backing Queries, or nil.
func (f *Facade) OutcomeReader() core.ClaimOutcomeReader {
	if f == nil {
		return nil
	}
	return f.reader
}

// resolveOutcomeReader uses the service's outcome recorder when that
// recorder can also read the ledger back.
func resolveOutcomeReader(service orgcommand.ClaimService) core.ClaimOutcomeReader {
	if reader, ok := service.(core.ClaimOutcomeReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	reader, ok := provider.Dependencies().OutcomeRecorder.(core.ClaimOutcomeReader)
	if !ok {
		return nil
	}
	return reader
}
