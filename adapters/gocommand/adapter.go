package gocommand

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-orgcreator/command"
	"github.com/goliatone/go-orgcreator/core"
	"github.com/goliatone/go-orgcreator/query"
)

// ValidateMessageContract requires a non-empty Type() and a passing
// Validate() when the message has one.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) Register(handler any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd gocmd.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return subscribeRegistered(adapter, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	})
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry gocmd.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return subscribeRegistered(adapter, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	})
}

func subscribeRegistered(
	adapter *RegistryAdapter,
	handler any,
	subscribe func() commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	subscription := subscribe()
	if err := adapter.Register(handler); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Subscriptions holds every dispatcher subscription made by RegisterOrgCreator.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterOrgCreator wires the claim command and the outcome queries onto the
// global dispatcher. reader may be nil when no outcome ledger is configured.
func RegisterOrgCreator(
	adapter *RegistryAdapter,
	service command.ClaimService,
	reader core.ClaimOutcomeReader,
) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: claim service is required")
	}
	var subs Subscriptions
	sub, err := RegisterAndSubscribe[command.HandleClaimMessage](adapter, command.NewHandleClaimCommand(service))
	if err != nil {
		return nil, err
	}
	subs = append(subs, sub)

	if reader != nil {
		getSub, err := RegisterAndSubscribeQuery[query.GetClaimOutcomeMessage, core.ClaimOutcome](
			adapter, query.NewGetClaimOutcomeQuery(reader),
		)
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, getSub)

		listSub, err := RegisterAndSubscribeQuery[query.ListClaimOutcomesMessage, []core.ClaimOutcome](
			adapter, query.NewListClaimOutcomesQuery(reader),
		)
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, listSub)
	}
	return subs, nil
}

// DispatchHandleClaim sends a HandleClaimMessage through the dispatcher.
func DispatchHandleClaim(ctx context.Context, claimID string, source string) error {
	msg := command.HandleClaimMessage{ClaimID: claimID, Source: source}
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return Dispatch(ctx, msg)
}

// HandleClaimAndCollect dispatches a claim and returns the outcome stored by
// the command.
func HandleClaimAndCollect(ctx context.Context, claimID string, source string) (core.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	collector := gocmd.NewResult[command.HandleClaimResult]()
	if err := DispatchHandleClaim(gocmd.ContextWithResult(ctx, collector), claimID, source); err != nil {
		return "", err
	}
	result, ok := collector.Load()
	if !ok {
		return "", fmt.Errorf("gocommand: handle claim produced no result")
	}
	return result.Outcome, nil
}

func GetClaimOutcome(ctx context.Context, claimID string) (core.ClaimOutcome, error) {
	return Query[query.GetClaimOutcomeMessage, core.ClaimOutcome](ctx, query.GetClaimOutcomeMessage{ClaimID: claimID})
}

func ListClaimOutcomes(ctx context.Context, filter core.ClaimOutcomeFilter) ([]core.ClaimOutcome, error) {
	return Query[query.ListClaimOutcomesMessage, []core.ClaimOutcome](ctx, query.ListClaimOutcomesMessage{Filter: filter})
}
