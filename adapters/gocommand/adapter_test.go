package gocommand

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-orgcreator/command"
	"github.com/goliatone/go-orgcreator/core"
)

type emptyTypeMessage struct{}

func (emptyTypeMessage) Type() string { return "" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(command.HandleClaimMessage{ClaimID: "claim-1"}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(emptyTypeMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(command.HandleClaimMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegisterOrgCreatorRoutesClaimsAndQueries(t *testing.T) {
	service := &stubClaimService{outcome: core.OutcomeRejected}
	reader := &stubOutcomeReader{outcome: core.ClaimOutcome{ClaimID: "claim-1", Outcome: core.OutcomeRejected}}
	subs, err := RegisterOrgCreator(NewRegistryAdapter(gocmd.NewRegistry()), service, reader)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 3 {
		t.Fatalf("expected command plus two query subscriptions, got %d", len(subs))
	}

	outcome, err := HandleClaimAndCollect(context.Background(), "claim-1", core.SourceEvent)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome != core.OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %q", outcome)
	}
	if service.calls != 1 || service.source != core.SourceEvent {
		t.Fatalf("unexpected service calls: %d %q", service.calls, service.source)
	}

	recorded, err := GetClaimOutcome(context.Background(), "claim-1")
	if err != nil {
		t.Fatalf("get outcome: %v", err)
	}
	if recorded.Outcome != core.OutcomeRejected {
		t.Fatalf("unexpected recorded outcome: %+v", recorded)
	}
	if _, err := ListClaimOutcomes(context.Background(), core.ClaimOutcomeFilter{Limit: 10}); err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if reader.lastLimit != 10 {
		t.Fatalf("expected filter to reach reader, got limit %d", reader.lastLimit)
	}
}

func TestDispatchHandleClaimRejectsMissingClaimID(t *testing.T) {
	if err := DispatchHandleClaim(context.Background(), " ", core.SourcePolling); err == nil {
		t.Fatalf("expected missing claim id to fail before dispatch")
	}
}

func TestDispatchHandleClaimPropagatesServiceError(t *testing.T) {
	service := &stubClaimService{err: errors.New("identity unavailable")}
	subs, err := RegisterOrgCreator(NewRegistryAdapter(nil), service, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer subs.Unsubscribe()

	if err := DispatchHandleClaim(context.Background(), "claim-2", core.SourcePolling); err == nil {
		t.Fatalf("expected service error to propagate")
	}
}

func TestRegisterOrgCreatorRequiresServiceAndRegistry(t *testing.T) {
	if _, err := RegisterOrgCreator(NewRegistryAdapter(nil), nil, nil); err == nil {
		t.Fatalf("expected missing service to fail")
	}
	if _, err := RegisterOrgCreator(&RegistryAdapter{}, &stubClaimService{}, nil); err == nil {
		t.Fatalf("expected missing registry to fail")
	}
}

type stubClaimService struct {
	outcome core.Outcome
	err     error
	calls   int
	source  string
}

func (s *stubClaimService) HandleFrom(_ context.Context, _ string, source string) (core.Outcome, error) {
	s.calls++
	s.source = source
	return s.outcome, s.err
}

type stubOutcomeReader struct {
	outcome   core.ClaimOutcome
	lastLimit int
}

func (s *stubOutcomeReader) Get(context.Context, string) (core.ClaimOutcome, error) {
	return s.outcome, nil
}

func (s *stubOutcomeReader) List(_ context.Context, filter core.ClaimOutcomeFilter) ([]core.ClaimOutcome, error) {
	s.lastLimit = filter.Limit
	return []core.ClaimOutcome{s.outcome}, nil
}
