package inbound

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-orgcreator/core"
)

func testEvent(id string) ClaimRequestEvent {
	return ClaimRequestEvent{
		ID:                id,
		Token:             "jwt",
		ClaimIssuer:       []string{"did:ethr:issuer"},
		Requester:         "did:ethr:0xabc",
		RegistrationTypes: []string{"RegistrationTypes::OffChain"},
	}
}

func TestDispatcher_QueuesOnceWithinLease(t *testing.T) {
	store := NewInMemoryClaimStore()
	store.Now = func() time.Time { return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC) }
	queue := &recordingEnqueuer{}
	dispatcher := NewDispatcher(store, queue)

	first, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("dispatch first: %v", err)
	}
	if !first.Queued || first.Deduped {
		t.Fatalf("expected first notification queued, got %#v", first)
	}

	second, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("dispatch duplicate: %v", err)
	}
	if !second.Deduped || second.Queued {
		t.Fatalf("expected duplicate deduped, got %#v", second)
	}
	if len(queue.messages) != 1 {
		t.Fatalf("expected one queued job, got %d", len(queue.messages))
	}
	msg := queue.messages[0]
	claimID, source, err := core.HandleClaimJobParams(msg)
	if err != nil || claimID != "c1" || source != core.SourceEvent {
		t.Fatalf("unexpected job message: %#v (%v)", msg, err)
	}
}

func TestDispatcher_LeaseExpiryAllowsRequeue(t *testing.T) {
	store := NewInMemoryClaimStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	queue := &recordingEnqueuer{}
	dispatcher := NewDispatcher(store, queue)
	dispatcher.KeyTTL = time.Minute

	if _, err := dispatcher.Dispatch(context.Background(), testEvent("c1")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	now = now.Add(2 * time.Minute)
	result, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("dispatch after lease: %v", err)
	}
	if !result.Queued {
		t.Fatalf("expected requeue after lease expiry")
	}
	if len(queue.messages) != 2 {
		t.Fatalf("expected two queued jobs, got %d", len(queue.messages))
	}
}

func TestDispatcher_EnqueueFailureKeepsClaimRetryable(t *testing.T) {
	store := NewInMemoryClaimStore()
	queue := &recordingEnqueuer{err: errors.New("queue closed")}
	dispatcher := NewDispatcher(store, queue)

	_, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err == nil {
		t.Fatalf("expected enqueue failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ServiceErrorOperationFailed {
		t.Fatalf("expected operation failed envelope, got %v", err)
	}

	queue.err = nil
	result, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("retry dispatch: %v", err)
	}
	if !result.Queued {
		t.Fatalf("expected retry to queue after failure")
	}
}

func TestDispatcher_FailedHandleReopensClaim(t *testing.T) {
	store := NewInMemoryClaimStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	queue := &recordingEnqueuer{}
	dispatcher := NewDispatcher(store, queue)
	hook := LeaseHook{Store: store}

	if _, err := dispatcher.Dispatch(context.Background(), testEvent("c1")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if core.LeaseToken(queue.messages[0]) == "" {
		t.Fatalf("expected queued job to carry the lease token")
	}
	hook.OnFailure(context.Background(), core.JobWorkerEvent{
		Message: queue.messages[0],
		Err:     errors.New("identity unavailable"),
	})

	now = now.Add(time.Minute)
	result, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if !result.Queued || result.Deduped {
		t.Fatalf("expected re-delivery after a failed handle to queue, got %#v", result)
	}
	if len(queue.messages) != 2 {
		t.Fatalf("expected two queued jobs, got %d", len(queue.messages))
	}
}

func TestDispatcher_HandledClaimSuppressesRepeats(t *testing.T) {
	store := NewInMemoryClaimStore()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	queue := &recordingEnqueuer{}
	dispatcher := NewDispatcher(store, queue)

	if _, err := dispatcher.Dispatch(context.Background(), testEvent("c1")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	LeaseHook{Store: store}.OnSuccess(context.Background(), core.JobWorkerEvent{Message: queue.messages[0]})

	now = now.Add(time.Minute)
	result, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if !result.Deduped {
		t.Fatalf("expected handled claim to stay deduplicated within the lease, got %#v", result)
	}
}

func TestDispatcher_AlreadyQueuedClaimReleasesLease(t *testing.T) {
	store := NewInMemoryClaimStore()
	queue := &recordingEnqueuer{err: core.ErrJobAlreadyQueued}
	dispatcher := NewDispatcher(store, queue)

	result, err := dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil {
		t.Fatalf("expected pending duplicate to be absorbed, got %v", err)
	}
	if !result.Deduped || result.Queued {
		t.Fatalf("expected deduped result, got %#v", result)
	}

	queue.err = nil
	result, err = dispatcher.Dispatch(context.Background(), testEvent("c1"))
	if err != nil || !result.Queued {
		t.Fatalf("expected later notification to queue, got %#v (%v)", result, err)
	}
	if err := dispatcher.Submit(context.Background(), "c2", core.SourcePolling); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestLeaseHook_IgnoresJobsWithoutLease(t *testing.T) {
	store := &countingClaimStore{}
	hook := LeaseHook{Store: store}
	msg := core.NewHandleClaimJob("c1", core.SourcePolling)
	hook.OnSuccess(context.Background(), core.JobWorkerEvent{Message: msg})
	hook.OnFailure(context.Background(), core.JobWorkerEvent{Message: msg, Err: errors.New("boom")})
	hook.OnRetry(context.Background(), core.JobWorkerEvent{Message: core.WithLeaseToken(msg, "t1")})
	if store.completes != 0 || store.fails != 0 {
		t.Fatalf("expected no settlement, got %d completes %d fails", store.completes, store.fails)
	}

	hook.RetryDelay = 30 * time.Second
	hook.Now = func() time.Time { return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC) }
	hook.OnFailure(context.Background(), core.JobWorkerEvent{Message: core.WithLeaseToken(msg, "t1"), Err: errors.New("boom")})
	if store.fails != 1 || !store.retryAt.Equal(time.Date(2026, 2, 13, 12, 0, 30, 0, time.UTC)) {
		t.Fatalf("expected one fail with delayed retry, got %d at %s", store.fails, store.retryAt)
	}
}

func TestDispatcher_RejectsInvalidEvents(t *testing.T) {
	dispatcher := NewDispatcher(NewInMemoryClaimStore(), &recordingEnqueuer{})
	event := testEvent("")
	event.Token = ""
	_, err := dispatcher.Dispatch(context.Background(), event)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Code != http.StatusBadRequest || rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected bad input envelope, got %d/%q", rich.Code, rich.TextCode)
	}
	fields, _ := rich.Metadata["fields"].([]string)
	if len(fields) != 2 {
		t.Fatalf("expected id and token to be reported missing, got %#v", rich.Metadata["fields"])
	}
}

func TestDispatcher_SubmitBypassesClaimStore(t *testing.T) {
	store := NewInMemoryClaimStore()
	queue := &recordingEnqueuer{}
	dispatcher := NewDispatcher(store, queue)

	if _, err := dispatcher.Dispatch(context.Background(), testEvent("c1")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := dispatcher.Submit(context.Background(), "c1", core.SourcePolling); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(queue.messages) != 2 {
		t.Fatalf("expected polled submit to reach the queue, got %d messages", len(queue.messages))
	}
	if err := dispatcher.Submit(context.Background(), " ", core.SourcePolling); err == nil {
		t.Fatalf("expected empty claim id error")
	}
}

func TestDecodeClaimRequestEvent(t *testing.T) {
	event, err := DecodeClaimRequestEvent([]byte(`{
		"id": "c1",
		"token": "jwt",
		"claimIssuer": ["did:ethr:issuer"],
		"requester": "did:ethr:0xabc",
		"registrationTypes": [],
		"subjectAgreement": "agreement"
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.SubjectAgreement == nil || *event.SubjectAgreement != "agreement" {
		t.Fatalf("expected subject agreement, got %#v", event.SubjectAgreement)
	}

	if _, err := DecodeClaimRequestEvent([]byte(`{
		"id": "c1",
		"token": "jwt",
		"claimIssuer": [],
		"requester": "did:ethr:0xabc",
		"registrationTypes": [],
		"acceptedBy": "did:ethr:issuer"
	}`)); err == nil {
		t.Fatalf("expected extra properties to be rejected")
	}
	if _, err := DecodeClaimRequestEvent([]byte(`{"id": 5}`)); err == nil {
		t.Fatalf("expected type mismatch error")
	}
	if _, err := DecodeClaimRequestEvent([]byte(`{"id": "c1", "token": "jwt", "requester": "did"}`)); err == nil {
		t.Fatalf("expected missing array fields error")
	}
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	err      error
	messages []*core.JobExecutionMessage
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

type countingClaimStore struct {
	completes int
	fails     int
	retryAt   time.Time
}

func (s *countingClaimStore) Claim(context.Context, string, time.Duration) (string, bool, error) {
	return "t1", true, nil
}

func (s *countingClaimStore) Complete(context.Context, string) error {
	s.completes++
	return nil
}

func (s *countingClaimStore) Fail(_ context.Context, _ string, _ error, retryAt time.Time) error {
	s.fails++
	s.retryAt = retryAt
	return nil
}
