package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// IdentityService is the narrow facade over the external identity and ledger
// service. Implementations own the timeout policy for every call.
type IdentityService interface {
	GetClaimByID(ctx context.Context, id string) (Claim, error)
	GetOrganizationsOwnedBy(ctx context.Context, owner string) ([]OrganizationSummary, error)
	CreateOrganization(ctx context.Context, req OrganizationCreationRequest) error
	ChangeOrgOwnership(ctx context.Context, req ChangeOwnershipRequest) error
	IssueClaimRequest(ctx context.Context, req IssueClaimRequest) error
	RejectClaimRequest(ctx context.Context, req RejectClaimRequest) error
	ListClaimsByIssuer(ctx context.Context, req ListClaimsRequest) ([]Claim, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type ClaimTokenDecoder interface {
	Decode(token string) (ClaimToken, error)
}

type ClaimOutcomeRecorder interface {
	Record(ctx context.Context, outcome ClaimOutcome) (ClaimOutcome, error)
}

type ClaimOutcomeReader interface {
	Get(ctx context.Context, claimID string) (ClaimOutcome, error)
	List(ctx context.Context, filter ClaimOutcomeFilter) ([]ClaimOutcome, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ErrorReporter forwards infrastructure failures to an operator-facing sink.
type ErrorReporter interface {
	Report(ctx context.Context, err error, fields map[string]any)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}
