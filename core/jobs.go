package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	HandleClaimJobID = "orgcreator.claim.handle"

	jobParamClaimID    = "claim_id"
	jobParamSource     = "source"
	jobParamLeaseToken = "lease_token"
)

// ErrJobAlreadyQueued is returned by a queue that drops a message because one
// with the same idempotency key is still pending.
var ErrJobAlreadyQueued = errors.New("core: job already queued")

// NewHandleClaimJob builds the queue message that asks a worker to handle one
// claim. The claim id doubles as the idempotency key so a claim is queued at
// most once while pending.
func NewHandleClaimJob(claimID string, source string) *JobExecutionMessage {
	claimID = strings.TrimSpace(claimID)
	return &JobExecutionMessage{
		JobID: HandleClaimJobID,
		Parameters: map[string]any{
			jobParamClaimID: claimID,
			jobParamSource:  strings.TrimSpace(source),
		},
		IdempotencyKey: "claim:" + claimID,
		DedupPolicy:    "drop",
	}
}

// HandleClaimJobParams extracts the claim id and source from a queued job.
func HandleClaimJobParams(msg *JobExecutionMessage) (claimID string, source string, err error) {
	if msg == nil {
		return "", "", fmt.Errorf("core: job message is required")
	}
	if msg.JobID != HandleClaimJobID {
		return "", "", fmt.Errorf("core: unsupported job id %q", msg.JobID)
	}
	claimID = strings.TrimSpace(fmt.Sprint(msg.Parameters[jobParamClaimID]))
	if claimID == "" || claimID == "<nil>" {
		return "", "", fmt.Errorf("core: job claim_id is required")
	}
	source = strings.TrimSpace(fmt.Sprint(msg.Parameters[jobParamSource]))
	if source == "<nil>" {
		source = ""
	}
	return claimID, source, nil
}

// WithLeaseToken attaches the ingress lease that the worker settles once the
// claim job finishes.
func WithLeaseToken(msg *JobExecutionMessage, token string) *JobExecutionMessage {
	token = strings.TrimSpace(token)
	if msg == nil || token == "" {
		return msg
	}
	if msg.Parameters == nil {
		msg.Parameters = map[string]any{}
	}
	msg.Parameters[jobParamLeaseToken] = token
	return msg
}

// LeaseToken returns the ingress lease carried by a job, if any.
func LeaseToken(msg *JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	token, _ := msg.Parameters[jobParamLeaseToken].(string)
	return strings.TrimSpace(token)
}
