package inbound

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
)

// DispatchResult describes what happened to one notification.
type DispatchResult struct {
	ClaimID string
	Queued  bool
	Deduped bool
}

// Dispatcher queues handle jobs for claim request notifications and polled
// claim ids. Event notifications pass through the claim store first and the
// queued job carries the lease token; LeaseHook settles it when the worker
// is done.
type Dispatcher struct {
	Store    core.IdempotencyClaimStore
	Enqueuer core.JobEnqueuer
	KeyTTL   time.Duration
	Logger   core.Logger
}

func NewDispatcher(store core.IdempotencyClaimStore, enqueuer core.JobEnqueuer) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Enqueuer: enqueuer,
		KeyTTL:   DefaultLease,
		Logger:   glog.Nop(),
	}
}

// Dispatch validates an event notification and queues its claim.
func (d *Dispatcher) Dispatch(ctx context.Context, event ClaimRequestEvent) (DispatchResult, error) {
	if d == nil || d.Enqueuer == nil {
		return DispatchResult{}, inboundInternal("inbound: dispatcher is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := event.Validate(); err != nil {
		return DispatchResult{}, err
	}
	claimID := strings.TrimSpace(event.ID)
	result := DispatchResult{ClaimID: claimID}

	token := ""
	if d.Store != nil {
		var accepted bool
		var err error
		token, accepted, err = d.Store.Claim(ctx, "claim:"+claimID, d.keyTTL())
		if err != nil {
			return result, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: idempotency claim failed",
				http.StatusInternalServerError,
				core.ServiceErrorOperationFailed,
				map[string]any{"claim_id": claimID},
			)
		}
		if !accepted {
			result.Deduped = true
			d.logger().Debug("claim notification deduplicated", "claim_id", claimID)
			return result, nil
		}
	}

	msg := core.WithLeaseToken(core.NewHandleClaimJob(claimID, core.SourceEvent), token)
	queued, err := d.enqueue(ctx, msg)
	if err != nil || !queued {
		// the lease is released right away: either nothing was queued or a
		// pending job for the claim already owns the work
		if releaseErr := d.release(ctx, token, err); releaseErr != nil {
			return result, errors.Join(err, releaseErr)
		}
		if err != nil {
			return result, err
		}
		result.Deduped = true
		d.logger().Debug("claim already queued", "claim_id", claimID)
		return result, nil
	}
	result.Queued = true
	return result, nil
}

// Submit queues a claim id discovered by polling. It skips the claim store so
// a claim whose earlier attempt failed is retried on the next cycle. Ids
// that are already pending are dropped without error.
func (d *Dispatcher) Submit(ctx context.Context, claimID string, source string) error {
	if d == nil || d.Enqueuer == nil {
		return inboundInternal("inbound: dispatcher is not configured", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := d.enqueue(ctx, core.NewHandleClaimJob(claimID, source))
	return err
}

// enqueue reports false without error when the queue already holds a job
// for the claim.
func (d *Dispatcher) enqueue(ctx context.Context, msg *core.JobExecutionMessage) (bool, error) {
	err := d.Enqueuer.Enqueue(ctx, msg)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, core.ErrJobAlreadyQueued) {
		return false, nil
	}
	claimID, source, _ := core.HandleClaimJobParams(msg)
	return false, inboundWrapError(
		err,
		goerrors.CategoryOperation,
		"inbound: enqueue handle claim job",
		http.StatusServiceUnavailable,
		core.ServiceErrorOperationFailed,
		map[string]any{"claim_id": claimID, "source": source},
	)
}

func (d *Dispatcher) release(ctx context.Context, token string, cause error) error {
	if d.Store == nil || token == "" {
		return nil
	}
	if err := d.Store.Fail(ctx, token, cause, time.Time{}); err != nil {
		return inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: release idempotency claim",
			http.StatusInternalServerError,
			core.ServiceErrorInternal,
			nil,
		)
	}
	return nil
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return DefaultLease
}

func (d *Dispatcher) logger() core.Logger {
	if d == nil || d.Logger == nil {
		return glog.Nop()
	}
	return d.Logger
}
