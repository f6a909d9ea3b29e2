package inbound

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
)

// LeaseHook settles the claim store lease of event-sourced jobs once the
// worker has finished with them. A handled claim completes its lease; a
// failed one becomes retry-ready after RetryDelay so a re-delivered
// notification is queued again. Jobs without a lease token are ignored.
type LeaseHook struct {
	Store      core.IdempotencyClaimStore
	RetryDelay time.Duration
	Logger     core.Logger
	Now        func() time.Time
}

func (LeaseHook) OnStart(context.Context, core.JobWorkerEvent) {}

// OnRetry keeps the lease in flight; the job is still queued.
func (LeaseHook) OnRetry(context.Context, core.JobWorkerEvent) {}

func (h LeaseHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	token := core.LeaseToken(event.Message)
	if h.Store == nil || token == "" {
		return
	}
	if err := h.Store.Complete(ctx, token); err != nil {
		h.logger().Warn("complete claim lease failed", "error", err.Error())
	}
}

func (h LeaseHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	token := core.LeaseToken(event.Message)
	if h.Store == nil || token == "" {
		return
	}
	var retryAt time.Time
	if h.RetryDelay > 0 {
		retryAt = h.now().Add(h.RetryDelay)
	}
	if err := h.Store.Fail(ctx, token, event.Err, retryAt); err != nil {
		h.logger().Warn("release claim lease failed", "error", err.Error())
	}
}

func (h LeaseHook) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h LeaseHook) logger() core.Logger {
	return glog.Ensure(h.Logger)
}

var _ core.JobWorkerHook = LeaseHook{}
