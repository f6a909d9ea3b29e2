package worker

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
)

// ClaimFunc handles one claim id taken off the queue.
type ClaimFunc func(ctx context.Context, claimID string, source string) error

// ClaimHandler adapts a ClaimFunc to queued handle-claim jobs. Jobs of any
// other kind fail without being handled.
func ClaimHandler(fn ClaimFunc) Handler {
	return func(ctx context.Context, msg *core.JobExecutionMessage) error {
		if fn == nil {
			return fmt.Errorf("worker: claim handler is not configured")
		}
		claimID, source, err := core.HandleClaimJobParams(msg)
		if err != nil {
			return err
		}
		return fn(ctx, claimID, source)
	}
}

// LoggingHook logs worker lifecycle events and reports terminal failures.
type LoggingHook struct {
	Logger   core.Logger
	Reporter core.ErrorReporter
}

func (h LoggingHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Debug("claim job started", eventFields(event)...)
}

func (h LoggingHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Debug("claim job done", eventFields(event)...)
}

func (h LoggingHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Warn("claim job will retry", eventFields(event)...)
}

func (h LoggingHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Error("claim job failed", eventFields(event)...)
	if h.Reporter != nil && event.Err != nil {
		claimID, source, _ := core.HandleClaimJobParams(event.Message)
		h.Reporter.Report(ctx, event.Err, map[string]any{
			"claim_id": claimID,
			"source":   source,
			"attempt":  event.Attempt,
			"stage":    "worker",
		})
	}
}

func (h LoggingHook) logger(ctx context.Context) core.Logger {
	logger := glog.Ensure(h.Logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID)
		if claimID, _, err := core.HandleClaimJobParams(event.Message); err == nil {
			fields = append(fields, "claim_id", claimID)
		}
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

var _ core.JobWorkerHook = LoggingHook{}
