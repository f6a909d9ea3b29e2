package gojob

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-orgcreator/core"
)

// JobIDHandleClaim is the only job the orchestrator queues.
const JobIDHandleClaim = core.HandleClaimJobID

var errNotConfigured = errors.New("gojob: adapter is not configured")

// RetryPolicy bounds how many times a failed claim job is redelivered.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// DefaultRetryPolicy never redelivers a failed claim job: the next poll cycle
// rediscovers any claim that is still unresolved.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, DeadLetterOnMax: true}
}

// NormalizeAttempt decides how a failed delivery is settled. Within budget
// the claim is requeued unless the caller dead-letters it; once attempt
// reaches MaxAttempts it is never requeued.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	settled := core.JobNackOptions{
		Delay:      max(opts.Delay, 0),
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     strings.TrimSpace(opts.Reason),
	}
	if p.MaxDelay > 0 {
		settled.Delay = min(settled.Delay, p.MaxDelay)
	}

	switch {
	case p.MaxAttempts > 0 && attempt >= p.MaxAttempts:
		settled.Requeue = false
		settled.DeadLetter = settled.DeadLetter || p.DeadLetterOnMax
	case settled.DeadLetter:
		settled.Requeue = false
	default:
		settled.Requeue = true
	}
	return settled
}

// ToExecutionMessage converts a claim job into the go-job wire message.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          msg.JobID,
		Parameters:     maps.Clone(msg.Parameters),
		IdempotencyKey: msg.IdempotencyKey,
		DedupPolicy:    job.DeduplicationPolicy(msg.DedupPolicy),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          msg.JobID,
		Parameters:     maps.Clone(msg.Parameters),
		IdempotencyKey: msg.IdempotencyKey,
		DedupPolicy:    string(msg.DedupPolicy),
	}
}

// EnqueuerAdapter lets claim producers push core messages onto a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch {
	case a == nil || a.enqueuer == nil:
		return errNotConfigured
	case msg == nil:
		return ErrMessageIsRequired
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

// DeliveryAdapter settles a go-job delivery through the retry policy.
type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) configured() bool {
	return d != nil && d.delivery != nil
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if !d.configured() {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

// Attempt is the 1-based delivery attempt. Queues that do not count
// redeliveries always report 1.
func (d *DeliveryAdapter) Attempt() int {
	if !d.configured() {
		return 0
	}
	if counted, ok := d.delivery.(interface{ Attempt() int }); ok && counted.Attempt() > 0 {
		return counted.Attempt()
	}
	return 1
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if !d.configured() {
		return errNotConfigured
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if !d.configured() {
		return errNotConfigured
	}
	settled := d.policy.NormalizeAttempt(opts, d.Attempt())
	return d.delivery.Nack(ctx, queue.NackOptions{
		Delay:      settled.Delay,
		Requeue:    settled.Requeue,
		DeadLetter: settled.DeadLetter,
		Reason:     settled.Reason,
	})
}

// DequeuerAdapter hands go-job deliveries to the worker pool.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, errNotConfigured
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// WorkerHookAdapter exposes a core worker hook as a go-job worker.Hook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnStart(ctx, e) })
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnSuccess(ctx, e) })
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnFailure(ctx, e) })
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.forward(event, func(e core.JobWorkerEvent) { a.hook.OnRetry(ctx, e) })
}

// forward maps the event, taking the message from the delivery when the
// event carries none.
func (a *WorkerHookAdapter) forward(event worker.Event, deliver func(core.JobWorkerEvent)) {
	if a == nil || a.hook == nil {
		return
	}
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	deliver(core.JobWorkerEvent{
		Message:   FromExecutionMessage(msg),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	})
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*WorkerHookAdapter)(nil)
)
