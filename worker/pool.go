package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	jobworker "github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/adapters/gojob"
	"github.com/goliatone/go-orgcreator/core"
)

const (
	DefaultWorkers      = 4
	DefaultErrorBackoff = 500 * time.Millisecond
)

// Handler processes one queued job. A nil error acks the delivery.
type Handler func(ctx context.Context, msg *core.JobExecutionMessage) error

// Pool runs a fixed number of consumers against one job queue.
type Pool struct {
	Dequeuer     core.JobDequeuer
	Handler      Handler
	Workers      int
	RetryPolicy  gojob.RetryPolicy
	Hooks        []jobworker.Hook
	Logger       core.Logger
	ErrorBackoff time.Duration
	Now          func() time.Time
}

func NewPool(dequeuer core.JobDequeuer, handler Handler, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		Dequeuer:     dequeuer,
		Handler:      handler,
		Workers:      workers,
		RetryPolicy:  gojob.DefaultRetryPolicy(),
		Logger:       glog.Nop(),
		ErrorBackoff: DefaultErrorBackoff,
	}
}

// AddHook registers a core hook behind the go-job hook contract.
func (p *Pool) AddHook(hook core.JobWorkerHook) {
	if p == nil || hook == nil {
		return
	}
	p.Hooks = append(p.Hooks, gojob.NewWorkerHookAdapter(hook))
}

// Run blocks until ctx is done or the queue closes, then waits for in-flight
// jobs to finish.
func (p *Pool) Run(ctx context.Context) error {
	if p == nil || p.Dequeuer == nil || p.Handler == nil {
		return fmt.Errorf("worker: pool requires a dequeuer and a handler")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.consume(ctx, id)
		}(i)
	}
	p.logger().Info("worker pool started", "workers", workers)
	wg.Wait()
	p.logger().Info("worker pool stopped")
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Pool) consume(ctx context.Context, id int) {
	for {
		delivery, err := p.Dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, gojob.ErrQueueClosed) {
				return
			}
			p.logger().Warn("worker dequeue failed", "worker", id, "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.errorBackoff()):
			}
			continue
		}
		p.Process(ctx, delivery)
	}
}

// Process runs the handler for one delivery and settles it.
func (p *Pool) Process(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	attempt := deliveryAttempt(delivery)
	startedAt := p.now()
	event := jobworker.Event{
		Message:   gojob.ToExecutionMessage(msg),
		Attempt:   attempt,
		StartedAt: startedAt,
	}
	p.emit(ctx, event, hookStart)

	err := p.invoke(ctx, msg)
	event.Duration = p.now().Sub(startedAt)
	if err == nil {
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			p.logger().Warn("worker ack failed", "error", ackErr.Error())
		}
		p.emit(ctx, event, hookSuccess)
		return
	}

	event.Err = err
	nack := p.RetryPolicy.NormalizeAttempt(core.JobNackOptions{Requeue: true, Reason: err.Error()}, attempt)
	if nackErr := delivery.Nack(ctx, nack); nackErr != nil {
		p.logger().Warn("worker nack failed", "error", nackErr.Error())
	}
	if nack.Requeue {
		event.Delay = nack.Delay
		p.emit(ctx, event, hookRetry)
		return
	}
	p.emit(ctx, event, hookFailure)
}

func (p *Pool) invoke(ctx context.Context, msg *core.JobExecutionMessage) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger().Error("worker handler panicked", "panic", fmt.Sprint(recovered), "stack", string(debug.Stack()))
			err = fmt.Errorf("worker: handler panic: %v", recovered)
		}
	}()
	return p.Handler(ctx, msg)
}

type hookKind int

const (
	hookStart hookKind = iota
	hookSuccess
	hookRetry
	hookFailure
)

func (p *Pool) emit(ctx context.Context, event jobworker.Event, kind hookKind) {
	for _, hook := range p.Hooks {
		if hook == nil {
			continue
		}
		switch kind {
		case hookStart:
			hook.OnStart(ctx, event)
		case hookSuccess:
			hook.OnSuccess(ctx, event)
		case hookRetry:
			hook.OnRetry(ctx, event)
		case hookFailure:
			hook.OnFailure(ctx, event)
		}
	}
}

func deliveryAttempt(delivery core.JobDelivery) int {
	if counted, ok := delivery.(interface{ Attempt() int }); ok && counted.Attempt() > 0 {
		return counted.Attempt()
	}
	return 1
}

func (p *Pool) errorBackoff() time.Duration {
	if p.ErrorBackoff > 0 {
		return p.ErrorBackoff
	}
	return DefaultErrorBackoff
}

func (p *Pool) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *Pool) logger() core.Logger {
	if p == nil || p.Logger == nil {
		return glog.Nop()
	}
	return p.Logger
}
