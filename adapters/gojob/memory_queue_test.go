package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-orgcreator/core"
)

func TestMemoryQueueDropsPendingIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	producer := NewEnqueuerAdapter(q)

	if err := producer.Enqueue(ctx, core.NewHandleClaimJob("claim-1", core.SourceEvent)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := producer.Enqueue(ctx, core.NewHandleClaimJob("claim-1", core.SourcePolling)); !errors.Is(err, core.ErrJobAlreadyQueued) {
		t.Fatalf("expected duplicate to report already queued, got %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected duplicate claim to be dropped, got %d queued", q.Len())
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	// still in flight, so a rediscovery is dropped too
	if err := producer.Enqueue(ctx, core.NewHandleClaimJob("claim-1", core.SourcePolling)); !errors.Is(err, core.ErrJobAlreadyQueued) {
		t.Fatalf("expected in-flight duplicate to report already queued, got %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected in-flight claim to be dropped, got %d queued", q.Len())
	}

	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := producer.Enqueue(ctx, core.NewHandleClaimJob("claim-1", core.SourcePolling)); err != nil {
		t.Fatalf("enqueue after ack: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected claim to be queued again after ack, got %d", q.Len())
	}
}

func TestMemoryQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	got := make(chan string, 1)
	go func() {
		delivery, err := NewDequeuerAdapter(q, DefaultRetryPolicy()).Dequeue(context.Background())
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		claimID, _, _ := core.HandleClaimJobParams(delivery.Message())
		got <- claimID
	}()

	time.Sleep(20 * time.Millisecond)
	if err := NewEnqueuerAdapter(q).Enqueue(context.Background(), core.NewHandleClaimJob("claim-2", core.SourceEvent)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case claimID := <-got:
		if claimID != "claim-2" {
			t.Fatalf("expected claim-2, got %q", claimID)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected blocked consumer to receive the message")
	}
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryQueueNackRequeuesWithAttempt(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = NewEnqueuerAdapter(q).Enqueue(ctx, core.NewHandleClaimJob("claim-3", core.SourceEvent))

	consumer := NewDequeuerAdapter(q, RetryPolicy{MaxAttempts: 2, DeadLetterOnMax: true})
	first, err := consumer.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := first.Nack(ctx, core.JobNackOptions{Requeue: true, Reason: "transient"}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if err := first.Nack(ctx, core.JobNackOptions{Requeue: true}); !errors.Is(err, ErrDeliverySettled) {
		t.Fatalf("expected second settle to fail, got %v", err)
	}

	second, err := consumer.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue redelivery: %v", err)
	}
	if attempt := second.(*DeliveryAdapter).Attempt(); attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", attempt)
	}
	if err := second.Nack(ctx, core.JobNackOptions{Requeue: true, Reason: "still failing"}); err != nil {
		t.Fatalf("nack redelivery: %v", err)
	}

	if q.Len() != 0 {
		t.Fatalf("expected exhausted message to leave the queue")
	}
	dead := q.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dead))
	}
	if dead[0].Attempt != 2 || dead[0].Reason != "still failing" {
		t.Fatalf("unexpected dead letter: %+v", dead[0])
	}
}

func TestMemoryQueueDelayedRequeue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Enqueue(ctx, ToExecutionMessage(core.NewHandleClaimJob("claim-4", core.SourceEvent)))

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := delivery.Nack(ctx, queue.NackOptions{Requeue: true, Delay: 10 * time.Millisecond}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected delayed message to wait before requeue")
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := q.Dequeue(waitCtx); err != nil {
		t.Fatalf("expected delayed message to come back, got %v", err)
	}
}

func TestMemoryQueueClose(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Enqueue(ctx, ToExecutionMessage(core.NewHandleClaimJob("claim-5", core.SourceEvent)))

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Ping(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected closed ping error, got %v", err)
	}
	if err := q.Enqueue(ctx, ToExecutionMessage(core.NewHandleClaimJob("claim-6", core.SourceEvent))); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected closed enqueue error, got %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("expected queued message to drain after close, got %v", err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected closed dequeue error, got %v", err)
	}
}
