package gojob

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-orgcreator/core"
)

var (
	ErrQueueClosed       = errors.New("gojob: queue is closed")
	ErrDeliverySettled   = errors.New("gojob: delivery already acked or nacked")
	ErrMessageIsRequired = errors.New("gojob: execution message is required")
)

// DeadLetter is a message that exhausted its attempts.
type DeadLetter struct {
	DeliveryID string
	Message    *job.ExecutionMessage
	Attempt    int
	Reason     string
	At         time.Time
}

type memoryEntry struct {
	id      string
	msg     *job.ExecutionMessage
	attempt int
}

// MemoryQueue is a process-local go-job queue shared by every claim producer.
// A message whose idempotency key is already queued or in flight is dropped
// on enqueue with core.ErrJobAlreadyQueued.
type MemoryQueue struct {
	Now func() time.Time

	mu          sync.Mutex
	ready       []*memoryEntry
	pending     map[string]struct{}
	deadLetters []DeadLetter
	timers      map[*time.Timer]struct{}
	closed      bool

	signal chan struct{}
	done   chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: map[string]struct{}{},
		timers:  map[*time.Timer]struct{}{},
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return ErrQueueClosed
	}
	if msg == nil {
		return ErrMessageIsRequired
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" {
		if _, exists := q.pending[key]; exists {
			return core.ErrJobAlreadyQueued
		}
		q.pending[key] = struct{}{}
	}
	q.ready = append(q.ready, &memoryEntry{
		id:      uuid.NewString(),
		msg:     cloneExecutionMessage(msg),
		attempt: 1,
	})
	q.wakeLocked()
	return nil
}

// Dequeue blocks until a message is ready, ctx is done or the queue closes.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, ErrQueueClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			entry := q.ready[0]
			q.ready[0] = nil
			q.ready = q.ready[1:]
			if len(q.ready) > 0 {
				q.wakeLocked()
			}
			q.mu.Unlock()
			return &memoryDelivery{queue: q, entry: entry}, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
		case <-q.signal:
		}
	}
}

// Len reports messages waiting for a consumer.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

func (q *MemoryQueue) DeadLetters() []DeadLetter {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.deadLetters...)
}

// Ping reports whether the queue still accepts work.
func (q *MemoryQueue) Ping(context.Context) error {
	if q == nil {
		return ErrQueueClosed
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// Close stops accepting messages and wakes blocked consumers. Messages
// already queued can still be dequeued.
func (q *MemoryQueue) Close() error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
	close(q.done)
	return nil
}

func (q *MemoryQueue) wakeLocked() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) settle(entry *memoryEntry, opts *queue.NackOptions) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := strings.TrimSpace(entry.msg.IdempotencyKey)

	switch {
	case opts == nil:
		delete(q.pending, key)
	case opts.Requeue && !q.closed:
		next := &memoryEntry{id: entry.id, msg: entry.msg, attempt: entry.attempt + 1}
		if opts.Delay <= 0 {
			q.ready = append(q.ready, next)
			q.wakeLocked()
			return
		}
		var timer *time.Timer
		timer = time.AfterFunc(opts.Delay, func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			delete(q.timers, timer)
			if q.closed {
				return
			}
			q.ready = append(q.ready, next)
			q.wakeLocked()
		})
		q.timers[timer] = struct{}{}
	case opts.DeadLetter:
		delete(q.pending, key)
		q.deadLetters = append(q.deadLetters, DeadLetter{
			DeliveryID: entry.id,
			Message:    entry.msg,
			Attempt:    entry.attempt,
			Reason:     strings.TrimSpace(opts.Reason),
			At:         q.now(),
		})
	default:
		delete(q.pending, key)
	}
}

func (q *MemoryQueue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now().UTC()
}

type memoryDelivery struct {
	queue *MemoryQueue
	entry *memoryEntry

	mu      sync.Mutex
	settled bool
}

func (d *memoryDelivery) ID() string {
	return d.entry.id
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.entry.msg
}

func (d *memoryDelivery) Attempt() int {
	return d.entry.attempt
}

func (d *memoryDelivery) Ack(context.Context) error {
	if err := d.markSettled(); err != nil {
		return err
	}
	d.queue.settle(d.entry, nil)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if err := d.markSettled(); err != nil {
		return err
	}
	d.queue.settle(d.entry, &opts)
	return nil
}

func (d *memoryDelivery) markSettled() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrDeliverySettled
	}
	d.settled = true
	return nil
}

func cloneExecutionMessage(msg *job.ExecutionMessage) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     maps.Clone(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    msg.DedupPolicy,
	}
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
