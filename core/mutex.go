package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// MutationLock serializes ledger-mutating calls for the whole process. It is
// a single-slot semaphore: waiters queue on the channel and may give up while
// waiting, but a held slot is only released by its holder.
type MutationLock struct {
	name string
	slot chan struct{}
}

func NewMutationLock(name string) *MutationLock {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultLockName
	}
	return &MutationLock{
		name: name,
		slot: make(chan struct{}, 1),
	}
}

func (l *MutationLock) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Acquire blocks until the slot is free or ctx is done.
func (l *MutationLock) Acquire(ctx context.Context) (LockHandle, error) {
	if l == nil || l.slot == nil {
		return nil, fmt.Errorf("core: mutation lock is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case l.slot <- struct{}{}:
		return &mutationLockHandle{lock: l}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("core: acquire mutation lock %q: %w", l.name, ctx.Err())
	}
}

// WithLock runs fn while holding the lock. The lock is released when fn
// returns, fails or panics.
func (l *MutationLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("core: mutation lock callback is required")
	}
	handle, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = handle.Unlock(context.Background())
	}()
	return fn(ctx)
}

// Held reports whether the slot is currently taken.
func (l *MutationLock) Held() bool {
	if l == nil {
		return false
	}
	return len(l.slot) > 0
}

type mutationLockHandle struct {
	lock *MutationLock
	once sync.Once
}

func (h *mutationLockHandle) Unlock(context.Context) error {
	if h == nil || h.lock == nil {
		return nil
	}
	h.once.Do(func() {
		<-h.lock.slot
	})
	return nil
}
