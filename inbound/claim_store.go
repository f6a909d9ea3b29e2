package inbound

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-orgcreator/core"
	"github.com/google/uuid"
)

// DefaultLease is how long a claim notification suppresses repeats, both
// while it is in flight and after it completed.
const DefaultLease = 10 * time.Minute

type leaseState int

const (
	leaseInFlight leaseState = iota
	leaseDone
	leaseRetryReady
)

type lease struct {
	key      string
	token    string
	state    leaseState
	attempts int
	ttl      time.Duration
	expires  time.Time
	retryAt  time.Time
}

// blocks reports whether the lease still suppresses a new claim at now.
func (l lease) blocks(now time.Time) bool {
	switch l.state {
	case leaseInFlight, leaseDone:
		return now.Before(l.expires)
	case leaseRetryReady:
		return now.Before(l.retryAt)
	default:
		return false
	}
}

// InMemoryClaimStore suppresses duplicate claim request notifications. A key
// is claimed once, then either completed (suppressed until its lease runs
// out) or failed (claimable again from retryAt).
type InMemoryClaimStore struct {
	mu      sync.Mutex
	byKey   map[string]*lease
	byToken map[string]*lease
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		byKey:   map[string]*lease{},
		byToken: map[string]*lease{},
	}
}

func (s *InMemoryClaimStore) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: idempotency key is required", nil)
	}
	if ttl <= 0 {
		ttl = DefaultLease
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)

	current, exists := s.byKey[key]
	if exists && current.blocks(now) {
		return "", false, nil
	}
	if !exists {
		current = &lease{key: key}
		s.byKey[key] = current
	}
	if current.token != "" {
		delete(s.byToken, current.token)
	}
	current.token = uuid.NewString()
	current.state = leaseInFlight
	current.attempts++
	current.ttl = ttl
	current.expires = now.Add(ttl)
	current.retryAt = time.Time{}
	s.byToken[current.token] = current
	return current.token, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, token string) error {
	return s.settle(token, func(l *lease, now time.Time) {
		l.state = leaseDone
		l.expires = now.Add(l.ttl)
	})
}

func (s *InMemoryClaimStore) Fail(_ context.Context, token string, _ error, retryAt time.Time) error {
	return s.settle(token, func(l *lease, now time.Time) {
		if retryAt.IsZero() {
			retryAt = now
		}
		l.state = leaseRetryReady
		l.retryAt = retryAt.UTC()
		l.expires = time.Time{}
	})
}

// Attempts returns how many times key was claimed.
func (s *InMemoryClaimStore) Attempts(key string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.byKey[strings.TrimSpace(key)]; ok {
		return current.attempts
	}
	return 0
}

func (s *InMemoryClaimStore) settle(token string, apply func(l *lease, now time.Time)) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return inboundBadInput("inbound: claim token is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byToken[token]
	delete(s.byToken, token)
	if !ok || current.token != token || current.state != leaseInFlight {
		return nil
	}
	apply(current, s.now())
	current.token = ""
	return nil
}

func (s *InMemoryClaimStore) sweepLocked(now time.Time) {
	for key, current := range s.byKey {
		if current.state == leaseDone && !current.blocks(now) {
			delete(s.byKey, key)
		}
	}
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.IdempotencyClaimStore = (*InMemoryClaimStore)(nil)
