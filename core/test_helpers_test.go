package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	testRole      = "request-new-org"
	testNamespace = "iam.ewc"
)

func testConfig() Config {
	return Config{
		ExpectedRole: testRole,
		OrgNamespace: testNamespace,
	}
}

func newTestService(identity IdentityService, opts ...Option) (*Service, error) {
	base := []Option{
		WithIdentityService(identity),
		WithTokenDecoder(stubTokenDecoder{}),
		WithClock(func() time.Time { return time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC) }),
	}
	return NewService(testConfig(), append(base, opts...)...)
}

// stubTokenDecoder treats the token string as a key into testTokens.
type stubTokenDecoder struct{}

var testTokens = map[string]ClaimToken{
	"tok-acme": {
		ClaimType:        testRole,
		ClaimTypeVersion: "1",
		Fields:           []Field{{Key: "orgname", Value: "Acme"}},
	},
	"tok-other-role": {
		ClaimType: "some-other-role",
		Fields:    []Field{{Key: "orgname", Value: "acme"}},
	},
	"tok-no-name": {
		ClaimType: testRole,
		Fields:    []Field{{Key: "firstName", Value: "Testy"}},
	},
	"tok-bad-name": {
		ClaimType: testRole,
		Fields:    []Field{{Key: "orgname", Value: "BAD_NAME1!"}},
	},
}

func (stubTokenDecoder) Decode(token string) (ClaimToken, error) {
	if decoded, ok := testTokens[token]; ok {
		return decoded, nil
	}
	if len(token) > 4 && token[:4] == "org:" {
		return ClaimToken{
			ClaimType: testRole,
			Fields:    []Field{{Key: "orgname", Value: token[4:]}},
		}, nil
	}
	return ClaimToken{}, fmt.Errorf("stub: unknown token %q", token)
}

// recordingIdentity is an instrumented identity service. It flags any overlap
// between two create+transfer critical sections.
type recordingIdentity struct {
	mu            sync.Mutex
	claims        map[string]Claim
	owned         map[string][]OrganizationSummary
	createErr     map[string]error
	issueErr      error
	rejectErr     error
	getErr        error
	mutationDelay time.Duration

	inUse      atomic.Int32
	overlapped atomic.Bool

	gets      int
	creates   []OrganizationCreationRequest
	transfers []ChangeOwnershipRequest
	issues    []IssueClaimRequest
	rejects   []RejectClaimRequest
	lists     []ListClaimsRequest
}

func newRecordingIdentity(claims ...Claim) *recordingIdentity {
	identity := &recordingIdentity{
		claims:    map[string]Claim{},
		owned:     map[string][]OrganizationSummary{},
		createErr: map[string]error{},
	}
	for _, claim := range claims {
		identity.claims[claim.ID] = claim
	}
	return identity
}

func (r *recordingIdentity) GetClaimByID(_ context.Context, id string) (Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return Claim{}, r.getErr
	}
	claim, ok := r.claims[id]
	if !ok {
		return Claim{}, ErrClaimNotFound
	}
	return claim, nil
}

func (r *recordingIdentity) GetOrganizationsOwnedBy(_ context.Context, owner string) ([]OrganizationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrganizationSummary(nil), r.owned[owner]...), nil
}

func (r *recordingIdentity) CreateOrganization(_ context.Context, req OrganizationCreationRequest) error {
	if r.inUse.Add(1) > 1 {
		r.overlapped.Store(true)
	}
	if r.mutationDelay > 0 {
		time.Sleep(r.mutationDelay)
	}
	r.mu.Lock()
	r.creates = append(r.creates, req)
	err := r.createErr[req.OrgName]
	r.mu.Unlock()
	if err != nil {
		r.inUse.Add(-1)
		return err
	}
	return nil
}

func (r *recordingIdentity) ChangeOrgOwnership(_ context.Context, req ChangeOwnershipRequest) error {
	defer r.inUse.Add(-1)
	if r.mutationDelay > 0 {
		time.Sleep(r.mutationDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, req)
	return nil
}

func (r *recordingIdentity) IssueClaimRequest(_ context.Context, req IssueClaimRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, req)
	if r.issueErr != nil {
		return r.issueErr
	}
	if claim, ok := r.claims[req.ID]; ok {
		claim.IsAccepted = true
		r.claims[req.ID] = claim
	}
	return nil
}

func (r *recordingIdentity) RejectClaimRequest(_ context.Context, req RejectClaimRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejects = append(r.rejects, req)
	if r.rejectErr != nil {
		return r.rejectErr
	}
	if claim, ok := r.claims[req.ID]; ok {
		claim.IsRejected = true
		r.claims[req.ID] = claim
	}
	return nil
}

func (r *recordingIdentity) ListClaimsByIssuer(_ context.Context, req ListClaimsRequest) ([]Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, req)
	out := make([]Claim, 0, len(r.claims))
	for _, claim := range r.claims {
		out = append(out, claim)
	}
	return out, nil
}

func (r *recordingIdentity) counts() (creates, transfers, issues, rejects int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creates), len(r.transfers), len(r.issues), len(r.rejects)
}

type capturingRecorder struct {
	mu      sync.Mutex
	records []ClaimOutcome
}

func (c *capturingRecorder) Record(_ context.Context, outcome ClaimOutcome) (ClaimOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, outcome)
	return outcome, nil
}

type capturingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	tags     []map[string]string
}

func (m *capturingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += value
	m.tags = append(m.tags, tags)
}

func (m *capturingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

type capturingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (c *capturingReporter) Report(_ context.Context, err error, _ map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}
