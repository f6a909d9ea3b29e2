package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-orgcreator/core"
)

// MemoryService is an in-process identity service for local runs and tests.
// Organizations are keyed by full namespace; ownership transfer requires the
// namespace to exist.
type MemoryService struct {
	mu            sync.Mutex
	claims        map[string]core.Claim
	issuers       map[string][]string
	organizations map[string]core.OrganizationSummary
	issued        []core.IssueClaimRequest
	rejected      []core.RejectClaimRequest
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		claims:        map[string]core.Claim{},
		issuers:       map[string][]string{},
		organizations: map[string]core.OrganizationSummary{},
	}
}

// SeedClaim stores a claim and indexes it under each issuer reference.
func (m *MemoryService) SeedClaim(claim core.Claim, issuers ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[claim.ID] = claim
	for _, issuer := range issuers {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			continue
		}
		m.issuers[issuer] = append(m.issuers[issuer], claim.ID)
	}
}

func (m *MemoryService) SeedOrganization(org core.OrganizationSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.organizations[org.Namespace] = org
}

func (m *MemoryService) GetClaimByID(_ context.Context, id string) (core.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[strings.TrimSpace(id)]
	if !ok {
		return core.Claim{}, fmt.Errorf("identity: claim %s: %w", id, core.ErrClaimNotFound)
	}
	return claim, nil
}

func (m *MemoryService) GetOrganizationsOwnedBy(_ context.Context, owner string) ([]core.OrganizationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.OrganizationSummary
	for _, org := range m.organizations {
		if strings.EqualFold(org.Owner, owner) {
			out = append(out, org)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out, nil
}

func (m *MemoryService) CreateOrganization(_ context.Context, req core.OrganizationCreationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	namespace := req.OrgName + "." + req.Namespace
	if _, exists := m.organizations[namespace]; exists {
		return fmt.Errorf("identity: organization %s already exists", namespace)
	}
	m.organizations[namespace] = core.OrganizationSummary{Namespace: namespace, Name: req.OrgName}
	return nil
}

func (m *MemoryService) ChangeOrgOwnership(_ context.Context, req core.ChangeOwnershipRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.organizations[req.Namespace]
	if !ok {
		return fmt.Errorf("identity: organization %s does not exist", req.Namespace)
	}
	org.Owner = req.NewOwner
	m.organizations[req.Namespace] = org
	return nil
}

func (m *MemoryService) IssueClaimRequest(_ context.Context, req core.IssueClaimRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[req.ID]
	if !ok {
		return fmt.Errorf("identity: claim %s: %w", req.ID, core.ErrClaimNotFound)
	}
	claim.IsAccepted = true
	m.claims[req.ID] = claim
	m.issued = append(m.issued, req)
	return nil
}

func (m *MemoryService) RejectClaimRequest(_ context.Context, req core.RejectClaimRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[req.ID]
	if !ok {
		return fmt.Errorf("identity: claim %s: %w", req.ID, core.ErrClaimNotFound)
	}
	claim.IsRejected = true
	m.claims[req.ID] = claim
	m.rejected = append(m.rejected, req)
	return nil
}

// ListClaimsByIssuer filters by issuer and acceptance. The namespace filter
// matches claims whose token was issued for that role; the memory service
// does not decode tokens, so it is ignored.
func (m *MemoryService) ListClaimsByIssuer(_ context.Context, req core.ListClaimsRequest) ([]core.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.issuers[strings.TrimSpace(req.IssuerRef)]
	out := make([]core.Claim, 0, len(ids))
	for _, id := range ids {
		claim, ok := m.claims[id]
		if !ok || claim.IsAccepted != req.IsAccepted {
			continue
		}
		out = append(out, claim)
	}
	return out, nil
}

func (m *MemoryService) Ping(context.Context) error {
	return nil
}

// Issued returns the acknowledgements recorded so far.
func (m *MemoryService) Issued() []core.IssueClaimRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.IssueClaimRequest(nil), m.issued...)
}

func (m *MemoryService) Rejected() []core.RejectClaimRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.RejectClaimRequest(nil), m.rejected...)
}

var (
	_ core.IdentityService = (*MemoryService)(nil)
	_ core.HealthChecker   = (*MemoryService)(nil)
)
