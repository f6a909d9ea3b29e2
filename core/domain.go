package core

import (
	"strings"
	"time"
)

// Outcome is the terminal result of handling one claim.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeAborted  Outcome = "aborted"

	// OutcomeFailed is only written to the outcome ledger when Handle
	// returned an error.
	OutcomeFailed Outcome = "failed"
)

func (o Outcome) String() string {
	return string(o)
}

// Claim is a read-only projection of a claim request held by the identity
// service.
type Claim struct {
	ID                string
	Token             string
	Requester         string
	IsRejected        bool
	IsAccepted        bool
	RegistrationKinds []string
	SubjectAgreement  string
}

// Resolved reports whether the identity service already settled the claim.
func (c Claim) Resolved() bool {
	return c.IsRejected || c.IsAccepted
}

type Field struct {
	Key   string
	Value string
}

// ClaimToken is the normalized payload carried by Claim.Token.
type ClaimToken struct {
	ClaimType        string
	ClaimTypeVersion string
	Fields           []Field
}

// Lookup returns the first non-empty value stored under key. Keys match
// exactly. ok reports whether key is present at all, even with empty values.
func (t ClaimToken) Lookup(key string) (string, bool) {
	found := false
	for _, field := range t.Fields {
		if field.Key != key {
			continue
		}
		found = true
		if field.Value != "" {
			return field.Value, true
		}
	}
	return "", found
}

type OrganizationCreationRequest struct {
	OrgName   string
	Namespace string
}

type ChangeOwnershipRequest struct {
	Namespace string
	NewOwner  string
}

type IssueClaimRequest struct {
	Requester         string
	Token             string
	ID                string
	SubjectAgreement  string
	RegistrationKinds []string
	PublishOnChain    bool
}

type RejectClaimRequest struct {
	ID              string
	Requester       string
	RejectionReason string
}

type ListClaimsRequest struct {
	IssuerRef  string
	IsAccepted bool
	Namespace  string
}

type OrganizationSummary struct {
	Namespace string
	Name      string
	Owner     string
}

// ClaimOutcome is the audit record written after each handled claim.
type ClaimOutcome struct {
	ID        string
	ClaimID   string
	Outcome   Outcome
	Decision  DecisionKind
	Reason    string
	OrgName   string
	Owner     string
	Source    string
	Error     string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ClaimOutcomeFilter struct {
	Outcome Outcome
	Source  string
	Limit   int
}

const (
	SourceEvent   = "event"
	SourcePolling = "polling"
	SourceManual  = "manual"
)

// OwnerAddress derives the owner reference from a requester DID by taking the
// last colon separated segment. Both did:ethr:0xabc and did:ethr:volta:0xabc
// yield 0xabc.
func OwnerAddress(did string) string {
	did = strings.TrimSpace(did)
	if did == "" {
		return ""
	}
	if idx := strings.LastIndex(did, ":"); idx >= 0 {
		return did[idx+1:]
	}
	return did
}
