package core

import (
	"fmt"
	"regexp"
	"strings"
)

// DecisionKind names the gate that produced a Decision.
type DecisionKind string

const (
	DecisionAbort                   DecisionKind = "abort"
	DecisionRoleMismatch            DecisionKind = "role_mismatch"
	DecisionMissingOrgName          DecisionKind = "missing_org_name"
	DecisionInvalidOrgName          DecisionKind = "invalid_org_name"
	DecisionAlreadyOwnsOrganization DecisionKind = "already_owns_organization"
	DecisionAccept                  DecisionKind = "accept"
)

// Action is what the orchestrator does with a non-accept decision.
type Action string

const (
	ActionAbort  Action = "abort"
	ActionReject Action = "reject"
)

func parseAction(value string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(value))) {
	case ActionAbort:
		return ActionAbort, true
	case ActionReject:
		return ActionReject, true
	default:
		return "", false
	}
}

type DecisionPolicy struct {
	RoleMismatch   Action
	MissingOrgName Action
	InvalidOrgName Action
	AlreadyOwns    Action
}

func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		RoleMismatch:   ActionAbort,
		MissingOrgName: ActionReject,
		InvalidOrgName: ActionReject,
		AlreadyOwns:    ActionReject,
	}
}

// ActionFor returns the action for a decision kind. Accept has no action and
// the abort gate always aborts.
func (p DecisionPolicy) ActionFor(kind DecisionKind) Action {
	switch kind {
	case DecisionRoleMismatch:
		return orAbort(p.RoleMismatch)
	case DecisionMissingOrgName:
		return orAbort(p.MissingOrgName)
	case DecisionInvalidOrgName:
		return orAbort(p.InvalidOrgName)
	case DecisionAlreadyOwnsOrganization:
		return orAbort(p.AlreadyOwns)
	case DecisionAccept:
		return ""
	default:
		return ActionAbort
	}
}

func orAbort(action Action) Action {
	if action == "" {
		return ActionAbort
	}
	return action
}

const (
	orgNameFieldKey = "orgname"

	reasonMissingOrgName = "No org name found in claim request event"
)

var orgNamePattern = regexp.MustCompile(`^[a-z]+$`)

// Decision is the validator verdict for one claim.
type Decision struct {
	Kind    DecisionKind
	Action  Action
	Reason  string
	OrgName string
	Owner   string
}

func (d Decision) Accepted() bool {
	return d.Kind == DecisionAccept
}

func (d Decision) Rejects() bool {
	return d.Kind != DecisionAccept && d.Action == ActionReject
}

// ClaimValidator applies the gates in fixed order; the first failing gate
// wins.
type ClaimValidator struct {
	ExpectedRole string
	Policy       DecisionPolicy
}

func NewClaimValidator(expectedRole string, policy DecisionPolicy) ClaimValidator {
	return ClaimValidator{
		ExpectedRole: strings.TrimSpace(expectedRole),
		Policy:       policy,
	}
}

// Validate runs the abort, role, presence and naming gates. A passing claim
// yields DecisionAccept pending the ownership gate.
func (v ClaimValidator) Validate(claim *Claim, token ClaimToken) Decision {
	if claim == nil {
		return v.decide(DecisionAbort, "claim not found", "", "")
	}
	owner := OwnerAddress(claim.Requester)
	if claim.IsRejected {
		return v.decide(DecisionAbort, "claim already rejected", "", owner)
	}
	if claim.IsAccepted {
		return v.decide(DecisionAbort, "claim already accepted", "", owner)
	}
	if strings.TrimSpace(token.ClaimType) != v.ExpectedRole {
		return v.decide(
			DecisionRoleMismatch,
			fmt.Sprintf("Claim type %s does not match %s", token.ClaimType, v.ExpectedRole),
			"",
			owner,
		)
	}
	rawName, ok := token.Lookup(orgNameFieldKey)
	if !ok || rawName == "" {
		return v.decide(DecisionMissingOrgName, reasonMissingOrgName, "", owner)
	}
	orgName := strings.ToLower(rawName)
	if !orgNamePattern.MatchString(orgName) {
		return v.decide(DecisionInvalidOrgName, fmt.Sprintf("Org name %s is not valid", orgName), orgName, owner)
	}
	return Decision{Kind: DecisionAccept, OrgName: orgName, Owner: owner}
}

// CheckOwnership applies the final gate to an accepted decision.
func (v ClaimValidator) CheckOwnership(decision Decision, owned []OrganizationSummary) Decision {
	if !decision.Accepted() {
		return decision
	}
	if len(owned) > 0 {
		return v.decide(
			DecisionAlreadyOwnsOrganization,
			fmt.Sprintf("User %s already has an existing organization.", decision.Owner),
			decision.OrgName,
			decision.Owner,
		)
	}
	return decision
}

func (v ClaimValidator) decide(kind DecisionKind, reason string, orgName string, owner string) Decision {
	return Decision{
		Kind:    kind,
		Action:  v.Policy.ActionFor(kind),
		Reason:  reason,
		OrgName: orgName,
		Owner:   owner,
	}
}
