package inbound

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultSubject matches claim exchange notifications for every issuer and
// claim type.
const DefaultSubject = "request-credential.claim-exchange.*.*"

// ClaimRequestEvent is the notification published when a claim request is
// created or updated.
type ClaimRequestEvent struct {
	ID                string   `json:"id"`
	Token             string   `json:"token"`
	ClaimIssuer       []string `json:"claimIssuer"`
	Requester         string   `json:"requester"`
	RegistrationTypes []string `json:"registrationTypes"`
	SubjectAgreement  *string  `json:"subjectAgreement,omitempty"`
}

// DecodeClaimRequestEvent parses and validates an event payload. Payloads
// carrying properties outside ClaimRequestEvent belong to other claim
// exchange flows and are rejected.
func DecodeClaimRequestEvent(payload []byte) (ClaimRequestEvent, error) {
	var event ClaimRequestEvent
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&event); err != nil {
		return ClaimRequestEvent{}, inboundWrapBadInput(err, "inbound: decode claim request event", nil)
	}
	if err := event.Validate(); err != nil {
		return ClaimRequestEvent{}, err
	}
	return event, nil
}

func (e ClaimRequestEvent) Validate() error {
	missing := []string{}
	if strings.TrimSpace(e.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(e.Token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(e.Requester) == "" {
		missing = append(missing, "requester")
	}
	if e.ClaimIssuer == nil {
		missing = append(missing, "claimIssuer")
	}
	if e.RegistrationTypes == nil {
		missing = append(missing, "registrationTypes")
	}
	if len(missing) > 0 {
		return inboundBadInput("inbound: claim request event is missing required fields", map[string]any{
			"claim_id": strings.TrimSpace(e.ID),
			"fields":   missing,
		})
	}
	return nil
}
