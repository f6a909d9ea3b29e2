package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-orgcreator/core"
	"github.com/goliatone/go-orgcreator/transport"
)

func TestClient_GetClaimByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/claim/c1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                "c1",
				"token":             "jwt",
				"requester":         "did:ethr:0xabc",
				"isAccepted":        false,
				"isRejected":        false,
				"registrationTypes": []string{"RegistrationTypes::OffChain"},
			})
		case "/claim/empty":
			_, _ = w.Write([]byte("null"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "tok", HTTPClient: server.Client()})
	claim, err := client.GetClaimByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if claim.ID != "c1" || claim.Requester != "did:ethr:0xabc" || len(claim.RegistrationKinds) != 1 {
		t.Fatalf("unexpected claim: %#v", claim)
	}

	for _, id := range []string{"missing", "empty"} {
		_, err = client.GetClaimByID(context.Background(), id)
		if !errors.Is(err, core.ErrClaimNotFound) {
			t.Fatalf("expected claim not found for %s, got %v", id, err)
		}
	}

	unauthorized := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
	_, err = unauthorized.GetClaimByID(context.Background(), "c1")
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ServiceErrorUnauthorized {
		t.Fatalf("expected unauthorized envelope, got %v", err)
	}
}

func TestClient_WritesSendExpectedPayloads(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls[r.Method+" "+r.URL.Path] = body
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
	ctx := context.Background()
	if err := client.CreateOrganization(ctx, core.OrganizationCreationRequest{OrgName: "acme", Namespace: "iam.ewc"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := client.ChangeOrgOwnership(ctx, core.ChangeOwnershipRequest{Namespace: "acme.iam.ewc", NewOwner: "0xabc"}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := client.IssueClaimRequest(ctx, core.IssueClaimRequest{ID: "c1", Requester: "did:ethr:0xabc", Token: "jwt"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := client.RejectClaimRequest(ctx, core.RejectClaimRequest{ID: "c2", Requester: "did:ethr:0xdef", RejectionReason: "nope"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if got := calls["POST /org"]; got["orgName"] != "acme" || got["namespace"] != "iam.ewc" {
		t.Fatalf("unexpected create payload: %#v", got)
	}
	if got := calls["PUT /org/acme.iam.ewc/owner"]; got["newOwner"] != "0xabc" {
		t.Fatalf("unexpected transfer payload: %#v", got)
	}
	if got := calls["POST /claim/c1/issue"]; got["publishOnChain"] != false || got["token"] != "jwt" {
		t.Fatalf("unexpected issue payload: %#v", got)
	}
	if got := calls["POST /claim/c2/reject"]; got["rejectionReason"] != "nope" || got["requesterDID"] != "did:ethr:0xdef" {
		t.Fatalf("unexpected reject payload: %#v", got)
	}
}

func TestClient_ListClaimsAndOwnership(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/claim/issuer/did:ethr:issuer":
			gotQuery = r.URL.RawQuery
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "c1", "requester": "did:ethr:0x1"},
				{"id": "c2", "requester": "did:ethr:0x2", "isRejected": true},
			})
		case "/org/owner/0xabc":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"namespace": "old.iam.ewc", "name": "old", "owner": "0xabc"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
	claims, err := client.ListClaimsByIssuer(context.Background(), core.ListClaimsRequest{
		IssuerRef: "did:ethr:issuer",
		Namespace: "request-new-org",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(claims) != 2 || !claims[1].IsRejected {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if gotQuery != "isAccepted=false&namespace=request-new-org" {
		t.Fatalf("unexpected query %q", gotQuery)
	}

	owned, err := client.GetOrganizationsOwnedBy(context.Background(), "0xabc")
	if err != nil || len(owned) != 1 || owned[0].Name != "old" {
		t.Fatalf("unexpected owned organizations: %#v (%v)", owned, err)
	}
	none, err := client.GetOrganizationsOwnedBy(context.Background(), "0xnone")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no organizations for unknown owner, got %#v (%v)", none, err)
	}
}

func TestClient_TimeoutBoundsHungCalls(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Timeout: 20 * time.Millisecond})
	startedAt := time.Now()
	err := client.CreateOrganization(context.Background(), core.OrganizationCreationRequest{OrgName: "acme", Namespace: "iam.ewc"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(startedAt) > 2*time.Second {
		t.Fatalf("expected call to be bounded by the client timeout")
	}
}

func TestClient_DefaultHTTPClientLeavesTimeoutToConfig(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://identity.local", Timeout: 45 * time.Second})
	if client.timeout != 45*time.Second {
		t.Fatalf("expected configured timeout, got %s", client.timeout)
	}
	adapter, ok := client.transport.(*transport.RESTAdapter)
	if !ok {
		t.Fatalf("expected rest adapter, got %T", client.transport)
	}
	httpClient, ok := adapter.Client.(*http.Client)
	if !ok {
		t.Fatalf("expected default http client, got %T", adapter.Client)
	}
	if httpClient.Timeout != 0 {
		t.Fatalf("expected no fixed http client timeout, got %s", httpClient.Timeout)
	}
}

func TestClient_Ping(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy ping, got %v", err)
	}
	healthy.Store(false)
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected unhealthy ping error")
	}
}
