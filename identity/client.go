package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-orgcreator/core"
	"github.com/goliatone/go-orgcreator/transport"
)

const DefaultRequestTimeout = 30 * time.Second

const maxIdentityResponseBytes int64 = 4 << 20

type ClientConfig struct {
	BaseURL    string
	Token      string
	HTTPClient transport.HTTPDoer
	// Timeout bounds every identity service call. A hung call would
	// otherwise hold the mutation lock indefinitely.
	Timeout time.Duration
}

// Client is the HTTP implementation of core.IdentityService.
type Client struct {
	transport core.TransportAdapter
	timeout   time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		transport: transport.NewRESTAdapter(cfg.HTTPClient, cfg.BaseURL, cfg.Token),
		timeout:   timeout,
	}
}

// NewClientWithTransport builds a client over an existing adapter.
func NewClientWithTransport(adapter core.TransportAdapter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{transport: adapter, timeout: timeout}
}

type claimPayload struct {
	ID                string   `json:"id"`
	Token             string   `json:"token"`
	Requester         string   `json:"requester"`
	IsRejected        bool     `json:"isRejected"`
	IsAccepted        bool     `json:"isAccepted"`
	RegistrationTypes []string `json:"registrationTypes,omitempty"`
	SubjectAgreement  string   `json:"subjectAgreement,omitempty"`
}

func (p claimPayload) toClaim() core.Claim {
	return core.Claim{
		ID:                strings.TrimSpace(p.ID),
		Token:             p.Token,
		Requester:         strings.TrimSpace(p.Requester),
		IsRejected:        p.IsRejected,
		IsAccepted:        p.IsAccepted,
		RegistrationKinds: append([]string(nil), p.RegistrationTypes...),
		SubjectAgreement:  p.SubjectAgreement,
	}
}

type organizationPayload struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
}

func (c *Client) GetClaimByID(ctx context.Context, id string) (core.Claim, error) {
	id = strings.TrimSpace(id)
	res, err := c.send(ctx, "get claim", http.MethodGet, "/claim/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return core.Claim{}, err
	}
	if res.StatusCode == http.StatusNotFound {
		return core.Claim{}, fmt.Errorf("identity: claim %s: %w", id, core.ErrClaimNotFound)
	}
	if err := transport.StatusError("get claim", res); err != nil {
		return core.Claim{}, err
	}
	if isEmptyBody(res.Body) {
		return core.Claim{}, fmt.Errorf("identity: claim %s: %w", id, core.ErrClaimNotFound)
	}
	var payload claimPayload
	if err := decodeBody("get claim", res.Body, &payload); err != nil {
		return core.Claim{}, err
	}
	return payload.toClaim(), nil
}

func (c *Client) GetOrganizationsOwnedBy(ctx context.Context, owner string) ([]core.OrganizationSummary, error) {
	res, err := c.send(ctx, "get organizations by owner", http.MethodGet,
		"/org/owner/"+url.PathEscape(strings.TrimSpace(owner)), nil, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := transport.StatusError("get organizations by owner", res); err != nil {
		return nil, err
	}
	if isEmptyBody(res.Body) {
		return nil, nil
	}
	var payload []organizationPayload
	if err := decodeBody("get organizations by owner", res.Body, &payload); err != nil {
		return nil, err
	}
	out := make([]core.OrganizationSummary, 0, len(payload))
	for _, org := range payload {
		out = append(out, core.OrganizationSummary{
			Namespace: org.Namespace,
			Name:      org.Name,
			Owner:     org.Owner,
		})
	}
	return out, nil
}

func (c *Client) CreateOrganization(ctx context.Context, req core.OrganizationCreationRequest) error {
	return c.write(ctx, "create organization", http.MethodPost, "/org", map[string]any{
		"orgName":   req.OrgName,
		"namespace": req.Namespace,
	})
}

func (c *Client) ChangeOrgOwnership(ctx context.Context, req core.ChangeOwnershipRequest) error {
	return c.write(ctx, "change organization ownership", http.MethodPut,
		"/org/"+url.PathEscape(req.Namespace)+"/owner", map[string]any{
			"newOwner": req.NewOwner,
		})
}

func (c *Client) IssueClaimRequest(ctx context.Context, req core.IssueClaimRequest) error {
	body := map[string]any{
		"requester":      req.Requester,
		"token":          req.Token,
		"id":             req.ID,
		"publishOnChain": req.PublishOnChain,
	}
	if req.SubjectAgreement != "" {
		body["subjectAgreement"] = req.SubjectAgreement
	}
	if len(req.RegistrationKinds) > 0 {
		body["registrationTypes"] = req.RegistrationKinds
	}
	return c.write(ctx, "issue claim request", http.MethodPost, "/claim/"+url.PathEscape(req.ID)+"/issue", body)
}

func (c *Client) RejectClaimRequest(ctx context.Context, req core.RejectClaimRequest) error {
	return c.write(ctx, "reject claim request", http.MethodPost, "/claim/"+url.PathEscape(req.ID)+"/reject", map[string]any{
		"id":              req.ID,
		"requesterDID":    req.Requester,
		"rejectionReason": req.RejectionReason,
	})
}

func (c *Client) ListClaimsByIssuer(ctx context.Context, req core.ListClaimsRequest) ([]core.Claim, error) {
	query := map[string]string{
		"isAccepted": strconv.FormatBool(req.IsAccepted),
	}
	if ns := strings.TrimSpace(req.Namespace); ns != "" {
		query["namespace"] = ns
	}
	res, err := c.send(ctx, "list claims by issuer", http.MethodGet,
		"/claim/issuer/"+url.PathEscape(strings.TrimSpace(req.IssuerRef)), query, nil)
	if err != nil {
		return nil, err
	}
	if err := transport.StatusError("list claims by issuer", res); err != nil {
		return nil, err
	}
	if isEmptyBody(res.Body) {
		return nil, nil
	}
	var payload []claimPayload
	if err := decodeBody("list claims by issuer", res.Body, &payload); err != nil {
		return nil, err
	}
	claims := make([]core.Claim, 0, len(payload))
	for _, item := range payload {
		claims = append(claims, item.toClaim())
	}
	return claims, nil
}

// Ping checks that the identity service can serve requests for this
// orchestrator, including signer funding and role definition lookups.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.send(ctx, "health", http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	return transport.StatusError("health", res)
}

func (c *Client) write(ctx context.Context, operation string, method string, path string, body any) error {
	res, err := c.send(ctx, operation, method, path, nil, body)
	if err != nil {
		return err
	}
	return transport.StatusError(operation, res)
}

func (c *Client) send(
	ctx context.Context,
	operation string,
	method string,
	path string,
	query map[string]string,
	body any,
) (core.TransportResponse, error) {
	if c == nil || c.transport == nil {
		return core.TransportResponse{}, goerrors.New("identity: client is not configured", goerrors.CategoryInternal).
			WithTextCode(core.ServiceErrorInternal)
	}
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return core.TransportResponse{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "identity: encode "+operation).
				WithTextCode(core.ServiceErrorBadInput)
		}
	}
	return c.transport.Do(ctx, core.TransportRequest{
		Method:               method,
		URL:                  path,
		Query:                query,
		Body:                 encoded,
		Timeout:              c.timeout,
		MaxResponseBodyBytes: maxIdentityResponseBytes,
	})
}

func decodeBody(operation string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "identity: decode "+operation+" response").
			WithTextCode(core.ServiceErrorExternalFailure)
	}
	return nil
}

func isEmptyBody(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return trimmed == "" || trimmed == "null"
}

var (
	_ core.IdentityService = (*Client)(nil)
	_ core.HealthChecker   = (*Client)(nil)
)
