// Package server exposes health, outcome status and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
	"github.com/goliatone/go-orgcreator/query"
	"github.com/gorilla/mux"
)

const DefaultCheckTimeout = 5 * time.Second

// Options wires the router. Nil checkers are skipped; a nil Outcomes reader
// leaves the claim routes unregistered.
type Options struct {
	Liveness     map[string]core.HealthChecker
	Readiness    map[string]core.HealthChecker
	Outcomes     core.ClaimOutcomeReader
	Metrics      http.Handler
	Logger       core.Logger
	CheckTimeout time.Duration
}

type handlers struct {
	liveness     map[string]core.HealthChecker
	readiness    map[string]core.HealthChecker
	getOutcome   *query.GetClaimOutcomeQuery
	listOutcomes *query.ListClaimOutcomesQuery
	logger       core.Logger
	checkTimeout time.Duration
}

func NewRouter(opts Options) *mux.Router {
	h := &handlers{
		liveness:     opts.Liveness,
		readiness:    opts.Readiness,
		logger:       glog.Ensure(opts.Logger),
		checkTimeout: opts.CheckTimeout,
	}
	if h.checkTimeout <= 0 {
		h.checkTimeout = DefaultCheckTimeout
	}

	router := mux.NewRouter()
	router.HandleFunc("/health/liveness", h.health(h.liveness)).Methods(http.MethodGet)
	router.HandleFunc("/health/readiness", h.health(h.readiness)).Methods(http.MethodGet)
	if opts.Outcomes != nil {
		h.getOutcome = query.NewGetClaimOutcomeQuery(opts.Outcomes)
		h.listOutcomes = query.NewListClaimOutcomesQuery(opts.Outcomes)
		router.HandleFunc("/claims/outcomes", h.listClaimOutcomes).Methods(http.MethodGet)
		router.HandleFunc("/claims/{id}/outcome", h.getClaimOutcome).Methods(http.MethodGet)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	return router
}

type indicator struct {
	Status string `json:"status"`
	Error  string `json:"message,omitempty"`
}

// healthResponse follows the terminus layout: info holds passing indicators,
// error the failing ones, details all of them.
type healthResponse struct {
	Status  string               `json:"status"`
	Info    map[string]indicator `json:"info"`
	Error   map[string]indicator `json:"error"`
	Details map[string]indicator `json:"details"`
}

func (h *handlers) health(checkers map[string]core.HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(checkers))
	for name, checker := range checkers {
		if checker != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
		defer cancel()

		resp := healthResponse{
			Status:  "ok",
			Info:    map[string]indicator{},
			Error:   map[string]indicator{},
			Details: map[string]indicator{},
		}
		for _, name := range names {
			result := indicator{Status: "up"}
			if err := checkers[name].Ping(ctx); err != nil {
				result = indicator{Status: "down", Error: err.Error()}
				resp.Error[name] = result
				resp.Status = "error"
				h.logger.Warn("health indicator down", "indicator", name, "error", err.Error())
			} else {
				resp.Info[name] = result
			}
			resp.Details[name] = result
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func (h *handlers) getClaimOutcome(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.getOutcome.Query(r.Context(), query.GetClaimOutcomeMessage{
		ClaimID: mux.Vars(r)["id"],
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeResponse(outcome))
}

func (h *handlers) listClaimOutcomes(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	filter := core.ClaimOutcomeFilter{
		Outcome: core.Outcome(strings.TrimSpace(values.Get("outcome"))),
		Source:  strings.TrimSpace(values.Get("source")),
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			limit = -1
		}
		filter.Limit = limit
	}

	outcomes, err := h.listOutcomes.Query(r.Context(), query.ListClaimOutcomesMessage{Filter: filter})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]outcomeResponse, 0, len(outcomes))
	for _, outcome := range outcomes {
		items = append(items, newOutcomeResponse(outcome))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type outcomeResponse struct {
	ClaimID   string    `json:"claim_id"`
	Outcome   string    `json:"outcome"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	OrgName   string    `json:"org_name,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newOutcomeResponse(outcome core.ClaimOutcome) outcomeResponse {
	return outcomeResponse{
		ClaimID:   outcome.ClaimID,
		Outcome:   string(outcome.Outcome),
		Decision:  string(outcome.Decision),
		Reason:    outcome.Reason,
		OrgName:   outcome.OrgName,
		Owner:     outcome.Owner,
		Source:    outcome.Source,
		Error:     outcome.Error,
		Attempts:  outcome.Attempts,
		CreatedAt: outcome.CreatedAt,
		UpdatedAt: outcome.UpdatedAt,
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	TextCode string `json:"text_code"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := core.MapError(err)
	status := mapped.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"text_code", mapped.TextCode,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		TextCode: mapped.TextCode,
		Category: mapped.Category.String(),
		Message:  mapped.Message,
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
