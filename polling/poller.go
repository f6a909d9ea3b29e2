// Package polling periodically lists unresolved claims and hands them to the
// worker queue. It backs up event ingress when notifications are lost.
package polling

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
)

const DefaultInterval = time.Duration(core.DefaultPollIntervalMillis) * time.Millisecond

type ClaimLister interface {
	ListClaimsByIssuer(ctx context.Context, req core.ListClaimsRequest) ([]core.Claim, error)
}

// Submitter queues a claim id for handling without waiting for the result.
type Submitter interface {
	Submit(ctx context.Context, claimID string, source string) error
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Listed    int
	Skipped   int
	Submitted int
	Failed    int
}

type Poller struct {
	Lister    ClaimLister
	Submitter Submitter
	Interval  time.Duration
	IssuerRef string
	// Namespace is the claim type the poller asks for, which is the
	// expected role.
	Namespace string
	Logger    core.Logger
	Now       func() time.Time
}

func NewPoller(lister ClaimLister, submitter Submitter, cfg core.Config, issuerRef string) *Poller {
	return &Poller{
		Lister:    lister,
		Submitter: submitter,
		Interval:  cfg.PollInterval(),
		IssuerRef: strings.TrimSpace(issuerRef),
		Namespace: strings.TrimSpace(cfg.ExpectedRole),
		Logger:    glog.Nop(),
	}
}

// RunOnce lists pending claims and submits every one that is not rejected.
func (p *Poller) RunOnce(ctx context.Context) (CycleResult, error) {
	if p == nil || p.Lister == nil || p.Submitter == nil {
		return CycleResult{}, fmt.Errorf("polling: poller requires a lister and a submitter")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	claims, err := p.Lister.ListClaimsByIssuer(ctx, core.ListClaimsRequest{
		IssuerRef:  p.IssuerRef,
		IsAccepted: false,
		Namespace:  p.Namespace,
	})
	if err != nil {
		return CycleResult{}, fmt.Errorf("polling: list pending claims: %w", err)
	}

	result := CycleResult{Listed: len(claims)}
	for _, claim := range claims {
		if claim.IsRejected || strings.TrimSpace(claim.ID) == "" {
			result.Skipped++
			continue
		}
		if err := p.Submitter.Submit(ctx, claim.ID, core.SourcePolling); err != nil {
			result.Failed++
			p.logger().Warn("poll submit failed", "claim_id", claim.ID, "error", err.Error())
			continue
		}
		result.Submitted++
	}
	return result, nil
}

// Run polls every Interval until ctx is done. A failed cycle is logged and
// polling continues on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	if p == nil || p.Lister == nil || p.Submitter == nil {
		return fmt.Errorf("polling: poller requires a lister and a submitter")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger().Info("claim poller started", "interval_ms", interval.Milliseconds(), "namespace", p.Namespace)
	for {
		select {
		case <-ctx.Done():
			p.logger().Info("claim poller stopped")
			return nil
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	startedAt := p.now()
	result, err := p.RunOnce(ctx)
	if err != nil {
		p.logger().Error("poll cycle failed", "error", err.Error())
		return
	}
	p.logger().Debug("poll cycle done",
		"listed", result.Listed,
		"submitted", result.Submitted,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", p.now().Sub(startedAt).Milliseconds(),
	)
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *Poller) logger() core.Logger {
	if p == nil || p.Logger == nil {
		return glog.Nop()
	}
	return p.Logger
}
