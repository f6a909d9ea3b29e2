package inbound

import (
	"context"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-orgcreator/core"
	"github.com/nats-io/nats.go"
)

const (
	DefaultNATSPingInterval = 5 * time.Second
	DefaultNATSClientName   = "orgcreator"
)

// EventDispatcher receives decoded claim request notifications.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event ClaimRequestEvent) (DispatchResult, error)
}

type NATSConfig struct {
	URL          string
	Name         string
	Subject      string
	QueueGroup   string
	PingInterval time.Duration
	// MaxReconnects below zero reconnects forever.
	MaxReconnects int
}

func (c NATSConfig) withDefaults() NATSConfig {
	if strings.TrimSpace(c.URL) == "" {
		c.URL = nats.DefaultURL
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultNATSClientName
	}
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = DefaultSubject
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultNATSPingInterval
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	return c
}

// NATSSubscriber feeds claim request notifications from NATS into a
// dispatcher. With a queue group set, each notification reaches one
// orchestrator replica.
type NATSSubscriber struct {
	config     NATSConfig
	dispatcher EventDispatcher
	logger     core.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
	ctx  context.Context
}

func NewNATSSubscriber(cfg NATSConfig, dispatcher EventDispatcher, logger core.Logger) *NATSSubscriber {
	if logger == nil {
		logger = glog.Nop()
	}
	return &NATSSubscriber{
		config:     cfg.withDefaults(),
		dispatcher: dispatcher,
		logger:     logger,
		ctx:        context.Background(),
	}
}

// Start connects and subscribes. ctx scopes every dispatch made on behalf of
// received messages.
func (s *NATSSubscriber) Start(ctx context.Context) error {
	if s == nil || s.dispatcher == nil {
		return inboundInternal("inbound: nats subscriber is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := s.config
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.PingInterval(cfg.PingInterval),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return inboundWrapUnavailable(err, "inbound: connect nats", map[string]any{"url": cfg.URL})
	}

	var sub *nats.Subscription
	if group := strings.TrimSpace(cfg.QueueGroup); group != "" {
		sub, err = conn.QueueSubscribe(cfg.Subject, group, s.HandleMsg)
	} else {
		sub, err = conn.Subscribe(cfg.Subject, s.HandleMsg)
	}
	if err != nil {
		conn.Close()
		return inboundWrapUnavailable(err, "inbound: subscribe "+cfg.Subject, map[string]any{
			"subject":     cfg.Subject,
			"queue_group": cfg.QueueGroup,
		})
	}

	s.mu.Lock()
	s.conn = conn
	s.sub = sub
	s.ctx = ctx
	s.mu.Unlock()
	s.logger.Info("nats subscriber started", "subject", cfg.Subject, "queue_group", cfg.QueueGroup)
	return nil
}

// HandleMsg decodes one notification and dispatches it. Invalid payloads are
// logged and dropped.
func (s *NATSSubscriber) HandleMsg(msg *nats.Msg) {
	if s == nil || msg == nil {
		return
	}
	event, err := DecodeClaimRequestEvent(msg.Data)
	if err != nil {
		s.logger.Warn("claim request event rejected", "subject", msg.Subject, "error", err.Error())
		return
	}
	result, err := s.dispatcher.Dispatch(s.dispatchContext(), event)
	if err != nil {
		s.logger.Error("claim request event dispatch failed", "subject", msg.Subject, "claim_id", event.ID, "error", err.Error())
		return
	}
	s.logger.Debug("claim request event dispatched",
		"subject", msg.Subject,
		"claim_id", result.ClaimID,
		"queued", result.Queued,
		"deduped", result.Deduped,
	)
}

// Ping reports whether the broker connection is up.
func (s *NATSSubscriber) Ping(context.Context) error {
	if s == nil {
		return inboundUnavailable("inbound: nats subscriber is nil", nil)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return inboundUnavailable("inbound: nats is not connected", map[string]any{"url": s.config.URL})
	}
	return nil
}

// Close drains the subscription and closes the connection.
func (s *NATSSubscriber) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.sub = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (s *NATSSubscriber) dispatchContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

var (
	_ EventDispatcher    = (*Dispatcher)(nil)
	_ core.HealthChecker = (*NATSSubscriber)(nil)
)
