package orgcreator

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-orgcreator/adapters/gocommand"
	"github.com/goliatone/go-orgcreator/adapters/gojob"
	"github.com/goliatone/go-orgcreator/adapters/gologger"
	"github.com/goliatone/go-orgcreator/core"
	"github.com/goliatone/go-orgcreator/identity"
	"github.com/goliatone/go-orgcreator/inbound"
	"github.com/goliatone/go-orgcreator/metrics"
	"github.com/goliatone/go-orgcreator/polling"
	"github.com/goliatone/go-orgcreator/server"
	sqlstore "github.com/goliatone/go-orgcreator/store/sql"
	"github.com/goliatone/go-orgcreator/worker"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"golang.org/x/sync/errgroup"
)

type identityBackend interface {
	core.IdentityService
	core.HealthChecker
}

// Run wires the service and blocks until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	zapLogger, err := gologger.NewZap(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	provider := gologger.NewZapProvider(zapLogger)
	logger := provider.GetLogger("orgcreator")

	client, err := sqlstore.OpenPersistence(ctx, sqlstore.PersistenceConfig{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}
	var cacheService repositorycache.CacheService
	if cfg.OutcomeCacheTTL > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.OutcomeCacheTTL
		cacheService, err = repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return fmt.Errorf("outcome cache: %w", err)
		}
	}
	outcomes, err := factory.OutcomeStore(cacheService)
	if err != nil {
		return err
	}

	identitySvc := newIdentityBackend(cfg)
	recorder := metrics.NewPrometheusRecorder(nil)
	reporter := core.LogErrorReporter{Logger: provider.GetLogger("errors")}

	service, err := newCoreService(core.EnvConfigLoader{},
		core.WithLoggerProvider(provider),
		core.WithMetricsRecorder(recorder),
		core.WithErrorReporter(reporter),
		core.WithIdentityService(identitySvc),
		core.WithTokenDecoder(identity.NewJWTClaimTokenDecoder()),
		core.WithOutcomeRecorder(outcomes),
	)
	if err != nil {
		return err
	}

	subs, err := gocommand.RegisterOrgCreator(gocommand.NewRegistryAdapter(gocmd.NewRegistry()), service, outcomes)
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()

	queue := gojob.NewMemoryQueue()
	defer func() { _ = queue.Close() }()
	retryPolicy := gojob.DefaultRetryPolicy()

	pool := worker.NewPool(gojob.NewDequeuerAdapter(queue, retryPolicy), worker.ClaimHandler(gocommand.DispatchHandleClaim), cfg.Workers)
	pool.RetryPolicy = retryPolicy
	pool.Logger = provider.GetLogger("worker")
	pool.AddHook(worker.LoggingHook{Logger: pool.Logger, Reporter: reporter})

	claimStore := inbound.NewInMemoryClaimStore()
	pool.AddHook(inbound.LeaseHook{Store: claimStore, Logger: provider.GetLogger("inbound")})
	dispatcher := inbound.NewDispatcher(claimStore, gojob.NewEnqueuerAdapter(queue))
	dispatcher.Logger = provider.GetLogger("inbound")

	poller := polling.NewPoller(identitySvc, dispatcher, service.Config(), cfg.IssuerDID)
	poller.Logger = provider.GetLogger("polling")

	liveness := map[string]core.HealthChecker{"identity": identitySvc}
	if strings.TrimSpace(cfg.NATSURL) != "" {
		subscriber := inbound.NewNATSSubscriber(inbound.NATSConfig{
			URL:        cfg.NATSURL,
			QueueGroup: cfg.NATSQueueGroup,
		}, dispatcher, provider.GetLogger("nats"))
		if err := subscriber.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = subscriber.Close() }()
		liveness["nats"] = subscriber
	} else {
		logger.Warn("nats url not set, relying on polling only")
	}

	router := server.NewRouter(server.Options{
		Liveness:  liveness,
		Readiness: map[string]core.HealthChecker{"queue": queue},
		Outcomes:  outcomes,
		Metrics:   recorder.Handler(),
		Logger:    provider.GetLogger("http"),
	})
	httpServer := server.New(cfg.Addr(), router, provider.GetLogger("http"))

	logger.Info("orgcreator starting",
		"addr", cfg.Addr(),
		"identity_driver", cfg.IdentityDriver,
		"db_driver", cfg.DBDriver,
		"workers", pool.Workers,
		"poll_interval", service.Config().PollInterval().String(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return pool.Run(groupCtx) })
	group.Go(func() error { return poller.Run(groupCtx) })
	group.Go(func() error { return httpServer.Run(groupCtx) })
	err = group.Wait()
	logger.Info("orgcreator stopped")
	return err
}

// newCoreService builds the orchestrator with loader as its config source.
// The runtime layer stays empty so loaded settings override the defaults.
func newCoreService(loader core.RawConfigLoader, opts ...core.Option) (*core.Service, error) {
	base := []core.Option{core.WithConfigProvider(core.NewCfgxConfigProvider(loader))}
	return core.NewService(core.Config{}, append(base, opts...)...)
}

func newIdentityBackend(cfg Config) identityBackend {
	if strings.EqualFold(strings.TrimSpace(cfg.IdentityDriver), IdentityDriverMemory) {
		return identity.NewMemoryService()
	}
	return identity.NewClient(identity.ClientConfig{
		BaseURL: cfg.IdentityURL,
		Token:   cfg.IdentityToken,
		Timeout: cfg.IdentityTimeout,
	})
}
