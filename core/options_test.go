package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := newTestService(newRecordingIdentity())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.MetricsRecorder == nil {
		t.Fatalf("expected nop metrics recorder")
	}
	if deps.MutationLock == nil || deps.MutationLock.Name() != DefaultLockName {
		t.Fatalf("expected default mutation lock, got %+v", deps.MutationLock)
	}
	if got := svc.Config().ServiceName; got != "orgcreator" {
		t.Fatalf("expected default service_name=orgcreator, got %q", got)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := newCaptureLogger()
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	resolved := testConfig()
	resolved.ServiceName = "resolved"
	resolved.LockName = "resolvedLock"
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	recorder := &capturingRecorder{}

	svc, err := newTestService(newRecordingIdentity(),
		WithLogger(customLogger),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithOutcomeRecorder(recorder),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.ConfigProvider != configProvider || deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected config overrides to be kept")
	}
	if deps.OutcomeRecorder != recorder {
		t.Fatalf("expected outcome recorder override")
	}
	if got := deps.ErrorFactory("boom").Message; got != "custom:boom" {
		t.Fatalf("expected custom error factory, got %q", got)
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	if got := deps.MutationLock.Name(); got != "resolvedLock" {
		t.Fatalf("expected lock named from resolved config, got %q", got)
	}
}

func TestNewService_BuildErrorsGoThroughMapper(t *testing.T) {
	_, err := NewService(testConfig(), WithTokenDecoder(stubTokenDecoder{}))
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected mapped build error, got %v", err)
	}
	if rich.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", rich.TextCode)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticConfigLoader(map[string]any{
		"service_name":     "from-config",
		"expected_role":    "loaded-role",
		"org_namespace":    "loaded.ns",
		"poll_interval_ms": 60000,
		"policy": map[string]any{
			"role_mismatch": "reject",
		},
	}))

	svc, err := NewService(Config{ExpectedRole: testRole},
		WithIdentityService(newRecordingIdentity()),
		WithTokenDecoder(stubTokenDecoder{}),
		WithConfigProvider(provider),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "from-config" || cfg.OrgNamespace != "loaded.ns" {
		t.Fatalf("expected loaded values, got %+v", cfg)
	}
	if cfg.ExpectedRole != testRole {
		t.Fatalf("expected runtime role to win, got %q", cfg.ExpectedRole)
	}
	if cfg.PollIntervalMS != 60000 {
		t.Fatalf("expected loaded poll interval, got %d", cfg.PollIntervalMS)
	}
	if cfg.LockName != DefaultLockName {
		t.Fatalf("expected default lock name, got %q", cfg.LockName)
	}
	policy := cfg.DecisionPolicy()
	if policy.RoleMismatch != ActionReject || policy.AlreadyOwns != ActionReject {
		t.Fatalf("unexpected policy: %+v", policy)
	}
}

func TestCfgxConfigProvider_RejectsInvalidLoadedConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticConfigLoader(map[string]any{
		"policy": map[string]any{"already_owns": "explode"},
	}))
	if _, err := provider.Load(context.Background(), DefaultConfig()); err == nil {
		t.Fatalf("expected invalid policy action to fail validation")
	}
}
