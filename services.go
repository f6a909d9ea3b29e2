package orgcreator

import "github.com/goliatone/go-orgcreator/core"

type Config = core.Config

type PolicyConfig = core.PolicyConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type IdentityService = core.IdentityService
type ClaimTokenDecoder = core.ClaimTokenDecoder
type ClaimOutcomeRecorder = core.ClaimOutcomeRecorder
type ClaimOutcomeReader = core.ClaimOutcomeReader
type MutationLock = core.MutationLock

type Outcome = core.Outcome
type ClaimOutcome = core.ClaimOutcome
type ClaimOutcomeFilter = core.ClaimOutcomeFilter

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithErrorReporter   = core.WithErrorReporter
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithIdentityService = core.WithIdentityService
	WithTokenDecoder    = core.WithTokenDecoder
	WithMutationLock    = core.WithMutationLock
	WithOutcomeRecorder = core.WithOutcomeRecorder
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewMutationLock(name string) *MutationLock {
	return core.NewMutationLock(name)
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
