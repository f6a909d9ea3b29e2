package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the provisioning orchestrator. It is safe for concurrent use;
// the only shared state between Handle calls is the mutation lock.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	errorReporter   ErrorReporter
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	identity        IdentityService
	tokenDecoder    ClaimTokenDecoder
	mutationLock    *MutationLock
	outcomeRecorder ClaimOutcomeRecorder
	validator       ClaimValidator
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ErrorReporter   ErrorReporter
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Identity        IdentityService
	TokenDecoder    ClaimTokenDecoder
	MutationLock    *MutationLock
	OutcomeRecorder ClaimOutcomeRecorder
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("orgcreator", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("orgcreator"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.identity == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: identity service is required"))
	}
	if builder.tokenDecoder == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: claim token decoder is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if err := finalConfig.ValidateForHandling(); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.mutationLock == nil {
		builder.mutationLock = NewMutationLock(finalConfig.LockName)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		errorReporter:   builder.errorReporter,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		identity:        builder.identity,
		tokenDecoder:    builder.tokenDecoder,
		mutationLock:    builder.mutationLock,
		outcomeRecorder: builder.outcomeRecorder,
		validator:       NewClaimValidator(finalConfig.ExpectedRole, finalConfig.DecisionPolicy()),
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ErrorReporter:   s.errorReporter,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Identity:        s.identity,
		TokenDecoder:    s.tokenDecoder,
		MutationLock:    s.mutationLock,
		OutcomeRecorder: s.outcomeRecorder,
	}
}

// Handle drives one claim to a terminal outcome. Business outcomes return a
// nil error; only identity service failures propagate.
func (s *Service) Handle(ctx context.Context, claimID string) (Outcome, error) {
	return s.HandleFrom(ctx, claimID, SourceManual)
}

// HandleFrom is Handle with the producer recorded on logs, metrics and the
// outcome ledger.
func (s *Service) HandleFrom(ctx context.Context, claimID string, source string) (outcome Outcome, err error) {
	if s == nil {
		return "", fmt.Errorf("core: service is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := s.now()
	claimID = strings.TrimSpace(claimID)
	source = strings.TrimSpace(source)
	fields := map[string]any{
		"claim_id": claimID,
		"source":   source,
	}
	var decision Decision
	defer func() {
		fields["outcome"] = string(outcome)
		fields["decision"] = string(decision.Kind)
		if decision.OrgName != "" {
			fields["org_name"] = decision.OrgName
		}
		if decision.Owner != "" {
			fields["owner"] = decision.Owner
		}
		s.recordOutcome(ctx, claimID, source, outcome, decision, err)
		s.observeOperation(ctx, startedAt, "handle", err, fields)
	}()

	if claimID == "" {
		return "", s.mapError(fmt.Errorf("core: claim id is required"))
	}

	claim, err := s.identity.GetClaimByID(ctx, claimID)
	if err != nil {
		if IsClaimNotFound(err) {
			decision = s.validator.Validate(nil, ClaimToken{})
			s.logInfo(ctx, "claim not found, aborting", fields)
			return OutcomeAborted, nil
		}
		return "", s.mapError(wrapStepError(err, ServiceErrorIdentityUnavailable, "core: get claim", fields))
	}

	var token ClaimToken
	if !claim.Resolved() {
		token, err = s.tokenDecoder.Decode(claim.Token)
		if err != nil {
			decision = Decision{Kind: DecisionAbort, Action: ActionAbort, Reason: err.Error()}
			s.logWarn(ctx, "claim token could not be decoded, aborting", mergeFields(fields, map[string]any{
				"reason": err.Error(),
			}))
			return OutcomeAborted, nil
		}
	}

	decision = s.validator.Validate(&claim, token)
	if decision.Accepted() {
		owned, lookupErr := s.identity.GetOrganizationsOwnedBy(ctx, decision.Owner)
		if lookupErr != nil {
			return "", s.mapError(wrapStepError(lookupErr, ServiceErrorIdentityUnavailable, "core: get organizations by owner", fields))
		}
		decision = s.validator.CheckOwnership(decision, owned)
	}

	if !decision.Accepted() {
		if !decision.Rejects() {
			s.logInfo(ctx, "claim aborted", mergeFields(fields, map[string]any{
				"decision": string(decision.Kind),
				"reason":   decision.Reason,
			}))
			return OutcomeAborted, nil
		}
		rejectErr := s.identity.RejectClaimRequest(ctx, RejectClaimRequest{
			ID:              claim.ID,
			Requester:       claim.Requester,
			RejectionReason: decision.Reason,
		})
		if rejectErr != nil {
			return "", s.mapError(wrapStepError(rejectErr, ServiceErrorRejectFailed, "core: reject claim request", fields))
		}
		fields["reason"] = decision.Reason
		return OutcomeRejected, nil
	}

	if err := s.provision(ctx, decision, fields); err != nil {
		return "", err
	}

	issueErr := s.identity.IssueClaimRequest(ctx, IssueClaimRequest{
		Requester:         claim.Requester,
		Token:             claim.Token,
		ID:                claim.ID,
		SubjectAgreement:  claim.SubjectAgreement,
		RegistrationKinds: append([]string(nil), claim.RegistrationKinds...),
		PublishOnChain:    false,
	})
	if issueErr != nil {
		return "", s.mapError(wrapStepError(issueErr, ServiceErrorAcknowledgeFailed, "core: issue claim request", fields))
	}
	return OutcomeAccepted, nil
}

// provision runs the ledger mutations for an accepted claim under the
// mutation lock.
func (s *Service) provision(ctx context.Context, decision Decision, fields map[string]any) error {
	namespace := s.config.OrgNamespace
	return s.mutationLock.WithLock(ctx, func(ctx context.Context) error {
		s.logDebug(ctx, "mutation lock acquired", mergeFields(fields, map[string]any{"lock": s.mutationLock.Name()}))
		if err := s.identity.CreateOrganization(ctx, OrganizationCreationRequest{
			OrgName:   decision.OrgName,
			Namespace: namespace,
		}); err != nil {
			return s.mapError(wrapStepError(err, ServiceErrorLedgerWriteFailed, "core: create organization", fields))
		}
		if err := s.identity.ChangeOrgOwnership(ctx, ChangeOwnershipRequest{
			Namespace: decision.OrgName + "." + namespace,
			NewOwner:  decision.Owner,
		}); err != nil {
			return s.mapError(wrapStepError(err, ServiceErrorLedgerWriteFailed, "core: change organization ownership", fields))
		}
		return nil
	})
}

func (s *Service) recordOutcome(
	ctx context.Context,
	claimID string,
	source string,
	outcome Outcome,
	decision Decision,
	handleErr error,
) {
	if s == nil || s.outcomeRecorder == nil || claimID == "" {
		return
	}
	record := ClaimOutcome{
		ClaimID:  claimID,
		Outcome:  outcome,
		Decision: decision.Kind,
		Reason:   decision.Reason,
		OrgName:  decision.OrgName,
		Owner:    decision.Owner,
		Source:   source,
	}
	if handleErr != nil {
		record.Outcome = OutcomeFailed
		record.Error = handleErr.Error()
	}
	if _, err := s.outcomeRecorder.Record(ctx, record); err != nil {
		s.logWarn(ctx, "claim outcome could not be recorded", map[string]any{
			"claim_id": claimID,
			"error":    err.Error(),
		})
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	merged := cloneFields(base)
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}
