package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPollIntervalMillis = 150000
	DefaultLockName           = "blockchainModification"
)

// PolicyConfig selects, per non-accept decision, whether the claim is rejected
// with a write-back or silently aborted.
type PolicyConfig struct {
	RoleMismatch   string `koanf:"role_mismatch" mapstructure:"role_mismatch"`
	MissingOrgName string `koanf:"missing_org_name" mapstructure:"missing_org_name"`
	InvalidOrgName string `koanf:"invalid_org_name" mapstructure:"invalid_org_name"`
	AlreadyOwns    string `koanf:"already_owns" mapstructure:"already_owns"`
}

type Config struct {
	ServiceName    string       `koanf:"service_name" mapstructure:"service_name"`
	ExpectedRole   string       `koanf:"expected_role" mapstructure:"expected_role"`
	OrgNamespace   string       `koanf:"org_namespace" mapstructure:"org_namespace"`
	PollIntervalMS int          `koanf:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	LockName       string       `koanf:"lock_name" mapstructure:"lock_name"`
	Policy         PolicyConfig `koanf:"policy" mapstructure:"policy"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "orgcreator",
		PollIntervalMS: DefaultPollIntervalMillis,
		LockName:       DefaultLockName,
		Policy: PolicyConfig{
			RoleMismatch:   string(ActionAbort),
			MissingOrgName: string(ActionReject),
			InvalidOrgName: string(ActionReject),
			AlreadyOwns:    string(ActionReject),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.PollIntervalMS < 0 {
		return fmt.Errorf("core: poll_interval_ms must be >= 0")
	}
	for key, value := range map[string]string{
		"policy.role_mismatch":    c.Policy.RoleMismatch,
		"policy.missing_org_name": c.Policy.MissingOrgName,
		"policy.invalid_org_name": c.Policy.InvalidOrgName,
		"policy.already_owns":     c.Policy.AlreadyOwns,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, ok := parseAction(value); !ok {
			return fmt.Errorf("core: %s has invalid action %q", key, value)
		}
	}
	return nil
}

// ValidateForHandling checks the settings the orchestrator cannot run without.
func (c Config) ValidateForHandling() error {
	if strings.TrimSpace(c.ExpectedRole) == "" {
		return fmt.Errorf("core: expected_role is required")
	}
	if strings.TrimSpace(c.OrgNamespace) == "" {
		return fmt.Errorf("core: org_namespace is required")
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return time.Duration(DefaultPollIntervalMillis) * time.Millisecond
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// DecisionPolicy resolves the configured action set, falling back to the
// defaults for blank entries.
func (c Config) DecisionPolicy() DecisionPolicy {
	defaults := DefaultDecisionPolicy()
	return DecisionPolicy{
		RoleMismatch:   actionOr(c.Policy.RoleMismatch, defaults.RoleMismatch),
		MissingOrgName: actionOr(c.Policy.MissingOrgName, defaults.MissingOrgName),
		InvalidOrgName: actionOr(c.Policy.InvalidOrgName, defaults.InvalidOrgName),
		AlreadyOwns:    actionOr(c.Policy.AlreadyOwns, defaults.AlreadyOwns),
	}
}

func actionOr(value string, fallback Action) Action {
	if action, ok := parseAction(value); ok {
		return action
	}
	return fallback
}
