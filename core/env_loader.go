package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	ServiceName          string `env:"ORG_CREATOR_SERVICE_NAME"`
	ExpectedRole         string `env:"REQUEST_NEW_ORG_ROLE"`
	OrgNamespace         string `env:"ORG_NAMESPACE"`
	PollIntervalMS       int    `env:"REQUEST_POLLING_INTERVAL"`
	LockName             string `env:"ORG_CREATOR_LOCK_NAME"`
	RoleMismatchAction   string `env:"ORG_CREATOR_ROLE_MISMATCH_ACTION"`
	MissingOrgNameAction string `env:"ORG_CREATOR_MISSING_ORG_NAME_ACTION"`
	InvalidOrgNameAction string `env:"ORG_CREATOR_INVALID_ORG_NAME_ACTION"`
	AlreadyOwnsAction    string `env:"ORG_CREATOR_ALREADY_OWNS_ACTION"`
}

// EnvConfigLoader reads the orchestrator settings from the process
// environment. Unset variables are left out of the raw map so defaults apply.
type EnvConfigLoader struct {
	Environment map[string]string
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	var parsed envConfig
	var err error
	if l.Environment != nil {
		err = env.ParseWithOptions(&parsed, env.Options{Environment: l.Environment})
	} else {
		err = env.Parse(&parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("core: parse env: %w", err)
	}

	raw := map[string]any{}
	putString(raw, "service_name", parsed.ServiceName)
	putString(raw, "expected_role", parsed.ExpectedRole)
	putString(raw, "org_namespace", parsed.OrgNamespace)
	putString(raw, "lock_name", parsed.LockName)
	if parsed.PollIntervalMS > 0 {
		raw["poll_interval_ms"] = parsed.PollIntervalMS
	}

	policy := map[string]any{}
	putString(policy, "role_mismatch", parsed.RoleMismatchAction)
	putString(policy, "missing_org_name", parsed.MissingOrgNameAction)
	putString(policy, "invalid_org_name", parsed.InvalidOrgNameAction)
	putString(policy, "already_owns", parsed.AlreadyOwnsAction)
	if len(policy) > 0 {
		raw["policy"] = policy
	}
	return raw, nil
}

func putString(target map[string]any, key string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		target[key] = trimmed
	}
}
