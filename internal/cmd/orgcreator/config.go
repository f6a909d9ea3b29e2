// Package orgcreator parses process configuration and runs the organization
// provisioning service.
package orgcreator

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	IdentityDriverHTTP   = "http"
	IdentityDriverMemory = "memory"

	DefaultHTTPPort = 3000
)

// Config holds the process settings. Orchestrator settings such as the
// expected role and namespace are read by core.EnvConfigLoader.
type Config struct {
	HTTPPort        int           `env:"HTTP_PORT"`
	LegacyPort      int           `env:"NESTJS_PORT"`
	IdentityURL     string        `env:"CACHE_SERVER_URL"`
	IdentityToken   string        `env:"IDENTITY_TOKEN"`
	IdentityDriver  string        `env:"IDENTITY_DRIVER" envDefault:"http"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"30s"`
	IssuerDID       string        `env:"ISSUER_DID"`
	NATSURL         string        `env:"NATS_CLIENTS_URL"`
	NATSQueueGroup  string        `env:"NATS_QUEUE_GROUP" envDefault:"orgcreator"`
	DBDriver        string        `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBDSN           string        `env:"DB_DSN" envDefault:"file:orgcreator.db?cache=shared"`
	Workers         int           `env:"WORKERS" envDefault:"4"`
	OutcomeCacheTTL time.Duration `env:"OUTCOME_CACHE_TTL" envDefault:"1m"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseConfig reads the environment, then lets flags override it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = cfg.LegacyPort
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}

	fs.IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "The health and status HTTP port")
	fs.StringVar(&cfg.IdentityURL, "identity-url", cfg.IdentityURL, "The identity service base URL")
	fs.StringVar(&cfg.IdentityDriver, "identity-driver", cfg.IdentityDriver, "Identity backend: http or memory")
	fs.DurationVar(&cfg.IdentityTimeout, "identity-timeout", cfg.IdentityTimeout, "Per-call identity service timeout")
	fs.StringVar(&cfg.IssuerDID, "issuer-did", cfg.IssuerDID, "The DID this service issues claims as")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "The NATS server URL; empty disables event ingress")
	fs.StringVar(&cfg.NATSQueueGroup, "nats-queue-group", cfg.NATSQueueGroup, "The NATS queue group shared by replicas")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Outcome ledger driver: sqlite3 or postgres")
	fs.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "Outcome ledger DSN")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of claim workers")
	fs.DurationVar(&cfg.OutcomeCacheTTL, "outcome-cache-ttl", cfg.OutcomeCacheTTL, "Outcome read cache TTL; 0 disables the cache")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.IdentityDriver)) {
	case IdentityDriverHTTP:
		if strings.TrimSpace(c.IdentityURL) == "" {
			return errors.New("identity url is required for the http identity driver")
		}
	case IdentityDriverMemory:
	default:
		return fmt.Errorf("unsupported identity driver %q", c.IdentityDriver)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http port %d is out of range", c.HTTPPort)
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
