// Package config loads orchestrator configuration from defaults, an optional
// YAML file and ORCH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestrator daemon.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Store      StoreConfig      `mapstructure:"store"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Deployment DeploymentConfig `mapstructure:"deployment"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// BaseURL prefixes the claim links encoded in QR codes.
	BaseURL string `mapstructure:"base_url"`
	// RateLimit is the number of requests per client IP per RateWindow; 0 disables limiting.
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// StoreConfig selects the event store.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // memory | postgres | sqlite
	PGDSN      string `mapstructure:"pg_dsn"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// AuthConfig seeds one API key bound to a caller address.
type AuthConfig struct {
	APIKey        string `mapstructure:"api_key"`
	CallerAddress string `mapstructure:"caller_address"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
// Precedence (highest to lowest):
// 1. Environment variables (ORCH_HTTP_PORT, ORCH_STORE_DRIVER, ...)
// 2. The YAML file at path
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("store.pg_dsn", "ORCH_STORE_PG_DSN", "ORCH_PG_DSN")
	v.BindEnv("store.sqlite_path", "ORCH_STORE_SQLITE_PATH", "ORCH_SQLITE_PATH")
	v.BindEnv("auth.api_key", "ORCH_AUTH_API_KEY", "ORCH_API_KEY")
	v.BindEnv("auth.caller_address", "ORCH_AUTH_CALLER_ADDRESS", "ORCH_CALLER_ADDRESS")
	v.BindEnv("deployment.milestone_update_timelock", "ORCH_DEPLOYMENT_MILESTONE_UPDATE_TIMELOCK", "ORCH_MILESTONE_UPDATE_TIMELOCK")
	v.BindEnv("deployment.initial_funding", "ORCH_DEPLOYMENT_INITIAL_FUNDING", "ORCH_TOKEN_SUPPLY")
	v.BindEnv("http.request_timeout", "ORCH_HTTP_REQUEST_TIMEOUT", "ORCH_REQUEST_TIMEOUT")
	v.BindEnv("http.rate_limit", "ORCH_HTTP_RATE_LIMIT", "ORCH_RATE_LIMIT")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if manifest := cfg.Deployment.Manifest; manifest != "" {
		dep, err := LoadDeployment(manifest)
		if err != nil {
			return nil, err
		}
		dep.Manifest = manifest
		cfg.Deployment = dep
	}
	cfg.Deployment.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "3001")
	v.SetDefault("http.request_timeout", "30s")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.base_url", "http://localhost:3001")
	v.SetDefault("http.rate_limit", 600)
	v.SetDefault("http.rate_window", "1m")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.pg_dsn", "")
	v.SetDefault("store.sqlite_path", "data/events.db")

	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.caller_address", "")

	d := DefaultDeployment()
	v.SetDefault("deployment.manifest", "")
	v.SetDefault("deployment.workflow", d.Workflow)
	v.SetDefault("deployment.processor", d.Processor)
	v.SetDefault("deployment.funding_manager", d.FundingManager)
	v.SetDefault("deployment.bounty_manager", d.BountyManager)
	v.SetDefault("deployment.milestone_manager", d.MilestoneManager)
	v.SetDefault("deployment.token_symbol", d.TokenSymbol)
	v.SetDefault("deployment.conformant_token", d.ConformantToken)
	v.SetDefault("deployment.owners", d.Owners)
	v.SetDefault("deployment.initial_funding", d.InitialFunding)
	v.SetDefault("deployment.milestone_update_timelock", d.MilestoneUpdateTimelock)
	v.SetDefault("deployment.roles", []map[string]string{})
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Port) == "" {
		errs = append(errs, errors.New("http.port required"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("http.request_timeout must be positive"))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must not be negative"))
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateWindow <= 0 {
		errs = append(errs, errors.New("http.rate_window must be positive when rate limiting"))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PGDSN == "" {
			errs = append(errs, errors.New("store.pg_dsn required when store.driver=postgres"))
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path required when store.driver=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if (c.Auth.APIKey == "") != (c.Auth.CallerAddress == "") {
		errs = append(errs, errors.New("auth.api_key and auth.caller_address must be set together"))
	}
	if err := c.Deployment.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
