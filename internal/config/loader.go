package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "atelier.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ATELIER_PORT")
	setString(&cfg.Server.CORSOrigin, "ATELIER_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ATELIER_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ATELIER_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ATELIER_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ATELIER_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ATELIER_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Anthropic.BaseURL, "ANTHROPIC_BASE_URL")
	setString(&cfg.Anthropic.DefaultModel, "ATELIER_MODEL")
	setInt(&cfg.Anthropic.MaxTokens, "ATELIER_MAX_TOKENS")
	setString(&cfg.FlowRunner.BaseURL, "FLOW_RUNNER_URL")
	setString(&cfg.FlowRunner.APIKey, "FLOW_RUNNER_API_KEY")
	setDuration(&cfg.FlowRunner.Timeout, "FLOW_RUNNER_TIMEOUT")
	setString(&cfg.Logging.Level, "ATELIER_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ATELIER_LOG_SERVICE")
	setFloat64(&cfg.Rate.RequestsPerSecond, "ATELIER_RATE_RPS")
	setInt(&cfg.Rate.Burst, "ATELIER_RATE_BURST")
	setInt(&cfg.Breaker.MaxFailures, "ATELIER_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "ATELIER_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxBytes, "ATELIER_CACHE_MAX_BYTES")
	setDuration(&cfg.Cache.TTL, "ATELIER_CACHE_TTL")
	setString(&cfg.Suggestions.Model, "ATELIER_SUGGESTIONS_MODEL")
	setInt(&cfg.Suggestions.MaxTokens, "ATELIER_SUGGESTIONS_MAX_TOKENS")
	setBool(&cfg.Auth.Enabled, "ATELIER_AUTH_ENABLED")
	setInt(&cfg.Auth.BcryptCost, "ATELIER_BCRYPT_COST")
	setBool(&cfg.Telemetry.Enabled, "ATELIER_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "ATELIER_OTEL_ENDPOINT")
}

// validate rejects configurations that cannot produce a working server.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server port must not be empty")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres dsn must not be empty")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres max_conns must be at least 1")
	}
	if cfg.Anthropic.MaxTokens < 1 {
		return errors.New("anthropic max_tokens must be at least 1")
	}
	if cfg.Auth.Enabled && cfg.Auth.BcryptCost < 10 {
		return errors.New("auth bcrypt_cost must be at least 10")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
