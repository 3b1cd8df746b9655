package config

import (
	"fmt"
	"net/url"

	"golang.org/x/text/language"

	"exboard/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateFleet(c.Fleet) },
		func(c *Config) error { return validateSession(c.Session, c.Redis) },
		func(c *Config) error { return validateDisplay(c.Display) },
		func(c *Config) error { return validateCircuitBreaker(c.CircuitBreaker) },
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateFleet(cfg FleetConfig) error {
	if cfg.Server == "" {
		return &ValidationError{Field: "fleet.server", Message: "fleet server URL is required"}
	}

	u, err := url.Parse(cfg.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "fleet.server", Message: fmt.Sprintf("invalid URL %q", cfg.Server)}
	}

	if cfg.Database == "" {
		return &ValidationError{Field: "fleet.database", Message: "database is required"}
	}

	if cfg.SessionID == "" && (cfg.Username == "" || cfg.Password == "") {
		return &ValidationError{
			Field:   "fleet.username",
			Message: "either session_id or username and password are required",
		}
	}

	if cfg.TimeoutSeconds <= 0 {
		return &ValidationError{Field: "fleet.timeout_seconds", Message: "timeout must be positive"}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return &ValidationError{Field: "fleet.retry.max_attempts", Message: "must be at least 1"}
	}

	return nil
}

func validateSession(cfg SessionConfig, redisCfg RedisConfig) error {
	switch cfg.Store {
	case constants.StoreTypeMemory:
	case constants.StoreTypeRedis:
		if redisCfg.Host == "" {
			return &ValidationError{Field: "redis.host", Message: "redis host is required for redis session store"}
		}
	default:
		return &ValidationError{
			Field:   "session.store",
			Message: fmt.Sprintf("must be %q or %q, got %q", constants.StoreTypeMemory, constants.StoreTypeRedis, cfg.Store),
		}
	}

	if cfg.TTLSeconds <= 0 {
		return &ValidationError{Field: "session.ttl_seconds", Message: "ttl must be positive"}
	}

	return nil
}

func validateDisplay(cfg DisplayConfig) error {
	if _, err := cfg.Location(); err != nil {
		return &ValidationError{Field: "display.timezone", Message: err.Error()}
	}

	if _, err := language.Parse(cfg.Collation); err != nil {
		return &ValidationError{Field: "display.collation", Message: err.Error()}
	}

	if cfg.DateTimeLayout == "" {
		return &ValidationError{Field: "display.date_time_layout", Message: "layout is required"}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureRatio < 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: fmt.Sprintf("must be between 0 and 1, got %v", cfg.FailureRatio),
		}
	}

	return nil
}
