package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"exboard/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 5)
	v.SetDefault("server.write_timeout_seconds", 30)

	v.SetDefault("fleet.timeout_seconds", int(constants.DefaultHTTPTimeout/time.Second))
	v.SetDefault("fleet.retry.max_attempts", 1)
	v.SetDefault("fleet.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("fleet.retry.max_interval", 5*time.Second)
	v.SetDefault("fleet.retry.multiplier", 2.0)

	v.SetDefault("session.store", constants.StoreTypeMemory)
	v.SetDefault("session.ttl_seconds", int(constants.DefaultSessionTTL/time.Second))
	v.SetDefault("session.max_sessions", constants.DefaultMaxSessions)

	v.SetDefault("redis.port", 6379)

	v.SetDefault("display.timezone", "Local")
	v.SetDefault("display.date_time_layout", constants.DefaultDateTimeLayout)
	v.SetDefault("display.collation", constants.DefaultCollationTag)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rate_limit.rps", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.cleanup_interval", 300)
	v.SetDefault("rate_limit.max_age", 600)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("fleet.server", "FLEET_SERVER")
	v.BindEnv("fleet.database", "FLEET_DATABASE")
	v.BindEnv("fleet.username", "FLEET_USERNAME")
	v.BindEnv("fleet.password", "FLEET_PASSWORD")
	v.BindEnv("fleet.session_id", "FLEET_SESSION_ID")

	v.BindEnv("session.store", "SESSION_STORE")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("display.timezone", "DISPLAY_TIMEZONE")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
}
