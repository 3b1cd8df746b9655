package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"exboard/internal/config"
	"exboard/internal/constants"
	"exboard/internal/logger"
)

// Base holds the process-wide dependencies shared by every command.
type Base struct {
	Config *config.Config
	Logger logger.Logger
	Redis  *redis.Client
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitRedis connects only when the session store is Redis-backed.
func (b *Base) InitRedis(ctx context.Context) error {
	if b.Config.Session.Store != constants.StoreTypeRedis {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", b.Config.Redis.Host, b.Config.Redis.Port),
		Password: b.Config.Redis.Password,
		DB:       b.Config.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	b.Logger.Infow("Redis connected successfully", "addr", rdb.Options().Addr)
	b.Redis = rdb
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Infow("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Infow("Application exited successfully")
	return nil
}
