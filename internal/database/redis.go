package database

import (
	"context"
	"log/slog"

	"github.com/adamanr/hr_console/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisConn opens the client used by the redis session storage and
// checks it with a PING.
func NewRedisConn(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddr,
		Password: cfg.Redis.RedisPassword,
		DB:       cfg.Redis.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", slog.String("addr", cfg.Redis.RedisAddr), slog.Any("error", err))
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Successfully connected to Redis", slog.String("addr", cfg.Redis.RedisAddr))

	return rdb, nil
}
