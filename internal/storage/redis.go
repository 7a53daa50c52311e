package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"OutLight/internal/config"
)

func NewRedisClient(cfg *config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	opts, err := cfg.GetRedisOptions()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		log.Error("failed to connect to Redis", "error", err, "addr", opts.Addr)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
