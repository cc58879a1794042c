package middleware

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidra/vidra-api/internal/config"
)

// NewRedisClient constructs a go-redis client from RedisConfig.
// An empty Addr returns nil, which selects the in-memory rate limiter.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}
