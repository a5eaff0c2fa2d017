package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "auth:revoked:"

var client *redis.Client

// Init opens the shared Redis connection and verifies it with a ping
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the shared client (nil before Init)
func GetClient() *redis.Client {
	return client
}

// SetClient swaps the shared client; used by tests running against miniredis
func SetClient(c *redis.Client) {
	client = c
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// RevokeToken stores a logged-out access token until it would have expired anyway
func RevokeToken(ctx context.Context, token string, expiry time.Duration) error {
	if client == nil {
		return nil
	}
	if expiry <= 0 {
		return nil
	}

	if err := client.Set(ctx, revokedTokenPrefix+token, "1", expiry).Err(); err != nil {
		logger.Error("Failed to revoke token", err, nil)
		return err
	}

	logger.Debug("Token revoked", map[string]interface{}{
		"expiry": expiry.String(),
	})
	return nil
}

// IsTokenRevoked reports whether the token was revoked by logout
func IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	if client == nil {
		return false, nil
	}

	n, err := client.Exists(ctx, revokedTokenPrefix+token).Result()
	if err != nil {
		logger.Error("Failed to check token revocation", err, nil)
		return false, err
	}
	return n > 0, nil
}
