// Package bootstrap builds the runtime dependencies shared by the binaries,
// choosing Redis- or AWS-backed implementations when they are configured and
// in-process ones otherwise.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/internal/booking"
	"github.com/dentacare/clinic-portal/internal/changefeed"
	appconfig "github.com/dentacare/clinic-portal/internal/config"
	"github.com/dentacare/clinic-portal/internal/inflight"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildBroker fans change events out through Redis pub/sub so every API
// replica sees them, or in-process when Redis is absent.
func BuildBroker(client *redis.Client, logger *logging.Logger) changefeed.Broker {
	if client == nil {
		return changefeed.NewLocalBroker()
	}
	return changefeed.NewRedisBroker(client, logger)
}

// BuildGuard returns the in-flight guard for slot toggles and submissions.
func BuildGuard(client *redis.Client, ttl time.Duration) inflight.Guard {
	if client == nil {
		return inflight.NewLocalGuard()
	}
	return inflight.NewRedisGuard(client, "inflight:", ttl)
}

// BuildSessionStore returns where booking wizards live between requests.
func BuildSessionStore(client *redis.Client, ttl time.Duration) booking.SessionStore {
	if ttl <= 0 {
		ttl = booking.DefaultSessionTTL
	}
	if client == nil {
		return booking.NewMemorySessionStore(ttl)
	}
	return booking.NewRedisSessionStore(client, ttl)
}

// BuildRevoker returns the sign-out deny list.
func BuildRevoker(client *redis.Client) auth.Revoker {
	if client == nil {
		return auth.NewMemoryRevoker()
	}
	return auth.NewRedisRevoker(client)
}
