// Copyright 2024-2026 Aiku AI

package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/aiku/wa-pairing/pkg/ratelimit")

// windowScript increments the counter and sets its TTL on the first hit so
// the window starts with the first request.
const windowScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

const defaultKeyPrefix = "wapair:ratelimit:"

// Redis is a fixed window limiter shared by every replica using the same
// Redis database. Redis failures deny the request.
type Redis struct {
	cmd    redis.Cmdable
	closer func() error
	limit  int
	window int
	prefix string
	log    zerolog.Logger
}

// NewRedis connects to the Redis server in cfg.Redis.
func NewRedis(cfg Config, log zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	r := NewRedisWithClient(client, cfg, log)
	r.closer = client.Close
	return r
}

// NewRedisWithClient uses an existing client. Close does not close it.
func NewRedisWithClient(cmd redis.Cmdable, cfg Config, log zerolog.Logger) *Redis {
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{
		cmd:    cmd,
		limit:  cfg.Limit,
		window: int(cfg.Window.Seconds()),
		prefix: prefix,
		log:    log,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.ratelimit.allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVAL"),
	)

	count, err := r.cmd.Eval(ctx, windowScript, []string{r.prefix + key}, r.window).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn().Err(err).Msg("Rate limit check failed, denying request")
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(r.limit), nil
}

func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
