package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

// Redis stores rows as JSON. Redis errors degrade to cache misses.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log}
}

func (r *Redis) Get(ctx context.Context, key string) ([]gradebook.StudentGradeRow, bool) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var rows []gradebook.StudentGradeRow
	if err := json.Unmarshal(b, &rows); err != nil {
		r.log.Warn("redis cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return rows, true
}

func (r *Redis) Set(ctx context.Context, key string, rows []gradebook.StudentGradeRow) {
	b, err := json.Marshal(rows)
	if err != nil {
		r.log.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		r.log.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		r.log.Warn("redis cache delete failed", "key", key, "error", err)
	}
}
