// Package cache holds grade rows fetched for one assessment item so repeated
// gradebook reads do not hit the academic API. Writes invalidate the item.
package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
)

type Driver string

const (
	DriverOff    Driver = "off"
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

// New returns the configured cache, or nil for DriverOff.
func New(driver Driver, ttl time.Duration, redisAddr string, log *logger.Logger) (gradebook.Cache, error) {
	switch driver {
	case "", DriverOff:
		return nil, nil
	case DriverMemory:
		return NewMemory(ttl, time.Now), nil
	case DriverRedis:
		if redisAddr == "" {
			return nil, fmt.Errorf("redis cache: REDIS_ADDR is empty")
		}
		return NewRedis(redis.NewClient(&redis.Options{Addr: redisAddr}), ttl, log), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", driver)
	}
}
