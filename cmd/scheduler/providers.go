package main

import (
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"github.com/jobs/dispatch/internal/scheduler"
	"github.com/jobs/dispatch/pkg/clock"
	"github.com/jobs/dispatch/pkg/config"
	"github.com/jobs/dispatch/pkg/telemetry"
	"go.uber.org/zap"
)

// ProvideRedisClient builds a redis client from typed config.
// Returns nil when redis is disabled.
func ProvideRedisClient(cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func ProvideSchedulerConfig(cfg config.Config) config.SchedulerConfig {
	return cfg.Scheduler
}

func ProvideDetectorConfig(cfg config.Config) config.DetectorConfig {
	return cfg.Detector
}

func ProvideClock() clock.Clock {
	return clock.NewSystemClock()
}

func ProvideRunner(cfg config.Config, logger *zap.Logger) scheduler.Runner {
	return scheduler.NewTaskRunner(cfg.Scheduler.MaxWorkers, logger)
}

func ProvideSlots(cfg config.Config) *scheduler.Slots {
	return scheduler.NewSlots(cfg.Scheduler.MaxWorkers)
}

func ProvideStats() *telemetry.Stats {
	return telemetry.NewStats()
}
