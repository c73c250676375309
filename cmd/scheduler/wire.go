//go:build wireinject
// +build wireinject

package main

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

import (
	"github.com/google/wire"
	"github.com/jobs/dispatch/internal/api"
	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/internal/biz/task"
	"github.com/jobs/dispatch/internal/orm"
	"github.com/jobs/dispatch/internal/scheduler"
	"github.com/jobs/dispatch/pkg/config"
	"github.com/jobs/dispatch/pkg/telemetry"
	"go.uber.org/zap"
)

func InitializeApp(
	logger *zap.Logger,
	cfg config.Config,
	storage *orm.Storage,
	registry *task.Registry,
	executionRepo execution.Repo,
	instanceRepo instance.Repo,
	locker *scheduler.Locker,
) (*App, error) {
	wire.Build(
		NewApp,

		ProvideRedisClient,
		ProvideSchedulerConfig,
		ProvideDetectorConfig,
		ProvideRunner,
		ProvideSlots,
		ProvideClock,
		ProvideStats,

		wire.Bind(new(scheduler.IEmitter), new(*scheduler.EventBus)),
		wire.Bind(new(scheduler.StatsRegistry), new(*telemetry.Stats)),

		scheduler.Provider,
		api.Provider,
	)
	return nil, nil
}
