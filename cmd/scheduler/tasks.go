package main

import (
	"context"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/schedule"
	"github.com/jobs/dispatch/internal/biz/task"
	"go.uber.org/zap"
)

// builtinTasks 进程自带的任务，业务任务通过 API 以实例形式调度
func builtinTasks(logger *zap.Logger) []*task.Task {
	heartbeat := task.Recurring("system:heartbeat-log", schedule.NewFixedDelay(time.Minute),
		func(ctx context.Context, inst execution.TaskInstance) error {
			logger.Info("scheduler heartbeat", zap.String("instance", inst.Key()))
			return nil
		})

	echo := task.OneTime("demo:echo",
		func(ctx context.Context, inst execution.TaskInstance) error {
			logger.Info("echo task executed",
				zap.String("instance", inst.Key()),
				zap.Any("data", inst.Data))
			return nil
		})

	return []*task.Task{heartbeat, echo}
}
