package task

import (
	"context"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/schedule"
)

// Handler 任务处理函数，返回 error 表示本次执行失败
// panic 会在派发边界被捕获并转为失败，不会传播到调度循环
type Handler func(ctx context.Context, instance execution.TaskInstance) error

// Task 静态任务定义，按 Name 绑定
// 两类任务：一次性（Schedule 为空，完成后删除）与重复（Schedule 非空，
// 完成后按策略重调度）；OnComplete 非空时覆盖默认处置
type Task struct {
	Name       string
	Run        Handler
	Schedule   schedule.Policy
	OnComplete execution.CompletionHandler
}

// OneTime 一次性任务：成功或失败都删除记录
func OneTime(name string, run Handler) *Task {
	return &Task{Name: name, Run: run}
}

// Recurring 重复任务：完成后按策略计算下一次执行时间
func Recurring(name string, policy schedule.Policy, run Handler) *Task {
	return &Task{Name: name, Run: run, Schedule: policy}
}

// Custom 自定义完成处置的任务，用于测试和调用方自带的重试/退避逻辑
func Custom(name string, onComplete execution.CompletionHandler, run Handler) *Task {
	return &Task{Name: name, Run: run, OnComplete: onComplete}
}

// Instance 构造该任务的一个可调度实例
func (t *Task) Instance(id string) execution.TaskInstance {
	return execution.NewTaskInstance(t.Name, id)
}

// InstanceWithData 构造带实例数据的可调度实例
func (t *Task) InstanceWithData(id string, data map[string]any) execution.TaskInstance {
	return execution.NewTaskInstance(t.Name, id).WithData(data)
}

// CompletionHandler 解析实际生效的完成处理器：
// 显式指定 > 重复任务默认重调度 > 一次性任务默认删除
func (t *Task) CompletionHandler() execution.CompletionHandler {
	if t.OnComplete != nil {
		return t.OnComplete
	}
	if t.Schedule != nil {
		return OnCompleteReschedule{Policy: t.Schedule}
	}
	return OnCompleteRemove{}
}
