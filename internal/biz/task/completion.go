package task

import (
	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/schedule"
)

// OnCompleteRemove 一次性任务的默认处置：无论成败都删除记录
type OnCompleteRemove struct{}

func (OnCompleteRemove) Complete(_ execution.ExecutionComplete, ops execution.Operations) {
	_ = ops.Remove()
}

// OnCompleteReschedule 重复任务的默认处置：
// 以本次完成时间和连续失败次数询问策略，有下一次就重调度，没有就删除
type OnCompleteReschedule struct {
	Policy schedule.Policy
}

func (h OnCompleteReschedule) Complete(completed execution.ExecutionComplete, ops execution.Operations) {
	next := h.Policy.NextExecution(completed.StoppedAt, completed.ConsecutiveFailures)
	if at, ok := next.Get(); ok {
		_ = ops.Reschedule(at)
		return
	}
	_ = ops.Remove()
}
