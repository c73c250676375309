package execution

import (
	"time"
)

// TaskInstance 可调度单元的不可变标识：任务名 + 实例 ID，外加可选的实例数据
// 两个 (TaskName, ID) 相同的实例指向同一个可调度单元
type TaskInstance struct {
	TaskName string
	ID       string
	Data     map[string]any
}

func NewTaskInstance(taskName, id string) TaskInstance {
	return TaskInstance{TaskName: taskName, ID: id}
}

func (i TaskInstance) WithData(data map[string]any) TaskInstance {
	i.Data = data
	return i
}

// Key 仓储键，(TaskName, ID) 即身份
func (i TaskInstance) Key() string {
	return i.TaskName + "/" + i.ID
}

func (i TaskInstance) String() string {
	return i.Key()
}

// Execution 仓储持有的持久化执行记录
type Execution struct {
	CreatedAt time.Time
	UpdatedAt time.Time

	TaskInstance
	ExecutionTime       time.Time
	Picked              bool
	PickedBy            string
	PickedAt            *time.Time
	LastSuccess         *time.Time
	LastFailure         *time.Time
	ConsecutiveFailures int

	// CancelRequested 执行中途收到 cancel 后置位，完成时只删除不重调度
	CancelRequested bool
}

// Claim 标记执行被某个调度器实例认领
func (e *Execution) Claim(by string, at time.Time) *Execution {
	e.Picked = true
	e.PickedBy = by
	e.PickedAt = &at
	return e
}

// Unclaim 清除认领状态，回到可被 PickDue 发现的状态
func (e *Execution) Unclaim() *Execution {
	e.Picked = false
	e.PickedBy = ""
	e.PickedAt = nil
	return e
}

// RecordResult 根据执行结果更新成败时间戳与连续失败计数
func (e *Execution) RecordResult(result Result, at time.Time) *Execution {
	switch result {
	case ResultOK:
		t := at
		e.LastSuccess = &t
		e.ConsecutiveFailures = 0
	case ResultFailed:
		t := at
		e.LastFailure = &t
		e.ConsecutiveFailures++
	}
	return e
}

// IsDue 判断在 now 时刻是否到期且未被认领
func (e *Execution) IsDue(now time.Time) bool {
	return !e.Picked && !e.ExecutionTime.After(now)
}
