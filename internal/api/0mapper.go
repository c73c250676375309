package api

import (
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/scheduler"
)

type ScheduleExecutionReq struct {
	TaskName      string         `json:"task_name" binding:"required"`
	InstanceID    string         `json:"instance_id"`
	Data          map[string]any `json:"data"`
	ExecutionTime string         `json:"execution_time"`
}

type RescheduleExecutionReq struct {
	ExecutionTime string `json:"execution_time" binding:"required"`
}

type ListExecutionReq struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	TaskName string `form:"task_name"`
	Picked   string `form:"picked"`
	DueFrom  string `form:"due_from"`
	DueTo    string `form:"due_to"`
}

type ExecutionResp struct {
	TaskName            string         `json:"task_name"`
	InstanceID          string         `json:"instance_id"`
	Data                map[string]any `json:"data,omitempty"`
	ExecutionTime       time.Time      `json:"execution_time"`
	Picked              bool           `json:"picked"`
	PickedBy            string         `json:"picked_by,omitempty"`
	PickedAt            *time.Time     `json:"picked_at,omitempty"`
	LastSuccess         *time.Time     `json:"last_success,omitempty"`
	LastFailure         *time.Time     `json:"last_failure,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	CancelRequested     bool           `json:"cancel_requested"`
}

type ListExecutionResp struct {
	Data       []ExecutionResp `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

type RunningExecutionResp struct {
	TaskName   string    `json:"task_name"`
	InstanceID string    `json:"instance_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

type TaskResp struct {
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toExecutionResp(e *execution.Execution) ExecutionResp {
	return ExecutionResp{
		TaskName:            e.TaskName,
		InstanceID:          e.ID,
		Data:                e.Data,
		ExecutionTime:       e.ExecutionTime,
		Picked:              e.Picked,
		PickedBy:            e.PickedBy,
		PickedAt:            e.PickedAt,
		LastSuccess:         e.LastSuccess,
		LastFailure:         e.LastFailure,
		ConsecutiveFailures: e.ConsecutiveFailures,
		CancelRequested:     e.CancelRequested,
	}
}

func toRunningResp(ce scheduler.CurrentlyExecuting, now time.Time) RunningExecutionResp {
	return RunningExecutionResp{
		TaskName:   ce.Execution.TaskName,
		InstanceID: ce.Execution.ID,
		StartedAt:  ce.StartedAt,
		DurationMs: ce.Duration(now).Milliseconds(),
	}
}
