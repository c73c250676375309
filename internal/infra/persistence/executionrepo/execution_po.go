package executionrepo

import (
	"time"

	domain "github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/infra/persistence/commonrepo"
	"gorm.io/datatypes"
)

type ScheduledExecution struct {
	commonrepo.Mode
	TaskName            string            `gorm:"column:task_name;size:191;not null;uniqueIndex:idx_task_instance,priority:1"`
	InstanceID          string            `gorm:"column:instance_id;size:191;not null;uniqueIndex:idx_task_instance,priority:2"`
	InstanceData        datatypes.JSONMap `gorm:"column:instance_data;type:json"`
	ExecutionTime       time.Time         `gorm:"column:execution_time;not null;index:idx_due,priority:2"`
	Picked              bool              `gorm:"column:picked;not null;default:false;index:idx_due,priority:1"`
	PickedBy            string            `gorm:"column:picked_by;size:191;index"`
	PickedAt            *time.Time        `gorm:"column:picked_at"`
	LastSuccess         *time.Time        `gorm:"column:last_success"`
	LastFailure         *time.Time        `gorm:"column:last_failure"`
	ConsecutiveFailures int               `gorm:"column:consecutive_failures;default:0"`
	CancelRequested     bool              `gorm:"column:cancel_requested;not null;default:false"`
}

func (ScheduledExecution) TableName() string {
	return "scheduled_executions"
}

func (po *ScheduledExecution) ToDomain() *domain.Execution {
	return &domain.Execution{
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
		TaskInstance: domain.TaskInstance{
			TaskName: po.TaskName,
			ID:       po.InstanceID,
			Data:     po.InstanceData,
		},
		ExecutionTime:       po.ExecutionTime,
		Picked:              po.Picked,
		PickedBy:            po.PickedBy,
		PickedAt:            po.PickedAt,
		LastSuccess:         po.LastSuccess,
		LastFailure:         po.LastFailure,
		ConsecutiveFailures: po.ConsecutiveFailures,
		CancelRequested:     po.CancelRequested,
	}
}
