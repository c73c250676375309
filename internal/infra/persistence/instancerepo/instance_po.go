package instancerepo

import (
	"time"

	domain "github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/internal/infra/persistence/commonrepo"
)

type SchedulerInstance struct {
	commonrepo.Mode
	InstanceID    string    `gorm:"column:instance_id;size:191;not null;uniqueIndex"`
	Host          string    `gorm:"column:host;size:191"`
	LastHeartbeat time.Time `gorm:"column:last_heartbeat;not null;index"`
}

func (SchedulerInstance) TableName() string {
	return "scheduler_instances"
}

func (po *SchedulerInstance) ToDomain() *domain.SchedulerInstance {
	return &domain.SchedulerInstance{
		ID:            po.ID,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
		InstanceID:    po.InstanceID,
		Host:          po.Host,
		LastHeartbeat: po.LastHeartbeat,
	}
}
