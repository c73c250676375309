package instance

import (
	"context"
	"time"
)

type Repo interface {
	// Register 注册或刷新本实例的记录
	Register(ctx context.Context, inst *SchedulerInstance) error
	// Heartbeat 刷新心跳时间
	Heartbeat(ctx context.Context, instanceID string, at time.Time) error
	// ListAlive 返回心跳晚于 since 的实例
	ListAlive(ctx context.Context, since time.Time) ([]*SchedulerInstance, error)
	// Deregister 删除实例记录
	Deregister(ctx context.Context, instanceID string) error
}
