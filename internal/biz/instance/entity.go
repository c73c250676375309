package instance

import "time"

// SchedulerInstance 调度器实例的注册记录，心跳驱动死实例判定
type SchedulerInstance struct {
	ID            uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	InstanceID    string
	Host          string
	LastHeartbeat time.Time
}

// AliveAt 心跳晚于 since 即视为存活
func (s *SchedulerInstance) AliveAt(since time.Time) bool {
	return !s.LastHeartbeat.Before(since)
}
