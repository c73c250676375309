package instancerepo

import (
	"context"
	"time"

	domain "github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/internal/infra/persistence/commonrepo"
	"gorm.io/gorm/clause"
)

// MysqlRepositoryImpl 调度器实例注册表的 MySQL 实现
type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

var _ domain.Repo = (*MysqlRepositoryImpl)(nil)

func NewMysqlRepositoryImpl(db commonrepo.DB) *MysqlRepositoryImpl {
	return &MysqlRepositoryImpl{
		DefaultRepo: commonrepo.NewDefaultRepo(db),
	}
}

// Register 注册实例，同名实例重新上线时覆盖心跳
func (r *MysqlRepositoryImpl) Register(ctx context.Context, inst *domain.SchedulerInstance) error {
	po := &SchedulerInstance{
		InstanceID:    inst.InstanceID,
		Host:          inst.Host,
		LastHeartbeat: inst.LastHeartbeat,
	}
	return r.Db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"host", "last_heartbeat"}),
	}).Create(po).Error
}

// Heartbeat 刷新实例心跳时间
func (r *MysqlRepositoryImpl) Heartbeat(ctx context.Context, instanceID string, at time.Time) error {
	return r.Db(ctx).Model(&SchedulerInstance{}).
		Where("instance_id = ?", instanceID).
		Updates(map[string]any{
			"last_heartbeat": at,
		}).Error
}

// ListAlive 查询心跳不早于 since 的存活实例
func (r *MysqlRepositoryImpl) ListAlive(ctx context.Context, since time.Time) ([]*domain.SchedulerInstance, error) {
	var pos []*SchedulerInstance
	err := r.Db(ctx).
		Where("last_heartbeat >= ?", since).
		Order("instance_id ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.SchedulerInstance, 0, len(pos))
	for _, po := range pos {
		out = append(out, po.ToDomain())
	}
	return out, nil
}

// Deregister 注销实例
func (r *MysqlRepositoryImpl) Deregister(ctx context.Context, instanceID string) error {
	return r.Db(ctx).
		Where("instance_id = ?", instanceID).
		Delete(&SchedulerInstance{}).Error
}
