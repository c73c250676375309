package executionrepo

import (
	"context"
	"errors"
	"time"

	domain "github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/infra/persistence/commonrepo"
	"github.com/samber/mo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MysqlRepositoryImpl 基于 MySQL 的调度执行仓储实现
type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
	schedulerName string
}

var _ domain.Repo = (*MysqlRepositoryImpl)(nil)

func NewMysqlRepositoryImpl(db commonrepo.DB, schedulerName string) *MysqlRepositoryImpl {
	return &MysqlRepositoryImpl{
		DefaultRepo:   commonrepo.NewDefaultRepo(db),
		schedulerName: schedulerName,
	}
}

// Schedule 新增一条待执行记录，同一任务实例重复调度返回 ErrAlreadyScheduled
func (r *MysqlRepositoryImpl) Schedule(ctx context.Context, instance domain.TaskInstance, executionTime time.Time) error {
	po := &ScheduledExecution{
		TaskName:      instance.TaskName,
		InstanceID:    instance.ID,
		InstanceData:  instance.Data,
		ExecutionTime: executionTime,
	}
	if err := r.Db(ctx).Create(po).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyScheduled
		}
		return err
	}
	return nil
}

// Reschedule 修改未执行记录的执行时间
func (r *MysqlRepositoryImpl) Reschedule(ctx context.Context, instance domain.TaskInstance, executionTime time.Time) error {
	result := r.Db(ctx).Model(&ScheduledExecution{}).
		Where("task_name = ? AND instance_id = ? AND picked = ?", instance.TaskName, instance.ID, false).
		Updates(map[string]any{
			"execution_time": executionTime,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Cancel 取消任务实例：未领取直接删除，已领取打取消标记等待完成
func (r *MysqlRepositoryImpl) Cancel(ctx context.Context, instance domain.TaskInstance) error {
	return r.Execute(ctx, func(ctx context.Context) error {
		var po ScheduledExecution
		err := r.Db(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("task_name = ? AND instance_id = ?", instance.TaskName, instance.ID).
			First(&po).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !po.Picked {
			return r.Db(ctx).Delete(&po).Error
		}
		return r.Db(ctx).Model(&po).Updates(map[string]any{
			"cancel_requested": true,
		}).Error
	})
}

// PickDue 原子领取到期记录，按执行时间升序，最多 limit 条
func (r *MysqlRepositoryImpl) PickDue(ctx context.Context, now time.Time, limit int) ([]*domain.Execution, error) {
	if limit <= 0 {
		return nil, nil
	}
	var picked []*domain.Execution
	err := r.Execute(ctx, func(ctx context.Context) error {
		var pos []*ScheduledExecution
		err := r.Db(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("picked = ? AND execution_time <= ?", false, now).
			Order("execution_time ASC").
			Limit(limit).
			Find(&pos).Error
		if err != nil {
			return err
		}
		if len(pos) == 0 {
			return nil
		}
		ids := make([]uint64, 0, len(pos))
		for _, po := range pos {
			ids = append(ids, po.ID)
		}
		pickedAt := now
		err = r.Db(ctx).Model(&ScheduledExecution{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"picked":    true,
				"picked_by": r.schedulerName,
				"picked_at": pickedAt,
			}).Error
		if err != nil {
			return err
		}
		picked = make([]*domain.Execution, 0, len(pos))
		for _, po := range pos {
			po.Picked = true
			po.PickedBy = r.schedulerName
			po.PickedAt = &pickedAt
			picked = append(picked, po.ToDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

// Release 释放已领取但未执行的记录
func (r *MysqlRepositoryImpl) Release(ctx context.Context, instance domain.TaskInstance) error {
	return r.Db(ctx).Model(&ScheduledExecution{}).
		Where("task_name = ? AND instance_id = ? AND picked = ?", instance.TaskName, instance.ID, true).
		Updates(map[string]any{
			"picked":    false,
			"picked_by": "",
			"picked_at": nil,
		}).Error
}

// Remove 删除任务实例的执行记录
func (r *MysqlRepositoryImpl) Remove(ctx context.Context, instance domain.TaskInstance) error {
	return r.Db(ctx).
		Where("task_name = ? AND instance_id = ?", instance.TaskName, instance.ID).
		Delete(&ScheduledExecution{}).Error
}

// UpdateAfterCompletion 执行完成后的落库：续期或删除，同时维护成败统计
func (r *MysqlRepositoryImpl) UpdateAfterCompletion(ctx context.Context, instance domain.TaskInstance, next mo.Option[time.Time], result domain.Result, completedAt time.Time) error {
	return r.Execute(ctx, func(ctx context.Context) error {
		var po ScheduledExecution
		err := r.Db(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("task_name = ? AND instance_id = ?", instance.TaskName, instance.ID).
			First(&po).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		nextTime, hasNext := next.Get()
		if po.CancelRequested || !hasNext {
			return r.Db(ctx).Delete(&po).Error
		}
		updates := map[string]any{
			"execution_time": nextTime,
			"picked":         false,
			"picked_by":      "",
			"picked_at":      nil,
		}
		if result == domain.ResultOK {
			updates["last_success"] = completedAt
			updates["consecutive_failures"] = 0
		} else {
			updates["last_failure"] = completedAt
			updates["consecutive_failures"] = po.ConsecutiveFailures + 1
		}
		return r.Db(ctx).Model(&po).Updates(updates).Error
	})
}

// ReleaseDead 释放疑似宕机实例遗留的已领取记录
func (r *MysqlRepositoryImpl) ReleaseDead(ctx context.Context, alive []string, pickedBefore time.Time) (int64, error) {
	query := r.Db(ctx).Model(&ScheduledExecution{}).
		Where("picked = ? AND picked_at <= ?", true, pickedBefore)
	if len(alive) > 0 {
		query = query.Where("picked_by NOT IN ?", alive)
	}
	result := query.Updates(map[string]any{
		"picked":    false,
		"picked_by": "",
		"picked_at": nil,
	})
	return result.RowsAffected, result.Error
}

// Get 查询单条执行记录
func (r *MysqlRepositoryImpl) Get(ctx context.Context, instance domain.TaskInstance) (*domain.Execution, error) {
	var po ScheduledExecution
	err := r.Db(ctx).
		Where("task_name = ? AND instance_id = ?", instance.TaskName, instance.ID).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

// List 分页查询执行记录
func (r *MysqlRepositoryImpl) List(ctx context.Context, filter domain.ListFilter, offset, limit int) ([]*domain.Execution, int64, error) {
	query := r.Db(ctx).Model(&ScheduledExecution{})
	if taskName, ok := filter.TaskName.Get(); ok {
		query = query.Where("task_name = ?", taskName)
	}
	if picked, ok := filter.Picked.Get(); ok {
		query = query.Where("picked = ?", picked)
	}
	if from, ok := filter.DueFrom.Get(); ok {
		query = query.Where("execution_time >= ?", from)
	}
	if to, ok := filter.DueTo.Get(); ok {
		query = query.Where("execution_time <= ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var pos []*ScheduledExecution
	err := query.Order("execution_time ASC").
		Offset(offset).Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Execution, 0, len(pos))
	for _, po := range pos {
		out = append(out, po.ToDomain())
	}
	return out, total, nil
}
