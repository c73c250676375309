package execution

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// Repo 执行记录的持久化契约
// 多个调度器进程共享同一存储时也必须成立：PickDue 对单条记录的认领是原子的，
// 任一时刻最多一个进程持有某条记录的 Picked 状态
type Repo interface {
	// Schedule 创建一条未认领的执行记录；实例已存在时返回 ErrAlreadyScheduled
	Schedule(ctx context.Context, instance TaskInstance, executionTime time.Time) error

	// Reschedule 更新未认领记录的到期时间；不存在或已被认领时返回 ErrNotFound
	Reschedule(ctx context.Context, instance TaskInstance, executionTime time.Time) error

	// Cancel 删除未认领的执行记录；正在执行的记录改为延迟删除
	// （打 CancelRequested 标记，完成路径负责删除）；不存在时返回 ErrNotFound
	Cancel(ctx context.Context, instance TaskInstance) error

	// PickDue 原子地认领至多 limit 条到期且未认领的记录，
	// 按 ExecutionTime 升序返回（最早到期优先）
	PickDue(ctx context.Context, now time.Time, limit int) ([]*Execution, error)

	// Release 将认领失败（本地槽位竞争失利）的记录放回到期状态，不动失败计数
	Release(ctx context.Context, instance TaskInstance) error

	// Remove 删除执行记录
	Remove(ctx context.Context, instance TaskInstance) error

	// UpdateAfterCompletion 完成路径的唯一落账入口，每条完成的执行恰好调用一次：
	// next 存在则写入新到期时间并清除认领状态，否则删除记录；
	// 同时记录成败时间戳与连续失败计数。CancelRequested 的记录一律删除
	UpdateAfterCompletion(ctx context.Context, instance TaskInstance, next mo.Option[time.Time], result Result, completedAt time.Time) error

	// ReleaseDead 释放认领时间早于 pickedBefore 且认领者不在存活实例列表中的记录，
	// 返回释放条数
	ReleaseDead(ctx context.Context, alive []string, pickedBefore time.Time) (int64, error)

	Get(ctx context.Context, instance TaskInstance) (*Execution, error)
	List(ctx context.Context, filter ListFilter, offset, limit int) ([]*Execution, int64, error)
}

// ListFilter 运维查询过滤条件
type ListFilter struct {
	TaskName mo.Option[string]
	Picked   mo.Option[bool]
	DueFrom  mo.Option[time.Time]
	DueTo    mo.Option[time.Time]
}
