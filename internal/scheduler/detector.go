package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/pkg/clock"
	"github.com/jobs/dispatch/pkg/config"
	"go.uber.org/zap"
)

// DeadExecutionDetector 周期性释放被死实例认领的执行记录
// 实例崩溃后其认领的记录会一直停留在 Picked 状态，心跳超时后由这里放回到期队列
// locker 非空时先抢全局锁，保证同一时刻只有一个实例在扫描
type DeadExecutionDetector struct {
	logger       *zap.Logger
	config       config.DetectorConfig
	clock        clock.Clock
	repo         execution.Repo
	instanceRepo instance.Repo
	locker       *Locker // 可为 nil（内存模式）
	stats        StatsRegistry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewDeadExecutionDetector(
	logger *zap.Logger,
	cfg config.DetectorConfig,
	clk clock.Clock,
	repo execution.Repo,
	instanceRepo instance.Repo,
	locker *Locker,
	stats StatsRegistry,
) *DeadExecutionDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	if stats == nil {
		stats = NoopStats{}
	}
	return &DeadExecutionDetector{
		logger:       logger,
		config:       cfg,
		clock:        clk,
		repo:         repo,
		instanceRepo: instanceRepo,
		locker:       locker,
		stats:        stats,
		stopCh:       make(chan struct{}),
	}
}

func (d *DeadExecutionDetector) Start() {
	if !d.config.Enabled {
		d.logger.Info("dead execution detector is disabled")
		return
	}
	d.wg.Add(1)
	go d.run()
	d.logger.Info("dead execution detector started",
		zap.Duration("interval", d.config.Interval),
		zap.Duration("timeout", d.config.Timeout))
}

func (d *DeadExecutionDetector) Stop() {
	if !d.config.Enabled {
		return
	}
	close(d.stopCh)
	d.wg.Wait()
	d.logger.Info("dead execution detector stopped")
}

func (d *DeadExecutionDetector) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Sweep()
		case <-d.stopCh:
			return
		}
	}
}

// Sweep 执行一轮死执行扫描
func (d *DeadExecutionDetector) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.Interval)
	defer cancel()

	if d.locker != nil {
		locked, err := d.locker.TryLock(ctx)
		if err != nil {
			d.logger.Error("failed to acquire sweep lock", zap.Error(err))
			return
		}
		if !locked {
			// 其他实例正在扫描
			return
		}
		defer func() {
			if err := d.locker.Unlock(ctx); err != nil {
				d.logger.Error("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	now := d.clock.Now()
	cutoff := now.Add(-d.config.Timeout)

	var alive []string
	if d.instanceRepo != nil {
		instances, err := d.instanceRepo.ListAlive(ctx, cutoff)
		if err != nil {
			d.logger.Error("failed to list alive scheduler instances", zap.Error(err))
			return
		}
		alive = make([]string, 0, len(instances))
		for _, inst := range instances {
			alive = append(alive, inst.InstanceID)
		}
	}

	released, err := d.repo.ReleaseDead(ctx, alive, cutoff)
	if err != nil {
		d.stats.IncrementCounter(CounterRepositoryError)
		d.logger.Error("failed to release dead executions", zap.Error(err))
		return
	}
	if released > 0 {
		d.stats.IncrementCounter(CounterDeadReleased)
		d.logger.Warn("released executions picked by dead instances",
			zap.Int64("count", released),
			zap.Time("picked_before", cutoff))
	}
}
