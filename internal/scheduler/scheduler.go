package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/internal/biz/task"
	"github.com/jobs/dispatch/pkg/clock"
	"github.com/jobs/dispatch/pkg/config"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Scheduler 任务调度器
// 单个轮询协程驱动 ExecuteDue，处理函数在有界工作池上执行，
// 完成路径负责落账（删除或重调度）并释放本地资源
type Scheduler struct {
	cfg      config.SchedulerConfig
	clock    clock.Clock
	repo     execution.Repo
	registry *task.Registry
	runner   Runner
	slots    *Slots
	tracker  *Tracker
	stats    StatsRegistry
	logger   *zap.Logger

	instanceRepo instance.Repo          // 可为 nil（单进程内存模式）
	detector     *DeadExecutionDetector // 可为 nil

	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// New 创建调度器
// slots 为显式传入的并发槽位；instanceRepo 与 detector 可为 nil
func New(
	cfg config.SchedulerConfig,
	clk clock.Clock,
	repo execution.Repo,
	registry *task.Registry,
	runner Runner,
	slots *Slots,
	instanceRepo instance.Repo,
	detector *DeadExecutionDetector,
	stats StatsRegistry,
	logger *zap.Logger,
) *Scheduler {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	if stats == nil {
		stats = NoopStats{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if slots == nil {
		slots = NewSlots(cfg.MaxWorkers)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:          cfg,
		clock:        clk,
		repo:         repo,
		registry:     registry,
		runner:       runner,
		slots:        slots,
		tracker:      NewTracker(),
		stats:        stats,
		logger:       logger,
		instanceRepo: instanceRepo,
		detector:     detector,
		instanceID:   cfg.InstanceID,
		ctx:          ctx,
		cancel:       cancel,
		stopCh:       make(chan struct{}),
	}
}

// Schedule 为任务实例创建执行记录；已存在时返回 execution.ErrAlreadyScheduled
func (s *Scheduler) Schedule(ctx context.Context, inst execution.TaskInstance, at time.Time) error {
	if _, ok := s.registry.Lookup(inst.TaskName); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, inst.TaskName)
	}
	if err := s.repo.Schedule(ctx, inst, at); err != nil {
		return err
	}
	s.logger.Debug("scheduled execution",
		zap.String("instance", inst.Key()),
		zap.Time("execution_time", at))
	return nil
}

// Reschedule 替换既有执行记录的到期时间；不存在时返回 execution.ErrNotFound
func (s *Scheduler) Reschedule(ctx context.Context, inst execution.TaskInstance, at time.Time) error {
	if err := s.repo.Reschedule(ctx, inst, at); err != nil {
		return err
	}
	s.logger.Debug("rescheduled execution",
		zap.String("instance", inst.Key()),
		zap.Time("execution_time", at))
	return nil
}

// Cancel 取消未认领的执行；正在执行的只阻止后续重调度
func (s *Scheduler) Cancel(ctx context.Context, inst execution.TaskInstance) error {
	if err := s.repo.Cancel(ctx, inst); err != nil {
		return err
	}
	s.logger.Debug("cancelled execution", zap.String("instance", inst.Key()))
	return nil
}

// TriggerNow 将既有执行记录的到期时间提前到当前时刻
func (s *Scheduler) TriggerNow(ctx context.Context, inst execution.TaskInstance) error {
	return s.Reschedule(ctx, inst, s.clock.Now())
}

// ExecuteDue 执行一轮查询-派发
// 从不等待处理函数完成；池满时直接返回，到期任务留在仓储里等下一轮
func (s *Scheduler) ExecuteDue() {
	ctx := context.Background()
	now := s.clock.Now()

	available := s.slots.Available()
	if available <= 0 {
		s.stats.IncrementCounter(CounterPoolFull)
		s.logger.Debug("execution pool full, skipping cycle")
		return
	}

	due, err := s.repo.PickDue(ctx, now, available)
	if err != nil {
		s.stats.IncrementCounter(CounterRepositoryError)
		s.logger.Error("failed to pick due executions", zap.Error(err))
		return
	}

	for _, e := range due {
		s.dispatch(ctx, e, now)
	}
}

// dispatch 为一条已认领的执行记录申请槽位并提交工作池
// 任何一步失败都把记录放回到期状态，留给后续轮次
func (s *Scheduler) dispatch(ctx context.Context, e *execution.Execution, now time.Time) {
	t, ok := s.registry.Lookup(e.TaskInstance.TaskName)
	if !ok {
		s.stats.IncrementCounter(CounterUnknownTask)
		s.logger.Error("picked execution references unknown task",
			zap.String("instance", e.TaskInstance.Key()))
		s.release(ctx, e)
		return
	}

	if !s.slots.TryAcquire() {
		// 与其他派发路径竞争失利，不是错误，下一轮重试
		s.stats.IncrementCounter(CounterLostRace)
		s.release(ctx, e)
		return
	}

	s.tracker.Register(e, now)

	exec := e
	submitted := s.runner.Submit(func() {
		s.execute(t, exec, now)
	})
	if !submitted {
		s.tracker.Deregister(e)
		s.slots.Release()
		s.release(ctx, e)
	}
}

// release 把认领状态还给仓储，失败只影响这一条记录
func (s *Scheduler) release(ctx context.Context, e *execution.Execution) {
	if err := s.repo.Release(ctx, e.TaskInstance); err != nil {
		s.stats.IncrementCounter(CounterRepositoryError)
		s.logger.Error("failed to release execution",
			zap.String("instance", e.TaskInstance.Key()),
			zap.Error(err))
	}
}

// execute 在工作池协程内运行处理函数并走完成路径
func (s *Scheduler) execute(t *task.Task, e *execution.Execution, startedAt time.Time) {
	cause := s.runHandler(t, e)
	stoppedAt := s.clock.Now()
	s.complete(t, e, startedAt, stoppedAt, cause)
}

// runHandler 运行处理函数，panic 在此边界转为错误
func (s *Scheduler) runHandler(t *task.Task, e *execution.Execution) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panic: %v", r)
		}
	}()
	return t.Run(s.ctx, e.TaskInstance)
}

// complete 完成路径：释放槽位、注销在途登记、上报计数、应用完成处置
func (s *Scheduler) complete(t *task.Task, e *execution.Execution, startedAt, stoppedAt time.Time, cause error) {
	defer s.slots.Release()
	defer s.tracker.Deregister(e)

	result := execution.ResultOK
	failures := 0
	if cause != nil {
		result = execution.ResultFailed
		failures = e.ConsecutiveFailures + 1
		s.stats.IncrementCounter(CounterCompletedFailed)
		s.logger.Warn("execution failed",
			zap.String("instance", e.TaskInstance.Key()),
			zap.Duration("duration", stoppedAt.Sub(startedAt)),
			zap.Error(cause))
	} else {
		s.stats.IncrementCounter(CounterCompletedOK)
		s.logger.Debug("execution completed",
			zap.String("instance", e.TaskInstance.Key()),
			zap.Duration("duration", stoppedAt.Sub(startedAt)))
	}

	completed := execution.ExecutionComplete{
		Execution:           e,
		StartedAt:           startedAt,
		StoppedAt:           stoppedAt,
		Result:              result,
		Cause:               cause,
		ConsecutiveFailures: failures,
	}
	ops := &completionOperations{
		scheduler:   s,
		execution:   e,
		result:      result,
		completedAt: stoppedAt,
	}

	s.invokeCompletionHandler(t, completed, ops)

	if !ops.decided() {
		// 处理器没有落账，记录留在认领状态，由死执行检测回收
		s.logger.Warn("completion handler made no decision",
			zap.String("instance", e.TaskInstance.Key()))
	}
}

// invokeCompletionHandler 完成处理器的 panic 同样不允许外泄
func (s *Scheduler) invokeCompletionHandler(t *task.Task, completed execution.ExecutionComplete, ops execution.Operations) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("completion handler panic",
				zap.String("instance", completed.Execution.TaskInstance.Key()),
				zap.Any("panic", r))
		}
	}()
	t.CompletionHandler().Complete(completed, ops)
}

// CurrentlyExecuting 在途执行快照，按开始时间升序
func (s *Scheduler) CurrentlyExecuting() []CurrentlyExecuting {
	return s.tracker.Snapshot()
}

// Clock 暴露调度器的时间来源，用于计算在途时长
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// InstanceID 本调度器实例标识，即认领记录的 PickedBy
func (s *Scheduler) InstanceID() string {
	return s.instanceID
}

// Slots 暴露执行槽位，用于观测余量
func (s *Scheduler) Slots() *Slots {
	return s.slots
}

// Start 启动调度器：工作池、死执行检测、实例心跳与轮询循环
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("instance_id", s.instanceID),
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Int("max_workers", s.slots.Capacity()))

	if s.instanceRepo != nil {
		if err := s.registerInstance(); err != nil {
			return fmt.Errorf("failed to register scheduler instance: %w", err)
		}
		s.wg.Add(1)
		go s.heartbeatLoop()
	}

	s.runner.Start()

	if s.detector != nil {
		s.detector.Start()
	}

	s.wg.Add(1)
	go s.pollLoop()

	return nil
}

// Stop 停止调度器，正在执行的处理函数会运行到结束
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping scheduler", zap.String("instance_id", s.instanceID))

	s.requestStop()
	s.wg.Wait()

	if s.detector != nil {
		s.detector.Stop()
	}

	s.runner.Stop()
	s.cancel()

	if s.instanceRepo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.instanceRepo.Deregister(ctx, s.instanceID); err != nil {
			s.logger.Error("failed to deregister scheduler instance", zap.Error(err))
		}
	}

	s.logger.Info("scheduler stopped", zap.String("instance_id", s.instanceID))
	return nil
}

// requestStop 请求停止轮询，可从完成处理器的 Stop 操作触发
func (s *Scheduler) requestStop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// pollLoop 固定间隔驱动 ExecuteDue
func (s *Scheduler) pollLoop() {
	defer s.wg.Done()

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ExecuteDue()
		case <-s.stopCh:
			return
		}
	}
}

// registerInstance 注册调度器实例
func (s *Scheduler) registerInstance() error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.instanceRepo.Register(ctx, &instance.SchedulerInstance{
		InstanceID:    s.instanceID,
		Host:          host,
		LastHeartbeat: s.clock.Now(),
	})
}

// heartbeatLoop 周期性刷新心跳
func (s *Scheduler) heartbeatLoop() {
	defer s.wg.Done()

	interval := s.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := s.instanceRepo.Heartbeat(ctx, s.instanceID, s.clock.Now()); err != nil {
				s.logger.Error("failed to send heartbeat", zap.Error(err))
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

// completionOperations 完成处理器拿到的受限操作句柄，落账一次后失效
type completionOperations struct {
	scheduler   *Scheduler
	execution   *execution.Execution
	result      execution.Result
	completedAt time.Time

	mu      sync.Mutex
	applied bool
}

func (o *completionOperations) Reschedule(at time.Time) error {
	return o.apply(mo.Some(at))
}

func (o *completionOperations) Remove() error {
	return o.apply(mo.None[time.Time]())
}

func (o *completionOperations) Stop() {
	o.scheduler.requestStop()
}

func (o *completionOperations) decided() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.applied
}

func (o *completionOperations) apply(next mo.Option[time.Time]) error {
	o.mu.Lock()
	if o.applied {
		o.mu.Unlock()
		return ErrAlreadyDecided
	}
	o.applied = true
	o.mu.Unlock()

	err := o.scheduler.repo.UpdateAfterCompletion(
		context.Background(), o.execution.TaskInstance, next, o.result, o.completedAt)
	if err != nil {
		o.scheduler.stats.IncrementCounter(CounterRepositoryError)
		o.scheduler.logger.Error("failed to update execution after completion",
			zap.String("instance", o.execution.TaskInstance.Key()),
			zap.Error(err))
	}
	return err
}
