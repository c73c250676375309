package scheduler

import (
	"sync"

	"go.uber.org/zap"
)

// Runner 执行已认领任务的工作池抽象
// Submit 必须非阻塞：返回 false 表示拒绝，调度循环负责回滚认领状态
type Runner interface {
	Start()
	Stop()
	Submit(job func()) bool
}

// TaskRunner 固定大小的工作池
// 队列容量与 worker 数一致：槽位信号量保证在途任务不超过容量，
// 正常情况下 Submit 不会因队列满被拒
type TaskRunner struct {
	logger *zap.Logger

	maxWorkers int
	jobCh      chan func()
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewTaskRunner(maxWorkers int, logger *zap.Logger) *TaskRunner {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskRunner{
		logger:     logger,
		maxWorkers: maxWorkers,
		jobCh:      make(chan func(), maxWorkers),
		stopCh:     make(chan struct{}),
	}
}

// Start 启动工作协程
func (r *TaskRunner) Start() {
	for i := 0; i < r.maxWorkers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started",
		zap.Int("workers", r.maxWorkers))
}

// Stop 停止工作池，等待正在执行的任务结束
// 队列中尚未开始的任务被丢弃，其认领状态由死执行检测回收
func (r *TaskRunner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// Submit 非阻塞提交
func (r *TaskRunner) Submit(job func()) bool {
	select {
	case r.jobCh <- job:
		return true
	default:
		r.logger.Warn("task runner queue is full, rejecting job")
		return false
	}
}

// worker 工作协程
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		select {
		case job := <-r.jobCh:
			job()
		case <-r.stopCh:
			r.logger.Debug("worker stopped", zap.Int("worker_id", id))
			return
		}
	}
}

// DirectRunner 在调用方协程内同步执行，测试用
type DirectRunner struct{}

func (DirectRunner) Start() {}

func (DirectRunner) Stop() {}

func (DirectRunner) Submit(job func()) bool {
	job()
	return true
}
