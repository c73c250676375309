package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/schedule"
	"github.com/jobs/dispatch/internal/biz/task"
	"github.com/jobs/dispatch/internal/infra/persistence/memrepo"
	"github.com/jobs/dispatch/pkg/clock"
	"github.com/jobs/dispatch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingStats 测试用统计，记录每个计数器的次数
type recordingStats struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingStats() *recordingStats {
	return &recordingStats{counts: make(map[string]int)}
}

func (r *recordingStats) IncrementCounter(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
}

func (r *recordingStats) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// rejectRunner 始终拒绝提交
type rejectRunner struct{}

func (rejectRunner) Start()             {}
func (rejectRunner) Stop()              {}
func (rejectRunner) Submit(func()) bool { return false }

type fixture struct {
	clock *clock.SettableClock
	repo  *memrepo.Repository
	stats *recordingStats
	sched *Scheduler
}

func newFixture(t *testing.T, runner Runner, workers int, tasks ...*task.Task) *fixture {
	t.Helper()

	clk := clock.NewSettableClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := memrepo.New("scheduler-1")
	registry, err := task.NewRegistry(tasks...)
	require.NoError(t, err)
	stats := newRecordingStats()

	cfg := config.SchedulerConfig{
		InstanceID:   "scheduler-1",
		PollInterval: time.Second,
		MaxWorkers:   workers,
	}
	sched := New(cfg, clk, repo, registry, runner, NewSlots(workers), nil, nil, stats, zap.NewNop())
	return &fixture{clock: clk, repo: repo, stats: stats, sched: sched}
}

func TestExecuteDueOnlyWhenDue(t *testing.T) {
	executed := 0
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		executed++
		return nil
	})

	f := newFixture(t, DirectRunner{}, 4, oneTime)
	ctx := context.Background()

	due := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), due))

	// 未到期
	f.sched.ExecuteDue()
	assert.Equal(t, 0, executed)

	// 恰好到期
	f.clock.Set(due)
	f.sched.ExecuteDue()
	assert.Equal(t, 1, executed)
	assert.Equal(t, 1, f.stats.count(CounterCompletedOK))

	// 一次性任务完成后删除
	_, err := f.repo.Get(ctx, oneTime.Instance("1"))
	assert.ErrorIs(t, err, execution.ErrNotFound)
}

func TestScheduleUnknownTask(t *testing.T) {
	f := newFixture(t, DirectRunner{}, 4)

	err := f.sched.Schedule(context.Background(), execution.NewTaskInstance("nope", "1"), f.clock.Now())
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestScheduleDuplicateInstance(t *testing.T) {
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		return nil
	})
	f := newFixture(t, DirectRunner{}, 4, oneTime)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now()))
	err := f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now())
	assert.ErrorIs(t, err, execution.ErrAlreadyScheduled)
}

func TestRecurringTaskRescheduledAfterCompletion(t *testing.T) {
	recurring := task.Recurring("recurring", schedule.NewFixedDelay(time.Hour),
		func(ctx context.Context, inst execution.TaskInstance) error {
			return nil
		})

	f := newFixture(t, DirectRunner{}, 4, recurring)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, recurring.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	e, err := f.repo.Get(ctx, recurring.Instance("1"))
	require.NoError(t, err)
	assert.False(t, e.Picked)
	assert.Equal(t, f.clock.Now().Add(time.Hour), e.ExecutionTime)
	require.NotNil(t, e.LastSuccess)
	assert.Equal(t, 0, e.ConsecutiveFailures)
}

func TestFailingHandlerIncrementsConsecutiveFailures(t *testing.T) {
	var fail bool
	recurring := task.Recurring("flaky", schedule.NewFixedDelay(time.Minute),
		func(ctx context.Context, inst execution.TaskInstance) error {
			if fail {
				return errors.New("boom")
			}
			return nil
		})

	f := newFixture(t, DirectRunner{}, 4, recurring)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, recurring.Instance("1"), f.clock.Now()))

	fail = true
	f.sched.ExecuteDue()

	e, err := f.repo.Get(ctx, recurring.Instance("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, e.ConsecutiveFailures)
	require.NotNil(t, e.LastFailure)
	assert.Equal(t, 1, f.stats.count(CounterCompletedFailed))

	f.clock.Set(e.ExecutionTime)
	f.sched.ExecuteDue()

	e, err = f.repo.Get(ctx, recurring.Instance("1"))
	require.NoError(t, err)
	assert.Equal(t, 2, e.ConsecutiveFailures)

	// 成功后归零
	fail = false
	f.clock.Set(e.ExecutionTime)
	f.sched.ExecuteDue()

	e, err = f.repo.Get(ctx, recurring.Instance("1"))
	require.NoError(t, err)
	assert.Equal(t, 0, e.ConsecutiveFailures)
	require.NotNil(t, e.LastSuccess)
}

func TestPanicInHandlerIsFailure(t *testing.T) {
	var seenCause error
	custom := task.Custom("panics",
		execution.CompletionHandlerFunc(func(completed execution.ExecutionComplete, ops execution.Operations) {
			seenCause = completed.Cause
			_ = ops.Remove()
		}),
		func(ctx context.Context, inst execution.TaskInstance) error {
			panic("kaboom")
		})

	f := newFixture(t, DirectRunner{}, 4, custom)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, custom.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	require.Error(t, seenCause)
	assert.Contains(t, seenCause.Error(), "kaboom")
	assert.Equal(t, 1, f.stats.count(CounterCompletedFailed))
}

func TestFailureCausePassedToCompletionHandler(t *testing.T) {
	handlerErr := errors.New("downstream unavailable")
	var completed execution.ExecutionComplete
	custom := task.Custom("failing",
		execution.CompletionHandlerFunc(func(c execution.ExecutionComplete, ops execution.Operations) {
			completed = c
			_ = ops.Remove()
		}),
		func(ctx context.Context, inst execution.TaskInstance) error {
			return handlerErr
		})

	f := newFixture(t, DirectRunner{}, 4, custom)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, custom.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	assert.ErrorIs(t, completed.Cause, handlerErr)
	assert.Equal(t, execution.ResultFailed, completed.Result)
	assert.Equal(t, 1, completed.ConsecutiveFailures)
}

func TestPoolFullSkipsCycle(t *testing.T) {
	executed := 0
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		executed++
		return nil
	})

	f := newFixture(t, DirectRunner{}, 1, oneTime)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now()))

	// 占满唯一槽位
	require.True(t, f.sched.slots.TryAcquire())

	f.sched.ExecuteDue()
	assert.Equal(t, 0, executed)
	assert.Equal(t, 1, f.stats.count(CounterPoolFull))

	// 到期记录原样留在仓储里
	e, err := f.repo.Get(ctx, oneTime.Instance("1"))
	require.NoError(t, err)
	assert.False(t, e.Picked)

	// 释放槽位后下一轮执行
	f.sched.slots.Release()
	f.sched.ExecuteDue()
	assert.Equal(t, 1, executed)
}

func TestLostSlotRaceReleasesExecution(t *testing.T) {
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		return nil
	})

	f := newFixture(t, DirectRunner{}, 1, oneTime)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now()))

	picked, err := f.repo.PickDue(ctx, f.clock.Now(), 1)
	require.NoError(t, err)
	require.Len(t, picked, 1)

	// 槽位在查询和派发之间被抢走
	require.True(t, f.sched.slots.TryAcquire())
	f.sched.dispatch(ctx, picked[0], f.clock.Now())

	assert.Equal(t, 1, f.stats.count(CounterLostRace))
	e, err := f.repo.Get(ctx, oneTime.Instance("1"))
	require.NoError(t, err)
	assert.False(t, e.Picked)
	assert.Equal(t, 0, f.sched.tracker.Count())
}

func TestRejectedSubmitRollsBack(t *testing.T) {
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		return nil
	})

	f := newFixture(t, rejectRunner{}, 2, oneTime)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	e, err := f.repo.Get(ctx, oneTime.Instance("1"))
	require.NoError(t, err)
	assert.False(t, e.Picked)
	assert.Equal(t, 0, f.sched.tracker.Count())
	assert.Equal(t, 2, f.sched.slots.Available())
}

func TestPickedExecutionForUnknownTaskIsReleased(t *testing.T) {
	f := newFixture(t, DirectRunner{}, 2)
	ctx := context.Background()

	// 绕过注册表校验，模拟注册表与仓储内容不一致
	inst := execution.NewTaskInstance("removed-task", "1")
	require.NoError(t, f.repo.Schedule(ctx, inst, f.clock.Now()))

	f.sched.ExecuteDue()

	assert.Equal(t, 1, f.stats.count(CounterUnknownTask))
	e, err := f.repo.Get(ctx, inst)
	require.NoError(t, err)
	assert.False(t, e.Picked)
}

func TestCancelBeforeExecutionRemoves(t *testing.T) {
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		return nil
	})

	f := newFixture(t, DirectRunner{}, 2, oneTime)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now().Add(time.Hour)))
	require.NoError(t, f.sched.Cancel(ctx, oneTime.Instance("1")))

	_, err := f.repo.Get(ctx, oneTime.Instance("1"))
	assert.ErrorIs(t, err, execution.ErrNotFound)

	assert.ErrorIs(t, f.sched.Cancel(ctx, oneTime.Instance("1")), execution.ErrNotFound)
}

func TestCancelDuringExecutionPreventsReschedule(t *testing.T) {
	var f *fixture
	recurring := task.Recurring("recurring", schedule.NewFixedDelay(time.Minute),
		func(ctx context.Context, inst execution.TaskInstance) error {
			// 执行中途收到取消
			return f.sched.Cancel(ctx, inst)
		})

	f = newFixture(t, DirectRunner{}, 2, recurring)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, recurring.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	// 完成处置要求重调度，但取消标记获胜
	_, err := f.repo.Get(ctx, recurring.Instance("1"))
	assert.ErrorIs(t, err, execution.ErrNotFound)
}

func TestTriggerNowAdvancesDueTime(t *testing.T) {
	executed := 0
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		executed++
		return nil
	})

	f := newFixture(t, DirectRunner{}, 2, oneTime)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("1"), f.clock.Now().Add(24*time.Hour)))
	f.sched.ExecuteDue()
	assert.Equal(t, 0, executed)

	require.NoError(t, f.sched.TriggerNow(ctx, oneTime.Instance("1")))
	f.sched.ExecuteDue()
	assert.Equal(t, 1, executed)
}

func TestCompletionDecisionIsExclusive(t *testing.T) {
	var second error
	custom := task.Custom("decisive",
		execution.CompletionHandlerFunc(func(completed execution.ExecutionComplete, ops execution.Operations) {
			require.NoError(t, ops.Remove())
			second = ops.Reschedule(time.Now())
		}),
		func(ctx context.Context, inst execution.TaskInstance) error {
			return nil
		})

	f := newFixture(t, DirectRunner{}, 2, custom)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, custom.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	assert.ErrorIs(t, second, ErrAlreadyDecided)
}

func TestCompletionHandlerCanStopScheduler(t *testing.T) {
	custom := task.Custom("stopper",
		execution.CompletionHandlerFunc(func(completed execution.ExecutionComplete, ops execution.Operations) {
			_ = ops.Remove()
			ops.Stop()
		}),
		func(ctx context.Context, inst execution.TaskInstance) error {
			return nil
		})

	f := newFixture(t, DirectRunner{}, 2, custom)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, custom.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	select {
	case <-f.sched.stopCh:
	default:
		t.Fatal("expected stop to be requested")
	}
}

func TestIndecisiveCompletionHandlerLeavesRecordPicked(t *testing.T) {
	custom := task.Custom("indecisive",
		execution.CompletionHandlerFunc(func(completed execution.ExecutionComplete, ops execution.Operations) {
		}),
		func(ctx context.Context, inst execution.TaskInstance) error {
			return nil
		})

	f := newFixture(t, DirectRunner{}, 2, custom)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, custom.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	// 没有落账，记录保持认领状态，留给死执行检测
	e, err := f.repo.Get(ctx, custom.Instance("1"))
	require.NoError(t, err)
	assert.True(t, e.Picked)
	// 本地槽位已释放
	assert.Equal(t, 2, f.sched.slots.Available())
}

func TestOldestDueFirstWithinLimit(t *testing.T) {
	var order []string
	oneTime := task.OneTime("one-time", func(ctx context.Context, inst execution.TaskInstance) error {
		order = append(order, inst.ID)
		return nil
	})

	f := newFixture(t, DirectRunner{}, 2, oneTime)
	ctx := context.Background()

	now := f.clock.Now()
	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("late"), now.Add(-time.Minute)))
	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("later"), now.Add(-time.Second)))
	require.NoError(t, f.sched.Schedule(ctx, oneTime.Instance("earliest"), now.Add(-time.Hour)))

	// 容量 2，一轮只认领最早的两条
	f.sched.ExecuteDue()
	assert.Equal(t, []string{"earliest", "late"}, order)

	f.sched.ExecuteDue()
	assert.Equal(t, []string{"earliest", "late", "later"}, order)
}

func TestCurrentlyExecutingDuration(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := task.OneTime("blocking", func(ctx context.Context, inst execution.TaskInstance) error {
		close(started)
		<-release
		return nil
	})

	runner := NewTaskRunner(2, nil)
	runner.Start()
	defer runner.Stop()

	f := newFixture(t, runner, 2, blocking)
	ctx := context.Background()

	require.NoError(t, f.sched.Schedule(ctx, blocking.Instance("1"), f.clock.Now()))
	f.sched.ExecuteDue()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not start")
	}

	snapshot := f.sched.CurrentlyExecuting()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "blocking/1", snapshot[0].Execution.TaskInstance.Key())

	now := f.clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, snapshot[0].Duration(now))

	close(release)
	require.Eventually(t, func() bool {
		return len(f.sched.CurrentlyExecuting()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	// 完成后记录被删除（一次性任务）
	require.Eventually(t, func() bool {
		_, err := f.repo.Get(ctx, blocking.Instance("1"))
		return errors.Is(err, execution.ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond)
}
