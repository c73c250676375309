package task

import (
	"context"
	"testing"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/schedule"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingOps 记录完成处置调用
type recordingOps struct {
	rescheduledAt *time.Time
	removed       bool
	stopped       bool
}

func (o *recordingOps) Reschedule(at time.Time) error {
	o.rescheduledAt = &at
	return nil
}

func (o *recordingOps) Remove() error {
	o.removed = true
	return nil
}

func (o *recordingOps) Stop() {
	o.stopped = true
}

// nonePolicy 永远返回 None
type nonePolicy struct{}

func (nonePolicy) NextExecution(time.Time, int) mo.Option[time.Time] {
	return mo.None[time.Time]()
}

func noopHandler(context.Context, execution.TaskInstance) error {
	return nil
}

func TestCompletionHandlerResolution(t *testing.T) {
	oneTime := OneTime("a", noopHandler)
	assert.IsType(t, OnCompleteRemove{}, oneTime.CompletionHandler())

	recurring := Recurring("b", schedule.NewFixedDelay(time.Minute), noopHandler)
	assert.IsType(t, OnCompleteReschedule{}, recurring.CompletionHandler())

	explicit := execution.CompletionHandlerFunc(func(execution.ExecutionComplete, execution.Operations) {})
	custom := Custom("c", explicit, noopHandler)
	assert.IsType(t, explicit, custom.CompletionHandler())
}

func TestOnCompleteRescheduleFollowsPolicy(t *testing.T) {
	stopped := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completed := execution.ExecutionComplete{StoppedAt: stopped}

	ops := &recordingOps{}
	OnCompleteReschedule{Policy: schedule.NewFixedDelay(time.Hour)}.Complete(completed, ops)
	require.NotNil(t, ops.rescheduledAt)
	assert.Equal(t, stopped.Add(time.Hour), *ops.rescheduledAt)
	assert.False(t, ops.removed)

	// 策略返回 None 时删除
	ops = &recordingOps{}
	OnCompleteReschedule{Policy: nonePolicy{}}.Complete(completed, ops)
	assert.True(t, ops.removed)
	assert.Nil(t, ops.rescheduledAt)
}

func TestOnCompleteRemove(t *testing.T) {
	ops := &recordingOps{}
	OnCompleteRemove{}.Complete(execution.ExecutionComplete{}, ops)
	assert.True(t, ops.removed)
}

func TestRegistry(t *testing.T) {
	a := OneTime("a", noopHandler)
	b := OneTime("b", noopHandler)

	registry, err := NewRegistry(b, a)
	require.NoError(t, err)

	got, ok := registry.Lookup("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = registry.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, registry.Names())

	// 重名注册被拒绝
	assert.Error(t, registry.Register(OneTime("a", noopHandler)))
	// 缺少处理函数被拒绝
	assert.Error(t, registry.Register(&Task{Name: "x"}))
	assert.Error(t, registry.Register(nil))
}

func TestInstanceConstruction(t *testing.T) {
	a := OneTime("a", noopHandler)

	inst := a.Instance("42")
	assert.Equal(t, "a/42", inst.Key())

	withData := a.InstanceWithData("42", map[string]any{"k": "v"})
	assert.Equal(t, "v", withData.Data["k"])
}
