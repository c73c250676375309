package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskInstanceKey(t *testing.T) {
	inst := NewTaskInstance("report", "weekly")
	assert.Equal(t, "report/weekly", inst.Key())
	assert.Equal(t, "report/weekly", inst.String())

	withData := inst.WithData(map[string]any{"k": "v"})
	assert.Equal(t, inst.Key(), withData.Key())
	assert.Nil(t, inst.Data)
}

func TestExecutionClaimUnclaim(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := &Execution{TaskInstance: NewTaskInstance("a", "1"), ExecutionTime: now}

	e.Claim("scheduler-1", now)
	assert.True(t, e.Picked)
	assert.Equal(t, "scheduler-1", e.PickedBy)
	require.NotNil(t, e.PickedAt)
	assert.Equal(t, now, *e.PickedAt)

	e.Unclaim()
	assert.False(t, e.Picked)
	assert.Empty(t, e.PickedBy)
	assert.Nil(t, e.PickedAt)
}

func TestExecutionRecordResult(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := &Execution{TaskInstance: NewTaskInstance("a", "1")}

	e.RecordResult(ResultFailed, now)
	e.RecordResult(ResultFailed, now.Add(time.Minute))
	assert.Equal(t, 2, e.ConsecutiveFailures)
	require.NotNil(t, e.LastFailure)
	assert.Equal(t, now.Add(time.Minute), *e.LastFailure)

	e.RecordResult(ResultOK, now.Add(2*time.Minute))
	assert.Equal(t, 0, e.ConsecutiveFailures)
	require.NotNil(t, e.LastSuccess)
}

func TestExecutionIsDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := &Execution{TaskInstance: NewTaskInstance("a", "1"), ExecutionTime: now}
	assert.True(t, e.IsDue(now))
	assert.False(t, e.IsDue(now.Add(-time.Second)))

	e.Claim("s1", now)
	assert.False(t, e.IsDue(now))
}
