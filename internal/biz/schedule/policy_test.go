package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedDelay(t *testing.T) {
	done := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewFixedDelay(10 * time.Minute)

	next, ok := p.NextExecution(done, 0).Get()
	require.True(t, ok)
	assert.Equal(t, done.Add(10*time.Minute), next)

	// 失败不改变节奏
	next, ok = p.NextExecution(done, 5).Get()
	require.True(t, ok)
	assert.Equal(t, done.Add(10*time.Minute), next)
}

func TestDaily(t *testing.T) {
	p, err := NewDaily("09:30", "14:00")
	require.NoError(t, err)

	morning := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	next, ok := p.NextExecution(morning, 0).Get()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), next)

	noon := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	next, _ = p.NextExecution(noon, 0).Get()
	assert.Equal(t, time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC), next)

	// 当天所有时间点已过，滚到第二天
	evening := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	next, _ = p.NextExecution(evening, 0).Get()
	assert.Equal(t, time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC), next)
}

func TestDailyRejectsInvalidInput(t *testing.T) {
	_, err := NewDaily()
	assert.Error(t, err)

	_, err = NewDaily("25:00")
	assert.Error(t, err)

	_, err = NewDaily("not-a-time")
	assert.Error(t, err)
}

func TestCron(t *testing.T) {
	p, err := NewCron("0 * * * *")
	require.NoError(t, err)

	done := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	next, ok := p.NextExecution(done, 0).Get()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), next)

	_, err = NewCron("not a cron spec")
	assert.Error(t, err)
}

func TestExponentialBackoff(t *testing.T) {
	done := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewExponentialBackoff(time.Minute, time.Hour)

	// 成功按基础间隔
	next, _ := p.NextExecution(done, 0).Get()
	assert.Equal(t, done.Add(time.Minute), next)

	// 失败按 2^(n-1) 退避
	next, _ = p.NextExecution(done, 1).Get()
	assert.Equal(t, done.Add(time.Minute), next)

	next, _ = p.NextExecution(done, 3).Get()
	assert.Equal(t, done.Add(4*time.Minute), next)

	// 封顶
	next, _ = p.NextExecution(done, 20).Get()
	assert.Equal(t, done.Add(time.Hour), next)
}
