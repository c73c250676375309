package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettableClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewSettableClock(start)

	assert.Equal(t, start, clk.Now())

	later := start.Add(time.Hour)
	clk.Set(later)
	assert.Equal(t, later, clk.Now())

	got := clk.Advance(30 * time.Minute)
	assert.Equal(t, later.Add(30*time.Minute), got)
	assert.Equal(t, got, clk.Now())
}

func TestSystemClock(t *testing.T) {
	clk := NewSystemClock()
	before := time.Now()
	now := clk.Now()
	assert.False(t, now.Before(before))
}
