package clock

import (
	"sync"
	"time"
)

// Clock 调度器的唯一时间来源
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

func NewSystemClock() SystemClock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// SettableClock 可设置的时钟，用于测试
// Set 之后所有读取方立即可见
type SettableClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewSettableClock(now time.Time) *SettableClock {
	return &SettableClock{now: now}
}

func (c *SettableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SettableClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance 将时钟前移 d 并返回新的当前时间
func (c *SettableClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
