package schedule

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// ExponentialBackoff 指数退避策略
// 成功时按 delay 固定间隔；失败时按 delay * 2^(failures-1) 退避，封顶 maxDelay
type ExponentialBackoff struct {
	delay    time.Duration
	maxDelay time.Duration
}

func NewExponentialBackoff(delay, maxDelay time.Duration) ExponentialBackoff {
	if maxDelay <= 0 {
		maxDelay = 30 * time.Minute
	}
	return ExponentialBackoff{delay: delay, maxDelay: maxDelay}
}

func (p ExponentialBackoff) NextExecution(completionTime time.Time, consecutiveFailures int) mo.Option[time.Time] {
	d := p.delay
	if consecutiveFailures > 0 {
		shift := consecutiveFailures - 1
		// 防止位移溢出
		if shift > 16 {
			shift = 16
		}
		d = p.delay * time.Duration(1<<uint(shift))
		if d > p.maxDelay || d <= 0 {
			d = p.maxDelay
		}
	}
	return mo.Some(completionTime.Add(d))
}

func (p ExponentialBackoff) String() string {
	return fmt.Sprintf("ExponentialBackoff(%s, max %s)", p.delay, p.maxDelay)
}
