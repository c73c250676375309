package schedule

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// Policy 重复任务的调度策略
// 根据上一次完成时间和连续失败次数计算下一次执行时间
// 返回 mo.None 表示不再调度
type Policy interface {
	NextExecution(completionTime time.Time, consecutiveFailures int) mo.Option[time.Time]
}

// FixedDelay 固定间隔策略：永远返回 completionTime + delay
// 失败不改变节奏，间隔相对于上一次运行结束的时间
type FixedDelay struct {
	delay time.Duration
}

func NewFixedDelay(delay time.Duration) FixedDelay {
	return FixedDelay{delay: delay}
}

func (p FixedDelay) NextExecution(completionTime time.Time, _ int) mo.Option[time.Time] {
	return mo.Some(completionTime.Add(p.delay))
}

func (p FixedDelay) String() string {
	return fmt.Sprintf("FixedDelay(%s)", p.delay)
}

// Daily 每日定点策略：返回下一个到达的时间点（UTC）
type Daily struct {
	times []timeOfDay
}

type timeOfDay struct {
	hour, minute int
}

func NewDaily(times ...string) (Daily, error) {
	if len(times) == 0 {
		return Daily{}, fmt.Errorf("daily schedule needs at least one time of day")
	}
	parsed := make([]timeOfDay, 0, len(times))
	for _, t := range times {
		var h, m int
		if _, err := fmt.Sscanf(t, "%d:%d", &h, &m); err != nil {
			return Daily{}, fmt.Errorf("invalid time of day %q: %w", t, err)
		}
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return Daily{}, fmt.Errorf("invalid time of day %q", t)
		}
		parsed = append(parsed, timeOfDay{hour: h, minute: m})
	}
	return Daily{times: parsed}, nil
}

func (p Daily) NextExecution(completionTime time.Time, _ int) mo.Option[time.Time] {
	base := completionTime.UTC()
	var best time.Time
	for _, tod := range p.times {
		candidate := time.Date(base.Year(), base.Month(), base.Day(), tod.hour, tod.minute, 0, 0, time.UTC)
		if !candidate.After(base) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return mo.Some(best)
}
