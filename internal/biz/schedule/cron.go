package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/mo"
)

// Cron 基于 cron 表达式的策略
type Cron struct {
	spec     string
	schedule cron.Schedule
}

// NewCron 解析标准五段 cron 表达式
func NewCron(spec string) (Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return Cron{}, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return Cron{spec: spec, schedule: sched}, nil
}

func (p Cron) NextExecution(completionTime time.Time, _ int) mo.Option[time.Time] {
	return mo.Some(p.schedule.Next(completionTime))
}

func (p Cron) String() string {
	return fmt.Sprintf("Cron(%s)", p.spec)
}
