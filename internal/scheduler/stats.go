package scheduler

// StatsRegistry is a passive sink for scheduler counters. Implementations
// must be safe for concurrent use from the poll goroutine and workers.
type StatsRegistry interface {
	IncrementCounter(name string)
}

// Counter names reported by the scheduler.
const (
	CounterCompletedOK     = "executions.completed.ok"
	CounterCompletedFailed = "executions.completed.failed"
	CounterPoolFull        = "executions.pool_full"
	CounterLostRace        = "executions.lost_race"
	CounterUnknownTask     = "executions.unknown_task"
	CounterRepositoryError = "repository.errors"
	CounterDeadReleased    = "executions.dead_released"
)

// NoopStats discards all counters.
type NoopStats struct{}

func (NoopStats) IncrementCounter(string) {}
