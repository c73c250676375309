package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
)

// CurrentlyExecuting 本进程内一次在途执行，仅存在于派发到完成之间，不落库
type CurrentlyExecuting struct {
	Execution *execution.Execution
	StartedAt time.Time
}

// Duration 相对 now 的已运行时长
func (c CurrentlyExecuting) Duration(now time.Time) time.Duration {
	return now.Sub(c.StartedAt)
}

// Tracker 在途执行的进程内登记表
// worker 协程注册/注销，轮询协程读取快照
type Tracker struct {
	mu      sync.Mutex
	entries map[string]CurrentlyExecuting
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]CurrentlyExecuting)}
}

func (t *Tracker) Register(e *execution.Execution, startedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[e.TaskInstance.Key()] = CurrentlyExecuting{Execution: e, StartedAt: startedAt}
}

func (t *Tracker) Deregister(e *execution.Execution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, e.TaskInstance.Key())
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot 按开始时间升序返回在途执行
func (t *Tracker) Snapshot() []CurrentlyExecuting {
	t.mu.Lock()
	out := make([]CurrentlyExecuting, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Execution.TaskInstance.Key() < out[j].Execution.TaskInstance.Key()
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
