package execution

import "time"

type Result string

const (
	ResultOK     Result = "ok"
	ResultFailed Result = "failed"
)

// ExecutionComplete 一次执行结束后传给完成处理器的瞬时值
// ConsecutiveFailures 已包含本次结果（成功归零，失败加一）
type ExecutionComplete struct {
	Execution           *Execution
	StartedAt           time.Time
	StoppedAt           time.Time
	Result              Result
	Cause               error
	ConsecutiveFailures int
}

func (c ExecutionComplete) Duration() time.Duration {
	return c.StoppedAt.Sub(c.StartedAt)
}

// Operations is the restricted handle a completion handler gets for deciding
// the post-execution disposition. Exactly one of Reschedule/Remove may be
// applied per completed execution; later calls fail.
type Operations interface {
	// Reschedule moves the execution's due time and returns it to the
	// unpicked state.
	Reschedule(at time.Time) error
	// Remove deletes the execution from the repository.
	Remove() error
	// Stop asks the owning scheduler to stop polling. Non-blocking.
	Stop()
}

// CompletionHandler decides what happens to an execution after it ran.
type CompletionHandler interface {
	Complete(completed ExecutionComplete, ops Operations)
}

// CompletionHandlerFunc adapts a plain function to CompletionHandler.
type CompletionHandlerFunc func(completed ExecutionComplete, ops Operations)

func (f CompletionHandlerFunc) Complete(completed ExecutionComplete, ops Operations) {
	f(completed, ops)
}
