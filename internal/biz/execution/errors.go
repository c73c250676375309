package execution

import "errors"

// ErrAlreadyScheduled indicates an execution already exists for the task
// instance. Callers decide whether to reschedule instead; never retried
// automatically.
var ErrAlreadyScheduled = errors.New("execution already scheduled for instance")

// ErrNotFound indicates no execution exists for the task instance.
var ErrNotFound = errors.New("execution not found")
