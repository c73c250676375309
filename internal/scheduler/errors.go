package scheduler

import "errors"

// ErrUnknownTask indicates a schedule request referenced a task name that is
// not in the registry, so no handler could ever run it.
var ErrUnknownTask = errors.New("unknown task")

// ErrAlreadyDecided indicates a completion handler tried to apply a second
// disposition to the same completed execution.
var ErrAlreadyDecided = errors.New("completion already decided")
