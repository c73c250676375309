package scheduler

import "github.com/google/wire"

var Provider = wire.NewSet(
	New,
	NewEventBus,
	NewDeadExecutionDetector,
)

type IEmitter interface {
	TriggerNow(taskName, instanceID string) error
	CancelInstance(taskName, instanceID string) error
}
