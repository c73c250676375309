package scheduler

// EventType represents the type of events flowing through the bus.
type EventType string

const (
	EventTriggerNow EventType = "trigger_now"
	EventCancel     EventType = "cancel"
)

// RedisEvent is the message payload for pub/sub.
type RedisEvent struct {
	Type       EventType      `json:"type"`
	TaskName   string         `json:"task_name"`
	InstanceID string         `json:"instance_id"`
	Data       map[string]any `json:"data,omitempty"`
	Source     string         `json:"source,omitempty"`
	Timestamp  int64          `json:"ts,omitempty"`
}

const redisChannel = "dispatch:scheduler-events"
