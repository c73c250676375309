package scheduler

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/jobs/dispatch/internal/biz/execution"
	"go.uber.org/zap"
)

// EventBus publishes cross-instance trigger/cancel events via Redis pub/sub.
// It keeps a fallback to direct calls if Redis is disabled/not reachable.
var _ IEmitter = (*EventBus)(nil)

type EventBus struct {
	scheduler *Scheduler
	rdb       *redis.Client
	logger    *zap.Logger

	cancel context.CancelFunc
}

// NewEventBus constructs an event bus with an injected Redis client.
// If rdb is nil, it falls back to direct in-process calls.
func NewEventBus(scheduler *Scheduler, rdb *redis.Client, logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{scheduler: scheduler, rdb: rdb, logger: logger}
}

// Start subscribes to the event channel. No-op without Redis.
func (e *EventBus) Start() {
	if e.rdb == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	sub := e.rdb.Subscribe(ctx, redisChannel)
	go func() {
		defer sub.Close()
		for {
			select {
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var ev RedisEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					e.logger.Error("failed to decode scheduler event", zap.Error(err))
					continue
				}
				if err := e.dispatch(ctx, ev); err != nil {
					e.logger.Error("failed to apply scheduler event",
						zap.String("type", string(ev.Type)),
						zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (e *EventBus) Close() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *EventBus) dispatch(ctx context.Context, ev RedisEvent) error {
	inst := execution.NewTaskInstance(ev.TaskName, ev.InstanceID).WithData(ev.Data)
	switch ev.Type {
	case EventTriggerNow:
		return e.scheduler.TriggerNow(ctx, inst)
	case EventCancel:
		return e.scheduler.Cancel(ctx, inst)
	default:
		return nil
	}
}

func (e *EventBus) publish(ctx context.Context, ev RedisEvent) error {
	if e.rdb == nil { // fallback when redis disabled
		return e.dispatch(ctx, ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.rdb.Publish(ctx, redisChannel, payload).Err()
}

func (e *EventBus) TriggerNow(taskName, instanceID string) error {
	ev := RedisEvent{
		Type:       EventTriggerNow,
		TaskName:   taskName,
		InstanceID: instanceID,
		Source:     e.scheduler.InstanceID(),
		Timestamp:  time.Now().UnixMilli(),
	}
	return e.publish(context.Background(), ev)
}

func (e *EventBus) CancelInstance(taskName, instanceID string) error {
	ev := RedisEvent{
		Type:       EventCancel,
		TaskName:   taskName,
		InstanceID: instanceID,
		Source:     e.scheduler.InstanceID(),
		Timestamp:  time.Now().UnixMilli(),
	}
	return e.publish(context.Background(), ev)
}
