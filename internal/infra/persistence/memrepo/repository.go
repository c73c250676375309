// Package memrepo provides an in-memory execution repository.
// It backs single process deployments and tests where a database
// would be overkill.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/jobs/dispatch/internal/biz/execution"
	"github.com/samber/mo"
)

type Repository struct {
	schedulerName string

	mu         sync.Mutex
	executions map[string]*domain.Execution
}

var _ domain.Repo = (*Repository)(nil)

func New(schedulerName string) *Repository {
	return &Repository{
		schedulerName: schedulerName,
		executions:    make(map[string]*domain.Execution),
	}
}

func (r *Repository) Schedule(_ context.Context, instance domain.TaskInstance, executionTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instance.Key()
	if _, exists := r.executions[key]; exists {
		return domain.ErrAlreadyScheduled
	}
	now := time.Now()
	r.executions[key] = &domain.Execution{
		CreatedAt:     now,
		UpdatedAt:     now,
		TaskInstance:  instance,
		ExecutionTime: executionTime,
	}
	return nil
}

func (r *Repository) Reschedule(_ context.Context, instance domain.TaskInstance, executionTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.executions[instance.Key()]
	if !exists || e.Picked {
		return domain.ErrNotFound
	}
	e.ExecutionTime = executionTime
	e.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) Cancel(_ context.Context, instance domain.TaskInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instance.Key()
	e, exists := r.executions[key]
	if !exists {
		return domain.ErrNotFound
	}
	if !e.Picked {
		delete(r.executions, key)
		return nil
	}
	e.CancelRequested = true
	e.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) PickDue(_ context.Context, now time.Time, limit int) ([]*domain.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	var due []*domain.Execution
	for _, e := range r.executions {
		if !e.Picked && e.IsDue(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ExecutionTime.Equal(due[j].ExecutionTime) {
			return due[i].TaskInstance.Key() < due[j].TaskInstance.Key()
		}
		return due[i].ExecutionTime.Before(due[j].ExecutionTime)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	picked := make([]*domain.Execution, 0, len(due))
	for _, e := range due {
		e.Claim(r.schedulerName, now)
		e.UpdatedAt = time.Now()
		picked = append(picked, clone(e))
	}
	return picked, nil
}

func (r *Repository) Release(_ context.Context, instance domain.TaskInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.executions[instance.Key()]
	if !exists || !e.Picked {
		return nil
	}
	e.Unclaim()
	e.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) Remove(_ context.Context, instance domain.TaskInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executions, instance.Key())
	return nil
}

func (r *Repository) UpdateAfterCompletion(_ context.Context, instance domain.TaskInstance, next mo.Option[time.Time], result domain.Result, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := instance.Key()
	e, exists := r.executions[key]
	if !exists {
		return domain.ErrNotFound
	}
	nextTime, hasNext := next.Get()
	if e.CancelRequested || !hasNext {
		delete(r.executions, key)
		return nil
	}
	e.ExecutionTime = nextTime
	e.Unclaim()
	e.RecordResult(result, completedAt)
	e.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) ReleaseDead(_ context.Context, alive []string, pickedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	aliveSet := make(map[string]struct{}, len(alive))
	for _, id := range alive {
		aliveSet[id] = struct{}{}
	}
	var released int64
	for _, e := range r.executions {
		if !e.Picked || e.PickedAt == nil || e.PickedAt.After(pickedBefore) {
			continue
		}
		if _, ok := aliveSet[e.PickedBy]; ok {
			continue
		}
		e.Unclaim()
		e.UpdatedAt = time.Now()
		released++
	}
	return released, nil
}

func (r *Repository) Get(_ context.Context, instance domain.TaskInstance) (*domain.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.executions[instance.Key()]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return clone(e), nil
}

func (r *Repository) List(_ context.Context, filter domain.ListFilter, offset, limit int) ([]*domain.Execution, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Execution
	for _, e := range r.executions {
		if taskName, ok := filter.TaskName.Get(); ok && e.TaskName != taskName {
			continue
		}
		if picked, ok := filter.Picked.Get(); ok && e.Picked != picked {
			continue
		}
		if from, ok := filter.DueFrom.Get(); ok && e.ExecutionTime.Before(from) {
			continue
		}
		if to, ok := filter.DueTo.Get(); ok && e.ExecutionTime.After(to) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ExecutionTime.Equal(matched[j].ExecutionTime) {
			return matched[i].TaskInstance.Key() < matched[j].TaskInstance.Key()
		}
		return matched[i].ExecutionTime.Before(matched[j].ExecutionTime)
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*domain.Execution, 0, len(matched))
	for _, e := range matched {
		out = append(out, clone(e))
	}
	return out, total, nil
}

func clone(e *domain.Execution) *domain.Execution {
	c := *e
	if e.PickedAt != nil {
		t := *e.PickedAt
		c.PickedAt = &t
	}
	if e.LastSuccess != nil {
		t := *e.LastSuccess
		c.LastSuccess = &t
	}
	if e.LastFailure != nil {
		t := *e.LastFailure
		c.LastFailure = &t
	}
	if e.Data != nil {
		data := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			data[k] = v
		}
		c.Data = data
	}
	return &c
}
