package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/schedule"
	"github.com/jobs/dispatch/internal/biz/task"
	"github.com/jobs/dispatch/internal/infra/persistence/memrepo"
	"github.com/jobs/dispatch/internal/scheduler"
	"github.com/jobs/dispatch/pkg/clock"
	"github.com/jobs/dispatch/pkg/config"
	"github.com/jobs/dispatch/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testSetup 内存仓储上的完整 API 环境
type testSetup struct {
	clock  *clock.SettableClock
	repo   *memrepo.Repository
	sched  *scheduler.Scheduler
	server *Server
}

func setupAPITest(t *testing.T) *testSetup {
	t.Helper()

	clk := clock.NewSettableClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := memrepo.New("api-test")

	recurring := task.Recurring("report", schedule.NewFixedDelay(time.Hour),
		func(ctx context.Context, inst execution.TaskInstance) error {
			return nil
		})
	oneTime := task.OneTime("notify",
		func(ctx context.Context, inst execution.TaskInstance) error {
			return nil
		})
	registry, err := task.NewRegistry(recurring, oneTime)
	require.NoError(t, err)

	cfg := config.SchedulerConfig{InstanceID: "api-test", PollInterval: time.Second, MaxWorkers: 4}
	sched := scheduler.New(cfg, clk, repo, registry, scheduler.DirectRunner{}, nil, nil, nil, nil, zap.NewNop())
	emitter := scheduler.NewEventBus(sched, nil, zap.NewNop())

	executionAPI := NewExecutionAPI(sched, repo, emitter, zap.NewNop())
	taskAPI := NewTaskAPI(registry)
	commonAPI := NewCommonAPI(nil, sched, nil)
	server := NewServer(executionAPI, taskAPI, commonAPI, telemetry.NewStats(), zap.NewNop())

	return &testSetup{clock: clk, repo: repo, sched: sched, server: server}
}

func (s *testSetup) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestScheduleEndpoint(t *testing.T) {
	s := setupAPITest(t)

	rec := s.do("POST", "/api/v1/executions", ScheduleExecutionReq{
		TaskName:      "notify",
		InstanceID:    "42",
		ExecutionTime: "2025-06-01T13:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	e, err := s.repo.Get(context.Background(), execution.NewTaskInstance("notify", "42"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), e.ExecutionTime.UTC())

	// 重复调度同一实例
	rec = s.do("POST", "/api/v1/executions", ScheduleExecutionReq{
		TaskName:   "notify",
		InstanceID: "42",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 未注册的任务
	rec = s.do("POST", "/api/v1/executions", ScheduleExecutionReq{
		TaskName: "missing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 缺少任务名
	rec = s.do("POST", "/api/v1/executions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleGeneratesInstanceID(t *testing.T) {
	s := setupAPITest(t)

	rec := s.do("POST", "/api/v1/executions", ScheduleExecutionReq{TaskName: "notify"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["instance_id"])
}

func TestRescheduleAndGetEndpoints(t *testing.T) {
	s := setupAPITest(t)
	ctx := context.Background()

	inst := execution.NewTaskInstance("report", "weekly")
	require.NoError(t, s.repo.Schedule(ctx, inst, s.clock.Now().Add(24*time.Hour)))

	rec := s.do("PUT", "/api/v1/executions/report/weekly", RescheduleExecutionReq{
		ExecutionTime: "2025-06-01T15:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("GET", "/api/v1/executions/report/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got ExecutionResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "report", got.TaskName)
	assert.Equal(t, time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC), got.ExecutionTime.UTC())

	// 不存在的记录
	rec = s.do("GET", "/api/v1/executions/report/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("PUT", "/api/v1/executions/report/missing", RescheduleExecutionReq{
		ExecutionTime: "2025-06-01T15:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	s := setupAPITest(t)
	ctx := context.Background()

	inst := execution.NewTaskInstance("report", "weekly")
	require.NoError(t, s.repo.Schedule(ctx, inst, s.clock.Now().Add(time.Hour)))

	rec := s.do("DELETE", "/api/v1/executions/report/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := s.repo.Get(ctx, inst)
	assert.ErrorIs(t, err, execution.ErrNotFound)

	rec = s.do("DELETE", "/api/v1/executions/report/weekly", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerEndpoint(t *testing.T) {
	s := setupAPITest(t)
	ctx := context.Background()

	inst := execution.NewTaskInstance("report", "weekly")
	require.NoError(t, s.repo.Schedule(ctx, inst, s.clock.Now().Add(24*time.Hour)))

	rec := s.do("POST", "/api/v1/executions/report/weekly/trigger", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	e, err := s.repo.Get(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, s.clock.Now(), e.ExecutionTime)
}

func TestListEndpoint(t *testing.T) {
	s := setupAPITest(t)
	ctx := context.Background()

	require.NoError(t, s.repo.Schedule(ctx, execution.NewTaskInstance("report", "a"), s.clock.Now()))
	require.NoError(t, s.repo.Schedule(ctx, execution.NewTaskInstance("report", "b"), s.clock.Now().Add(time.Hour)))
	require.NoError(t, s.repo.Schedule(ctx, execution.NewTaskInstance("notify", "c"), s.clock.Now().Add(2*time.Hour)))

	rec := s.do("GET", "/api/v1/executions?task_name=report", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListExecutionResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a", resp.Data[0].InstanceID)

	rec = s.do("GET", "/api/v1/executions?picked=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasksHealthAndMetricsEndpoints(t *testing.T) {
	s := setupAPITest(t)

	rec := s.do("GET", "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report")
	assert.Contains(t, rec.Body.String(), "notify")

	rec = s.do("GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = s.do("GET", "/api/v1/scheduler/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats SchedulerStatsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "api-test", stats.InstanceID)
	assert.Equal(t, 4, stats.SlotsCapacity)

	rec = s.do("GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
