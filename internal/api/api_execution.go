package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/scheduler"
	"github.com/samber/mo"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ExecutionAPI 执行记录接口
type ExecutionAPI struct {
	scheduler *scheduler.Scheduler
	repo      execution.Repo
	emitter   scheduler.IEmitter
	logger    *zap.Logger
}

func NewExecutionAPI(sched *scheduler.Scheduler, repo execution.Repo, emitter scheduler.IEmitter, logger *zap.Logger) *ExecutionAPI {
	return &ExecutionAPI{
		scheduler: sched,
		repo:      repo,
		emitter:   emitter,
		logger:    logger,
	}
}

// Schedule 调度一个任务实例
// @POST(api/v1/executions)
func (e *ExecutionAPI) Schedule(c *gin.Context) {
	var req ScheduleExecutionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executionTime := e.scheduler.Clock().Now()
	if req.ExecutionTime != "" {
		t, err := cast.ToTimeE(req.ExecutionTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution_time: " + err.Error()})
			return
		}
		executionTime = t
	}

	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	inst := execution.NewTaskInstance(req.TaskName, instanceID).WithData(req.Data)
	if err := e.scheduler.Schedule(c.Request.Context(), inst, executionTime); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task_name":      inst.TaskName,
		"instance_id":    inst.ID,
		"execution_time": executionTime,
	})
}

// Reschedule 修改执行时间
// @PUT(api/v1/executions/{task}/{id})
func (e *ExecutionAPI) Reschedule(c *gin.Context) {
	var req RescheduleExecutionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executionTime, err := cast.ToTimeE(req.ExecutionTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution_time: " + err.Error()})
		return
	}

	inst := execution.NewTaskInstance(c.Param("task"), c.Param("id"))
	if err := e.scheduler.Reschedule(c.Request.Context(), inst, executionTime); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_name":      inst.TaskName,
		"instance_id":    inst.ID,
		"execution_time": executionTime,
	})
}

// Cancel 取消任务实例，经由事件总线广播
// @DELETE(api/v1/executions/{task}/{id})
func (e *ExecutionAPI) Cancel(c *gin.Context) {
	if err := e.emitter.CancelInstance(c.Param("task"), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancel requested"})
}

// Trigger 立即触发任务实例
// @POST(api/v1/executions/{task}/{id}/trigger)
func (e *ExecutionAPI) Trigger(c *gin.Context) {
	if err := e.emitter.TriggerNow(c.Param("task"), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trigger requested"})
}

// List 分页查询执行记录
// @GET(api/v1/executions)
func (e *ExecutionAPI) List(c *gin.Context) {
	var req ListExecutionReq
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page := max(1, req.Page)
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var filter execution.ListFilter
	if req.TaskName != "" {
		filter.TaskName = mo.Some(req.TaskName)
	}
	if req.Picked != "" {
		picked, err := strconv.ParseBool(req.Picked)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid picked: " + err.Error()})
			return
		}
		filter.Picked = mo.Some(picked)
	}
	if req.DueFrom != "" {
		from, err := cast.ToTimeE(req.DueFrom)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_from: " + err.Error()})
			return
		}
		filter.DueFrom = mo.Some(from)
	}
	if req.DueTo != "" {
		to, err := cast.ToTimeE(req.DueTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_to: " + err.Error()})
			return
		}
		filter.DueTo = mo.Some(to)
	}

	executions, total, err := e.repo.List(c.Request.Context(), filter, offset, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	data := make([]ExecutionResp, 0, len(executions))
	for _, ex := range executions {
		data = append(data, toExecutionResp(ex))
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	c.JSON(http.StatusOK, ListExecutionResp{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Get 查询单条执行记录
// @GET(api/v1/executions/{task}/{id})
func (e *ExecutionAPI) Get(c *gin.Context) {
	inst := execution.NewTaskInstance(c.Param("task"), c.Param("id"))
	ex, err := e.repo.Get(c.Request.Context(), inst)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toExecutionResp(ex))
}

// Running 查询本实例在途执行
// @GET(api/v1/executions/running)
func (e *ExecutionAPI) Running(c *gin.Context) {
	now := e.scheduler.Clock().Now()
	snapshot := e.scheduler.CurrentlyExecuting()
	data := make([]RunningExecutionResp, 0, len(snapshot))
	for _, ce := range snapshot {
		data = append(data, toRunningResp(ce, now))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  data,
		"count": len(data),
	})
}
