package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/internal/orm"
	"github.com/jobs/dispatch/internal/scheduler"
)

// aliveWindow 实例心跳的存活判定窗口
const aliveWindow = 5 * time.Minute

// CommonAPI 健康检查与调度器状态接口
type CommonAPI struct {
	storage      *orm.Storage
	scheduler    *scheduler.Scheduler
	instanceRepo instance.Repo
}

func NewCommonAPI(storage *orm.Storage, sched *scheduler.Scheduler, instanceRepo instance.Repo) *CommonAPI {
	return &CommonAPI{
		storage:      storage,
		scheduler:    sched,
		instanceRepo: instanceRepo,
	}
}

type SchedulerStatsResp struct {
	InstanceID     string                        `json:"instance_id"`
	Running        int                           `json:"running"`
	SlotsAvailable int                           `json:"slots_available"`
	SlotsCapacity  int                           `json:"slots_capacity"`
	Instances      []*instance.SchedulerInstance `json:"instances,omitempty"`
	Time           time.Time                     `json:"time"`
}

// HealthCheck 健康检查
// @GET(api/v1/health)
func (a *CommonAPI) HealthCheck(c *gin.Context) {
	if a.storage != nil {
		if err := a.storage.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// SchedulerStats 调度器运行状态
// @GET(api/v1/scheduler/stats)
func (a *CommonAPI) SchedulerStats(c *gin.Context) {
	now := a.scheduler.Clock().Now()
	resp := SchedulerStatsResp{
		InstanceID:     a.scheduler.InstanceID(),
		Running:        len(a.scheduler.CurrentlyExecuting()),
		SlotsAvailable: a.scheduler.Slots().Available(),
		SlotsCapacity:  a.scheduler.Slots().Capacity(),
		Time:           now,
	}
	if a.instanceRepo != nil {
		instances, err := a.instanceRepo.ListAlive(c.Request.Context(), now.Add(-aliveWindow))
		if err != nil {
			c.Error(err)
			return
		}
		resp.Instances = instances
	}
	c.JSON(http.StatusOK, resp)
}
