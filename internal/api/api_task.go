package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jobs/dispatch/internal/biz/task"
)

// TaskAPI 已注册任务接口
type TaskAPI struct {
	registry *task.Registry
}

func NewTaskAPI(registry *task.Registry) *TaskAPI {
	return &TaskAPI{registry: registry}
}

// List 列出已注册任务
// @GET(api/v1/tasks)
func (t *TaskAPI) List(c *gin.Context) {
	names := t.registry.Names()
	data := make([]TaskResp, 0, len(names))
	for _, name := range names {
		tk, ok := t.registry.Lookup(name)
		if !ok {
			continue
		}
		data = append(data, TaskResp{
			Name:      tk.Name,
			Recurring: tk.Schedule != nil,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}
