package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jobs/dispatch/internal/api/middleware"
	"github.com/jobs/dispatch/pkg/telemetry"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
}

func NewServer(
	executionAPI *ExecutionAPI,
	taskAPI *TaskAPI,
	commonAPI *CommonAPI,
	stats *telemetry.Stats,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.ErrorHandlingMiddleware(logger))
	s.router.Use(middleware.Cors())

	v1 := s.router.Group("/api/v1")
	{
		executions := v1.Group("/executions")
		{
			executions.POST("", executionAPI.Schedule)
			executions.GET("", executionAPI.List)
			executions.GET("/running", executionAPI.Running)
			executions.GET("/:task/:id", executionAPI.Get)
			executions.PUT("/:task/:id", executionAPI.Reschedule)
			executions.DELETE("/:task/:id", executionAPI.Cancel)
			executions.POST("/:task/:id/trigger", executionAPI.Trigger)
		}

		v1.GET("/tasks", taskAPI.List)
		v1.GET("/health", commonAPI.HealthCheck)
		v1.GET("/scheduler/stats", commonAPI.SchedulerStats)
	}

	if stats != nil {
		s.router.GET("/metrics", gin.WrapH(stats.Handler()))
	}

	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
