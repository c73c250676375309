package main

import (
	"github.com/jobs/dispatch/internal/api"
	"github.com/jobs/dispatch/internal/scheduler"
)

// App 聚合进程内的长生命周期组件
type App struct {
	Scheduler *scheduler.Scheduler
	EventBus  *scheduler.EventBus
	Server    *api.Server
}

func NewApp(sched *scheduler.Scheduler, eventBus *scheduler.EventBus, server *api.Server) *App {
	return &App{
		Scheduler: sched,
		EventBus:  eventBus,
		Server:    server,
	}
}
