package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobs/dispatch/internal/api"
	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/biz/instance"
	"github.com/jobs/dispatch/internal/biz/task"
	"github.com/jobs/dispatch/internal/infra/persistence/executionrepo"
	"github.com/jobs/dispatch/internal/infra/persistence/instancerepo"
	"github.com/jobs/dispatch/internal/infra/persistence/memrepo"
	"github.com/jobs/dispatch/internal/orm"
	"github.com/jobs/dispatch/internal/scheduler"
	"github.com/jobs/dispatch/pkg/config"
	"github.com/jobs/dispatch/pkg/logger"
	"github.com/jobs/dispatch/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	// 解析命令行参数
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 创建日志器
	zapLogger, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting dispatch scheduler",
		zap.String("instance_id", cfg.Scheduler.InstanceID))

	// 创建存储；未启用数据库时退化为内存仓储，仅适合单实例
	var (
		storage       *orm.Storage
		executionRepo execution.Repo
		instanceRepo  instance.Repo
		locker        *scheduler.Locker
	)
	if cfg.Database.Enabled {
		storage, err = orm.New(cfg.Database)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer storage.Close()

		executionRepo = executionrepo.NewMysqlRepositoryImpl(storage.DB(), cfg.Scheduler.InstanceID)
		instanceRepo = instancerepo.NewMysqlRepositoryImpl(storage.DB())

		sqlDB, err := storage.DB().DB()
		if err != nil {
			zapLogger.Fatal("Failed to get sql.DB", zap.Error(err))
		}
		locker = scheduler.NewLocker(sqlDB, cfg.Detector.LockKey, cfg.Detector.LockWait, zapLogger)
	} else {
		zapLogger.Warn("Database disabled, using in-memory repository")
		executionRepo = memrepo.New(cfg.Scheduler.InstanceID)
	}

	// 创建统计
	var stats scheduler.StatsRegistry
	var promStats *telemetry.Stats
	if cfg.Stats.Enabled {
		promStats = telemetry.NewStats()
		stats = promStats
	}

	// 注册任务
	registry, err := task.NewRegistry(builtinTasks(zapLogger)...)
	if err != nil {
		zapLogger.Fatal("Failed to build task registry", zap.Error(err))
	}

	// 创建调度器组件
	runner := scheduler.NewTaskRunner(cfg.Scheduler.MaxWorkers, zapLogger)
	slots := scheduler.NewSlots(cfg.Scheduler.MaxWorkers)

	var detector *scheduler.DeadExecutionDetector
	if cfg.Detector.Enabled && instanceRepo != nil {
		detector = scheduler.NewDeadExecutionDetector(
			zapLogger, cfg.Detector, nil, executionRepo, instanceRepo, locker, stats)
	}

	sched := scheduler.New(
		cfg.Scheduler,
		nil,
		executionRepo,
		registry,
		runner,
		slots,
		instanceRepo,
		detector,
		stats,
		zapLogger,
	)

	if err := sched.Start(); err != nil {
		zapLogger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// 事件总线：redis 未启用时事件直接作用于本实例
	emitter := scheduler.NewEventBus(sched, ProvideRedisClient(*cfg), zapLogger)
	emitter.Start()

	// 创建API服务器
	executionAPI := api.NewExecutionAPI(sched, executionRepo, emitter, zapLogger)
	taskAPI := api.NewTaskAPI(registry)
	commonAPI := api.NewCommonAPI(storage, sched, instanceRepo)
	apiServer := api.NewServer(executionAPI, taskAPI, commonAPI, promStats, zapLogger)

	// 启动HTTP服务器
	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port),
		Handler:        apiServer.Router(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		zapLogger.Info("Starting API server",
			zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown API server", zap.Error(err))
	}

	emitter.Close()

	if err := sched.Stop(); err != nil {
		zapLogger.Error("Failed to stop scheduler", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
}
