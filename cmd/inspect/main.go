package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jobs/dispatch/internal/biz/execution"
	"github.com/jobs/dispatch/internal/infra/persistence/executionrepo"
	"github.com/jobs/dispatch/internal/infra/persistence/instancerepo"
	"github.com/jobs/dispatch/internal/orm"
	"github.com/jobs/dispatch/pkg/config"
)

// 排查工具：直接 dump 执行表与实例表的当前内容
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.Database.Enabled {
		log.Fatal("Database is disabled in config")
	}

	storage, err := orm.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer storage.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	executionRepo := executionrepo.NewMysqlRepositoryImpl(storage.DB(), cfg.Scheduler.InstanceID)
	executions, total, err := executionRepo.List(ctx, execution.ListFilter{}, 0, 200)
	if err != nil {
		log.Fatalf("Failed to list executions: %v", err)
	}

	fmt.Printf("=== scheduled executions (%d total) ===\n", total)
	for _, e := range executions {
		spew.Dump(e)
	}

	instanceRepo := instancerepo.NewMysqlRepositoryImpl(storage.DB())
	instances, err := instanceRepo.ListAlive(ctx, time.Time{})
	if err != nil {
		log.Fatalf("Failed to list instances: %v", err)
	}

	fmt.Printf("=== scheduler instances (%d) ===\n", len(instances))
	for _, inst := range instances {
		spew.Dump(inst)
	}
}
