package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/jobs/dispatch/internal/orm"
	"github.com/jobs/dispatch/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.Database.Enabled {
		log.Fatal("Database is disabled in config, nothing to migrate")
	}

	// orm.New 连接时执行 AutoMigrate
	storage, err := orm.New(cfg.Database)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer storage.Close()

	fmt.Println("Migration completed successfully!")
}
