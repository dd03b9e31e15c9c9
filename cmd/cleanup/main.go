package main

import (
	"flag"
	"log"
	"os"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/database"
	"github.com/qs3c/codelens_go_server/internal/pkg/cron"
	"github.com/qs3c/codelens_go_server/internal/repository"
	"github.com/qs3c/codelens_go_server/internal/service"
)

var uploadExpire = flag.Int("upload-expire", 0, "Hours to keep upload temp dirs (0 = use config)")

func main() {
	flag.Parse()

	log.Println("Starting cleanup task...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	projectService := service.NewProjectService(
		repository.NewProjectRepository(db),
		repository.NewReportRepository(db),
		repository.NewIndexRepository(db),
		nil,
		cfg,
	)

	expireHours := cfg.Upload.ExpireHours
	if *uploadExpire > 0 {
		expireHours = *uploadExpire
	}

	cronService := cron.NewService(projectService, os.TempDir(), expireHours)
	cleaned, err := cronService.RunNow()
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	log.Printf("Cleanup completed, removed %d items", cleaned)
}
