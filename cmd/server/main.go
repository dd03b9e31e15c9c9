package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/api"
	"github.com/qs3c/codelens_go_server/internal/api/handler"
	"github.com/qs3c/codelens_go_server/internal/database"
	"github.com/qs3c/codelens_go_server/internal/index"
	"github.com/qs3c/codelens_go_server/internal/pkg/cron"
	"github.com/qs3c/codelens_go_server/internal/pkg/llm"
	"github.com/qs3c/codelens_go_server/internal/pkg/oss"
	"github.com/qs3c/codelens_go_server/internal/pkg/pubsub"
	"github.com/qs3c/codelens_go_server/internal/pkg/queue"
	"github.com/qs3c/codelens_go_server/internal/pkg/ws"
	"github.com/qs3c/codelens_go_server/internal/repository"
	"github.com/qs3c/codelens_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选，未配置时归档仅保留本地目录）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 Queue
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	reportRepo := repository.NewReportRepository(db)
	explanationRepo := repository.NewExplanationRepository(db)
	vulnRepo := repository.NewVulnerabilityRepository(db)
	indexRepo := repository.NewIndexRepository(db)

	// 初始化 LLM 客户端与索引器
	llmClient := llm.NewClient(&cfg.LLM)
	indexer := index.NewIndexer(indexRepo, llmClient)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	projectService := service.NewProjectService(projectRepo, reportRepo, indexRepo, ossClient, cfg)
	indexService := service.NewIndexService(projectService, indexer, indexRepo, cfg)
	analysisService := service.NewAnalysisService(reportRepo, explanationRepo, vulnRepo, projectService, jobQueue, cfg)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService, cfg)
	indexHandler := handler.NewIndexHandler(indexService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 订阅分析进度并转发到 WebSocket
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			if !wsHub.IsOnline(msg.UserID) {
				return
			}
			if err := wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: "analysis_progress",
				Data: msg,
			}); err != nil {
				log.Printf("Failed to push progress to user %d: %v", msg.UserID, err)
			}
		})
		if err != nil {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("Progress subscriber started")

	// 启动定时清理
	cronService := cron.NewService(projectService, os.TempDir(), cfg.Upload.ExpireHours)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		projectHandler,
		indexHandler,
		analysisHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
