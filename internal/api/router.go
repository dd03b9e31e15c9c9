package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/api/handler"
	"github.com/qs3c/codelens_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	projectHandler   *handler.ProjectHandler
	indexHandler     *handler.IndexHandler
	analysisHandler  *handler.AnalysisHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	projectHandler *handler.ProjectHandler,
	indexHandler *handler.IndexHandler,
	analysisHandler *handler.AnalysisHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		projectHandler:   projectHandler,
		indexHandler:     indexHandler,
		analysisHandler:  analysisHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket（token 走查询参数）
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			authenticated.GET("/user/profile", r.authHandler.Profile)

			// 项目
			projects := authenticated.Group("/projects")
			{
				projects.POST("", r.projectHandler.Upload)
				projects.POST("/import", r.projectHandler.Import)
				projects.GET("", r.projectHandler.List)
				projects.GET("/:id", r.projectHandler.Get)
				projects.DELETE("/:id", r.projectHandler.Delete)

				// 语义索引
				projects.POST("/:id/index", r.indexHandler.Build)
				projects.POST("/:id/index/search", r.indexHandler.Search)
				projects.GET("/:id/index/status", r.indexHandler.Status)

				// 项目维度的分析视图
				projects.GET("/:id/analyses", r.analysisHandler.History)
				projects.GET("/:id/recommendations", r.analysisHandler.Recommendations)
			}

			// 分析任务
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Start)
				analyses.GET("/:id", r.analysisHandler.Status)
				analyses.POST("/:id/cancel", r.analysisHandler.Cancel)
				analyses.GET("/:id/explanations", r.analysisHandler.Explanations)
				analyses.GET("/:id/vulnerabilities", r.analysisHandler.Vulnerabilities)
			}
		}
	}

	return engine
}
