package router

import (
	"log/slog"
	"time"

	"bookkeeping/api"
	"bookkeeping/config"
	_ "bookkeeping/docs"
	"bookkeeping/metrics"
	"bookkeeping/middleware"
	"bookkeeping/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// 登录限流：每个 IP 每分钟最多 10 次
const (
	loginRateLimitMax    = 10
	loginRateLimitWindow = time.Minute
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, svc *service.Services, log *slog.Logger) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(log), gin.Recovery(), middleware.CORS())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		authHandler := api.NewAuthHandler(cfg, svc)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(loginRateLimitMax, loginRateLimitWindow), authHandler.Login)
		}
		v1.GET("/currencies", api.NewCurrencyHandler().List)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/profile", authHandler.UpdateProfile)

			categoryHandler := api.NewCategoryHandler(svc)
			categories := authorized.Group("/categories")
			{
				categories.GET("", categoryHandler.List)
				categories.POST("", categoryHandler.Create)
				categories.GET("/type/:kind", categoryHandler.ListByType)
				categories.GET("/:id", categoryHandler.Get)
				categories.PUT("/:id", categoryHandler.Update)
				categories.DELETE("/:id", categoryHandler.Delete)
			}

			transactionHandler := api.NewTransactionHandler(svc)
			transactions := authorized.Group("/transactions")
			{
				transactions.GET("", transactionHandler.List)
				transactions.POST("", transactionHandler.Create)
				transactions.GET("/summary", transactionHandler.Summary)
				transactions.GET("/type/:kind", transactionHandler.ListByType)
				transactions.GET("/category/:name", transactionHandler.ListByCategory)
				transactions.GET("/:id", transactionHandler.Get)
				transactions.PUT("/:id", transactionHandler.Update)
				transactions.DELETE("/:id", transactionHandler.Delete)
			}

			notificationHandler := api.NewNotificationHandler(svc)
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", notificationHandler.List)
				notifications.GET("/stats", notificationHandler.Stats)
				notifications.GET("/types", notificationHandler.Types)
				notifications.POST("/mark-all-read", notificationHandler.MarkAllRead)
				notifications.POST("/bulk-action", notificationHandler.BulkAction)
				notifications.GET("/preferences", notificationHandler.GetPreferences)
				notifications.PUT("/preferences", notificationHandler.UpdatePreferences)
				notifications.GET("/:id", notificationHandler.Get)
				notifications.PUT("/:id", notificationHandler.Update)
				notifications.DELETE("/:id", notificationHandler.Delete)
				notifications.POST("/:id/mark-read", notificationHandler.MarkRead)
			}

			// 导出相关
			exportHandler := api.NewExportHandler(svc)
			export := authorized.Group("/export")
			{
				export.GET("/csv", exportHandler.ExportCSV)
				export.GET("/excel", exportHandler.ExportExcel)
			}
		}
	}

	return r
}
