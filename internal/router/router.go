package router

import (
	"strings"

	"github.com/glassline/internal/cache"
	"github.com/glassline/internal/config"
	"github.com/glassline/internal/constants"
	glasshandlers "github.com/glassline/internal/http/handlers/glass"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.Z()
	r := gin.New()

	glassHandler := glasshandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	importLimit := RateLimitMiddleware(cache.Client(), NewRateLimitRule(redisPrefix, "glass_import", cfg.RateLimit.Import), KeyByIPAndRoute)

	// 中间件
	r.Use(RecoveryMiddleware(log))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	glass := apiV1.Group("/glass")
	{
		orders := glass.Group("/orders")
		{
			orders.POST("/import", importLimit, glassHandler.ImportGlassOrder)
			orders.GET("", glassHandler.GetGlassOrders)
			orders.GET("/:id", glassHandler.GetGlassOrder)
			orders.GET("/:id/summary", glassHandler.GetGlassOrderSummary)
			orders.PUT("/:id/status", glassHandler.UpdateGlassOrderStatus)
			orders.DELETE("/:id", glassHandler.DeleteGlassOrder)
		}

		deliveries := glass.Group("/deliveries")
		{
			deliveries.POST("/import", importLimit, glassHandler.ImportGlassDelivery)
			deliveries.GET("", glassHandler.GetGlassDeliveries)
			deliveries.GET("/latest", glassHandler.GetLatestDeliveryImport)
			deliveries.GET("/:id", glassHandler.GetGlassDelivery)
			deliveries.DELETE("/:id", glassHandler.DeleteGlassDelivery)
		}

		validations := glass.Group("/validations")
		{
			validations.GET("", glassHandler.GetValidations)
			validations.GET("/unresolved", glassHandler.GetUnresolvedValidations)
			validations.GET("/dashboard", glassHandler.GetValidationDashboard)
			validations.GET("/orders/:order_number", glassHandler.GetValidationsByOrderNumber)
			validations.POST("/:id/resolve", glassHandler.ResolveValidation)
		}

		glass.GET("/discrepancies/:order_number", glassHandler.GetDiscrepancies)
		glass.POST("/rematch", glassHandler.Rematch)

		matchingQueue := glass.Group("/queue")
		{
			matchingQueue.GET("/stats", glassHandler.GetQueueStats)
			matchingQueue.GET("/jobs", glassHandler.GetQueueJobs)
			matchingQueue.POST("/pause", glassHandler.PauseQueue)
			matchingQueue.POST("/resume", glassHandler.ResumeQueue)
			matchingQueue.POST("/clear", glassHandler.ClearQueue)
		}
	}

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{
			"status":         "ok",
			"redis":          cache.Enabled(),
			"asynq":          c.QueueClient != nil && c.QueueClient.Enabled(),
			"matching_queue": c.MatchingQueue != nil,
		})
	})

	return r
}
