package router

import (
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/handlers"
	"github.com/fleetwatch-dev/fleetwatch/internal/middleware"
	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider callbacks are unauthenticated and must answer 2xx fast.
	callbacks := r.Group("/callbacks")
	{
		callbacks.POST("/voice/status", handlers.VoiceStatusCallback)
		callbacks.POST("/voice/gather", handlers.VoiceGatherCallback)
		callbacks.POST("/messages/status", handlers.MessageStatusCallback)
		callbacks.POST("/messages/inbound", handlers.InboundMessageCallback)
	}

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register)
			auth.POST("/login", handlers.Login)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
		}

		alerts := api.Group("/alerts", middleware.AuthMiddleware())
		{
			alerts.POST("", handlers.CreateAlert)
			alerts.GET("", handlers.ListAlerts)
			alerts.GET("/:alert_id/review", handlers.GetAlertReview)
			alerts.PATCH("/:alert_id/status", handlers.UpdateAlertStatus)
			alerts.POST("/:alert_id/comments", handlers.CreateComment)
			alerts.GET("/:alert_id/comments", handlers.GetComments)
			alerts.GET("/:alert_id/activities", handlers.GetActivities)
			alerts.POST("/:alert_id/ack", handlers.AckAlert)
			alerts.POST("/:alert_id/assign", handlers.AssignAlert)
			alerts.POST("/:alert_id/close-attention", handlers.CloseAlertAttention)
			alerts.POST("/:alert_id/reprocess", middleware.RequireSuperAdmin(), handlers.ReprocessAlert)
		}

		company := api.Group("/company", middleware.AuthMiddleware(), middleware.RequireAdmin())
		{
			company.PUT("/flags", handlers.UpdateCompanyFlags)
		}
	}

	return r
}
