package rest

import (
	"time"

	"github.com/Dhoini/channel-access-bot/internal/api/rest/handlers"
	"github.com/Dhoini/channel-access-bot/internal/api/rest/middleware"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps обработчики и middleware, собранные в main
type RouterDeps struct {
	Log         *logger.Logger
	Registry    *prometheus.Registry
	CORSOrigins []string
	Health      *handlers.HealthHandler
	Webhooks    *handlers.WebhookHandler
	Admin       *handlers.AdminHandler
	Auth        *middleware.JWTMiddleware
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(deps.Log))
	r.Use(gin.Recovery())
	// CORS на уровне движка: preflight OPTIONS не доходит до middleware групп
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  deps.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/health", deps.Health.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// Вебхуки на корневом уровне роутера
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/telegram", deps.Webhooks.HandleTelegramWebhook)
		webhooks.POST("/stripe", deps.Webhooks.HandleStripeWebhook)
	}

	v1 := r.Group("/api/v1")
	v1.Use(deps.Auth.RequireAuth(middleware.ScopeAdmin))
	{
		subscribers := v1.Group("/subscribers")
		{
			subscribers.GET("/:id", deps.Admin.GetSubscriber)
			subscribers.POST("/:id/approve", deps.Admin.Approve)
			subscribers.POST("/:id/reject", deps.Admin.Reject)
			subscribers.POST("/:id/suspend", deps.Admin.Suspend)
			subscribers.POST("/:id/reactivate", deps.Admin.Reactivate)
			subscribers.POST("/:id/extend", deps.Admin.Extend)
			subscribers.POST("/:id/revoke", deps.Admin.Revoke)
		}

		projects := v1.Group("/projects")
		{
			projects.POST("/:id/webhook", deps.Admin.RegisterWebhook)
		}
	}
	return r
}
