package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/api/rest"
	"github.com/Dhoini/channel-access-bot/internal/api/rest/handlers"
	"github.com/Dhoini/channel-access-bot/internal/api/rest/middleware"
	"github.com/Dhoini/channel-access-bot/internal/app"
	"github.com/Dhoini/channel-access-bot/internal/bot"
	"github.com/Dhoini/channel-access-bot/internal/config"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// redisPinger приводит go-redis к handlers.Pinger
type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	cfg, err := config.LoadConfig(*envPath)
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}
	log := logger.New(logger.ParseLevel(cfg.App.LogLevel))
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("Invalid configuration", "error", err)
	}

	// Создаем контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.NewApp(ctx, cfg, "server", log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}
	defer a.Close()

	a.System.StartRecording(15 * time.Second)
	defer a.System.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handlers.Pinger{"postgres": a.Pool}
	if a.Redis != nil {
		checks["redis"] = redisPinger{a.Redis}
	}

	router := bot.NewRouter(a.SubscriberService, a.PaymentIntake, a.Plans, a.Bots, log)
	engine := rest.SetupRouter(rest.RouterDeps{
		Log:         log,
		Registry:    a.Registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Health:      handlers.NewHealthHandler(checks),
		Webhooks: handlers.NewWebhookHandler(a.Projects, router, a.WebhookService, a.Dedupe,
			handlers.WebhookConfig{
				SigningKey:          cfg.Webhook.SigningKey,
				StripeWebhookSecret: cfg.Stripe.WebhookSecret,
			}, a.Metrics, log),
		Admin: handlers.NewAdminHandler(a.SubscriberService, a.WebhookService, log),
		Auth: middleware.NewJWTMiddleware(log,
			&middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}),
	})

	server := rest.NewServer(engine, rest.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, log)

	// Запуск сервера в горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
		return
	}
	log.Infow("Server stopped gracefully")
}
