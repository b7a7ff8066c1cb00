// Package app сборка зависимостей, общая для HTTP-сервера и sweeper.
package app

import (
	"context"
	"fmt"

	"github.com/Dhoini/channel-access-bot/internal/checkout"
	"github.com/Dhoini/channel-access-bot/internal/config"
	"github.com/Dhoini/channel-access-bot/internal/kafka"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/repository/cache"
	"github.com/Dhoini/channel-access-bot/internal/repository/postgres"
	"github.com/Dhoini/channel-access-bot/internal/service"
	"github.com/Dhoini/channel-access-bot/internal/storage"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  metrics.BotMetrics
	System   metrics.SystemMetrics

	Pool  *pgxpool.Pool
	DB    *sqlx.DB
	Redis *redis.Client

	Projects    repository.ProjectRepository
	Plans       repository.PlanRepository
	Subscribers repository.SubscriberRepository
	// Dedupe nil без Redis
	Dedupe repository.Deduplicator

	Bots      *telegram.BotProvider
	Proofs    storage.ProofStore
	Checkout  checkout.Gateway
	Publisher kafka.Publisher

	SubscriberService service.SubscriberService
	PaymentIntake     service.PaymentIntake
	WebhookService    service.WebhookService
}

// NewApp создает и инициализирует новый экземпляр приложения.
// Redis, Kafka, S3 и Stripe необязательны: без них работают упрощённые варианты.
func NewApp(ctx context.Context, cfg *config.Config, process string, log *logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
	a.Metrics = metrics.NewBotMetrics(a.Registry, log)
	a.System = metrics.NewSystemMetrics(a.Registry, process, log)

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initIntegrations(ctx)

	a.SubscriberService = service.NewSubscriberService(service.Dependencies{
		Projects:    a.Projects,
		Plans:       a.Plans,
		Subscribers: a.Subscribers,
		Bots:        a.Bots,
		Notifier:    service.NewNotifier(a.Bots, cfg.Notify.MaxElapsed, a.Metrics, log),
		Publisher:   a.Publisher,
		Metrics:     a.Metrics,
		Log:         log,
	})
	a.PaymentIntake = service.NewPaymentIntake(a.SubscriberService, a.Plans, a.Bots, a.Proofs, a.Checkout,
		service.IntakeConfig{
			DownloadTimeout: cfg.Intake.DownloadTimeout,
			StorageTimeout:  cfg.Storage.Timeout,
			MaxBytes:        cfg.Intake.MaxBytes,
		}, a.Metrics, log)
	a.WebhookService = service.NewWebhookService(a.Projects, a.SubscriberService, a.Bots, a.Dedupe,
		cfg.App.PublicBaseURL, cfg.Webhook.SigningKey, log)

	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	if cfg.Database.MigrateOnBoot {
		if err := postgres.Migrate(cfg.Database.DSN, log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.DB = postgres.NewSQLX(pool)

	var projects repository.ProjectRepository = postgres.NewProjectRepository(a.DB)
	var plans repository.PlanRepository = postgres.NewPlanRepository(a.DB)
	a.Subscribers = postgres.NewSubscriberRepository(pool, log)

	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			// без кэша и дедупликации сервис работает, CAS защищает от повторов
			log.Warnw("Redis unavailable, running without cache and dedupe", "error", err)
		} else {
			a.Redis = client
			rc := cache.NewRedisCache(client, cfg.Redis.CacheTTL, log)
			projects = cache.NewCachedProjectRepository(projects, rc, log)
			plans = cache.NewCachedPlanRepository(plans, rc, log)
			a.Dedupe = cache.NewRedisDeduplicator(client)
		}
	}
	a.Projects = projects
	a.Plans = plans
	return nil
}

func (a *App) initIntegrations(ctx context.Context) {
	cfg, log := a.Config, a.Logger

	a.Bots = telegram.NewBotProvider(telegram.Config{
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Timeout:     cfg.Telegram.Timeout,
		RateLimit:   cfg.Telegram.RateLimit,
	}, a.Metrics, log)

	if cfg.Storage.Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
			PresignTTL:      cfg.Storage.PresignTTL,
			Timeout:         cfg.Storage.Timeout,
		}, a.Metrics, log)
		if err != nil {
			log.Warnw("Proof storage disabled", "error", err)
		} else {
			a.Proofs = store
		}
	}

	if cfg.Stripe.APIKey != "" {
		gw, err := checkout.NewStripeGateway(checkout.Config{
			APIKey:     cfg.Stripe.APIKey,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
			Timeout:    cfg.Stripe.Timeout,
		}, a.Metrics, log)
		if err != nil {
			log.Warnw("Card payments disabled", "error", err)
		} else {
			a.Checkout = gw
		}
	}

	a.Publisher = kafka.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafka.NewConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err := kafka.EnsureTopics(kcfg, log); err != nil {
			log.Warnw("Failed to ensure Kafka topics", "error", err)
		}
		producer, err := kafka.NewKafkaProducer(kcfg, log)
		if err != nil {
			log.Warnw("Subscriber events disabled", "error", err)
		} else {
			a.Publisher = producer
		}
	}
}

// Close освобождает ресурсы; безопасно вызывать на частично собранном App
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warnw("Failed to close event publisher", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warnw("Failed to close Redis client", "error", err)
		}
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
