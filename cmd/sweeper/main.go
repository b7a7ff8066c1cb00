package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/app"
	"github.com/Dhoini/channel-access-bot/internal/config"
	"github.com/Dhoini/channel-access-bot/internal/sweeper"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/robfig/cron/v3"
)

func main() {
	envPath := flag.String("env", ".env", "path to .env file")
	once := flag.Bool("once", false, "run expiry and reminders once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*envPath)
	if err != nil {
		logger.New(logger.INFO).Fatal("Failed to load configuration: %v", err)
	}
	log := logger.New(logger.ParseLevel(cfg.App.LogLevel)).With("process", "sweeper")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, "sweeper", log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}
	defer a.Close()

	sw := sweeper.New(a.Subscribers, a.SubscriberService, sweeper.Config{
		ExpirySpec:   cfg.Sweeper.ExpirySpec,
		ReminderSpec: cfg.Sweeper.ReminderSpec,
		BatchSize:    cfg.Sweeper.BatchSize,
	}, log)

	if *once {
		if n, err := sw.ExpireDue(ctx); err != nil {
			log.Errorw("Expiry run failed", "processed", n, "error", err)
		}
		if n, err := sw.SendReminders(ctx); err != nil {
			log.Errorw("Reminder run failed", "processed", n, "error", err)
		}
		return
	}

	a.System.StartRecording(30 * time.Second)
	defer a.System.Stop()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if err := sw.Schedule(ctx, c); err != nil {
		log.Errorw("Invalid sweeper schedule", "error", err)
		return
	}
	c.Start()

	<-ctx.Done()
	log.Infow("Stopping sweeper")
	// ждём завершения текущих задач
	<-c.Stop().Done()
	log.Infow("Sweeper stopped")
}
