// Package sweeper фоновое истечение доступа и напоминания о продлении.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/service"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Config расписание в формате cron (поддерживаются дескрипторы вида @every 10m)
type Config struct {
	ExpirySpec   string
	ReminderSpec string
	BatchSize    int
	// RunTimeout ограничивает один проход
	RunTimeout time.Duration
}

// Sweeper проходит по подписчикам вне запросов пользователей
type Sweeper struct {
	subscribers repository.SubscriberRepository
	service     service.SubscriberService
	cfg         Config
	log         *logger.Logger
	now         func() time.Time
}

// New создает sweeper
func New(subscribers repository.SubscriberRepository, svc service.SubscriberService, cfg Config, log *logger.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &Sweeper{
		subscribers: subscribers,
		service:     svc,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Schedule регистрирует задачи в планировщике
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron) error {
	if _, err := c.AddFunc(s.cfg.ExpirySpec, func() { s.run(ctx, "expire", s.ExpireDue) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.cfg.ReminderSpec, func() { s.run(ctx, "remind", s.SendReminders) }); err != nil {
		return err
	}
	s.log.Infow("Sweeper jobs scheduled", "expirySpec", s.cfg.ExpirySpec, "reminderSpec", s.cfg.ReminderSpec)
	return nil
}

func (s *Sweeper) run(ctx context.Context, job string, fn func(context.Context) (int, error)) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	started := time.Now()
	n, err := fn(runCtx)
	if err != nil {
		s.log.Errorw("Sweeper job failed", "job", job, "processed", n, "error", err)
		return
	}
	s.log.Infow("Sweeper job finished", "job", job, "processed", n, "duration", time.Since(started).String())
}

// ExpireDue переводит в expired всех, у кого истёк срок.
// Записи, которые не удалось обработать, остаются до следующего запуска.
func (s *Sweeper) ExpireDue(ctx context.Context) (int, error) {
	total := 0
	for {
		batch, err := s.subscribers.ListExpired(ctx, s.now(), s.cfg.BatchSize)
		if err != nil {
			return total, err
		}

		done := 0
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			sub := &batch[i]
			res, err := s.service.Expire(ctx, sub)
			if err != nil {
				if !errors.Is(err, domain.ErrStaleTransition) {
					s.log.Warnw("Failed to expire subscriber", "subscriberID", sub.ID, "status", sub.Status, "error", err)
				}
				continue
			}
			done++
			if len(res.Warnings) > 0 {
				s.log.Warnw("Subscriber expired with warnings", "subscriberID", sub.ID, "warnings", res.Warnings)
			}
		}
		total += done

		// неполная страница или ни одного успеха: дальше те же записи
		if len(batch) < s.cfg.BatchSize || done == 0 {
			return total, nil
		}
	}
}

// SendReminders отправляет напоминания за 7 и 3 дня; каждое не более одного раза.
// Отправленное ставит флаг и выпадает из выборки, поэтому страницы идут до неполной.
func (s *Sweeper) SendReminders(ctx context.Context) (int, error) {
	total := 0
	for {
		now := s.now()
		batch, err := s.subscribers.ListRemindersDue(ctx, now, s.cfg.BatchSize)
		if err != nil {
			return total, err
		}

		done := 0
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			sub := &batch[i]
			days := sub.DueReminder(now)
			if days == 0 {
				continue
			}
			if _, err := s.service.SendReminder(ctx, sub, days); err != nil {
				if !errors.Is(err, domain.ErrStaleTransition) {
					s.log.Warnw("Failed to send reminder", "subscriberID", sub.ID, "days", days, "error", err)
				}
				continue
			}
			done++
		}
		total += done

		if len(batch) < s.cfg.BatchSize || done == 0 {
			return total, nil
		}
	}
}
