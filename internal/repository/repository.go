package repository

import (
	"context"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/google/uuid"
)

// ProjectRepository чтение настроек тенантов
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
}

// PlanRepository чтение тарифов
type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Plan, error)
}

// SubscriberRepository хранилище машины состояний подписчика.
// Все изменения состояния идут через CompareAndSwap.
type SubscriberRepository interface {
	// Upsert создаёт запись в pending_payment, либо обновляет chat_id/username существующей.
	Upsert(ctx context.Context, projectID uuid.UUID, telegramUserID, chatID int64, username string) (*domain.Subscriber, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error)
	GetByTelegramUser(ctx context.Context, projectID uuid.UUID, telegramUserID int64) (*domain.Subscriber, error)
	// CompareAndSwap записывает next, только если в БД status == expected и version == next.Version.
	// Возвращает ErrStale, если условие не выполнено.
	CompareAndSwap(ctx context.Context, next *domain.Subscriber, expected domain.Status) (*domain.Subscriber, error)
	// ListExpired подписчики с истёкшим сроком, которые ещё не expired/suspended
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Subscriber, error)
	// ListRemindersDue подписчики с доступом (active или продление при живом гранте),
	// у которых наступило окно напоминания и оно ещё не отправлено (domain.Subscriber.DueReminder)
	ListRemindersDue(ctx context.Context, now time.Time, limit int) ([]domain.Subscriber, error)
}

// Deduplicator одноразовые "заявки" на ключ (update_id Telegram, id события Stripe)
type Deduplicator interface {
	// Claim возвращает true, если ключ захвачен впервые
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release освобождает ключ, чтобы повторная доставка была обработана
	Release(ctx context.Context, key string) error
}
