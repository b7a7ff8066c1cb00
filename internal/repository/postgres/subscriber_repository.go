package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriberColumns = `
	id, project_id, telegram_user_id, chat_id, username, status, plan_id, payment_method,
	payment_proof_url, checkout_url, start_date, expiry_date, invite_link, suspended_at,
	rejection_reason, suspension_reason, reminder_7d_sent, reminder_3d_sent, version,
	created_at, updated_at`

// uniqueViolation код ошибки PostgreSQL для нарушения уникальности
const uniqueViolation = "23505"

// SubscriberRepository реализация репозитория подписчиков через PostgreSQL
type SubscriberRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewSubscriberRepository создает новый репозиторий подписчиков
func NewSubscriberRepository(db *pgxpool.Pool, log *logger.Logger) *SubscriberRepository {
	return &SubscriberRepository{db: db, log: log}
}

var _ repository.SubscriberRepository = (*SubscriberRepository)(nil)

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var s domain.Subscriber
	var status, method string
	err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.TelegramUserID,
		&s.ChatID,
		&s.Username,
		&status,
		&s.PlanID,
		&method,
		&s.PaymentProofURL,
		&s.CheckoutURL,
		&s.StartDate,
		&s.ExpiryDate,
		&s.InviteLink,
		&s.SuspendedAt,
		&s.RejectionReason,
		&s.SuspensionReason,
		&s.Reminder7dSent,
		&s.Reminder3dSent,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	s.PaymentMethod = domain.PaymentMethod(method)
	return &s, nil
}

// Upsert создаёт подписчика при первом обращении
func (r *SubscriberRepository) Upsert(ctx context.Context, projectID uuid.UUID, telegramUserID, chatID int64, username string) (*domain.Subscriber, error) {
	query := `
		INSERT INTO subscribers (id, project_id, telegram_user_id, chat_id, username, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, telegram_user_id)
		DO UPDATE SET chat_id = EXCLUDED.chat_id, username = EXCLUDED.username
		RETURNING ` + subscriberColumns

	row := r.db.QueryRow(ctx, query, uuid.New(), projectID, telegramUserID, chatID, username, string(domain.StatusPendingPayment))
	sub, err := scanSubscriber(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to upsert subscriber: %w", err)
	}
	return sub, nil
}

// GetByID возвращает подписчика по ID
func (r *SubscriberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`

	sub, err := scanSubscriber(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

// GetByTelegramUser возвращает подписчика проекта по Telegram user id
func (r *SubscriberRepository) GetByTelegramUser(ctx context.Context, projectID uuid.UUID, telegramUserID int64) (*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE project_id = $1 AND telegram_user_id = $2`

	sub, err := scanSubscriber(r.db.QueryRow(ctx, query, projectID, telegramUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

// CompareAndSwap условное обновление: WHERE status = expected AND version = next.Version
func (r *SubscriberRepository) CompareAndSwap(ctx context.Context, next *domain.Subscriber, expected domain.Status) (*domain.Subscriber, error) {
	query := `
		UPDATE subscribers SET
			status = $3,
			plan_id = $4,
			payment_method = $5,
			payment_proof_url = $6,
			checkout_url = $7,
			start_date = $8,
			expiry_date = $9,
			invite_link = $10,
			suspended_at = $11,
			rejection_reason = $12,
			suspension_reason = $13,
			reminder_7d_sent = $14,
			reminder_3d_sent = $15,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = $2 AND version = $16
		RETURNING ` + subscriberColumns

	row := r.db.QueryRow(ctx, query,
		next.ID,
		string(expected),
		string(next.Status),
		next.PlanID,
		string(next.PaymentMethod),
		next.PaymentProofURL,
		next.CheckoutURL,
		next.StartDate,
		next.ExpiryDate,
		next.InviteLink,
		next.SuspendedAt,
		next.RejectionReason,
		next.SuspensionReason,
		next.Reminder7dSent,
		next.Reminder3dSent,
		next.Version,
	)

	stored, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Debugw("Conditional update matched no rows", "subscriberID", next.ID, "expected", expected, "version", next.Version)
			return nil, repository.ErrStale
		}
		return nil, fmt.Errorf("failed to update subscriber: %w", err)
	}
	return stored, nil
}

// ListExpired подписчики с прошедшим expiry_date; suspended ждут решения администратора
func (r *SubscriberRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE expiry_date IS NOT NULL AND expiry_date <= $1 AND status NOT IN ($2, $3)
		ORDER BY expiry_date
		LIMIT $4`
	return r.list(ctx, query, now, string(domain.StatusExpired), string(domain.StatusSuspended), limit)
}

// ListRemindersDue те же условия, что domain.Subscriber.DueReminder и HoldsAccess.
// Отправленное напоминание ставит флаг, и запись выпадает из выборки.
func (r *SubscriberRepository) ListRemindersDue(ctx context.Context, now time.Time, limit int) ([]domain.Subscriber, error) {
	near := now.Add(domain.Days(domain.ReminderWindows[1]))
	far := now.Add(domain.Days(domain.ReminderWindows[0]))
	query := `SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE expiry_date > $1
			AND (status = $4 OR (start_date IS NOT NULL AND status NOT IN ($5, $6)))
			AND ((expiry_date <= $2 AND NOT reminder_3d_sent)
				OR (expiry_date > $2 AND expiry_date <= $3 AND NOT reminder_7d_sent))
		ORDER BY expiry_date
		LIMIT $7`
	return r.list(ctx, query, now, near, far,
		string(domain.StatusActive), string(domain.StatusExpired), string(domain.StatusSuspended), limit)
}

func (r *SubscriberRepository) list(ctx context.Context, query string, args ...any) ([]domain.Subscriber, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}
	return subs, nil
}
