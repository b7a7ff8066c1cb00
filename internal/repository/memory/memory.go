// Package memory хранилище в памяти: для тестов и локального запуска без PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/google/uuid"
)

type userKey struct {
	projectID      uuid.UUID
	telegramUserID int64
}

// Store реализует SubscriberRepository; проекты и тарифы доступны через Projects() и Plans()
type Store struct {
	mutex       sync.RWMutex
	projects    map[uuid.UUID]domain.Project
	plans       map[uuid.UUID]domain.Plan
	subscribers map[uuid.UUID]*domain.Subscriber
	byUser      map[userKey]uuid.UUID
	writes      int
	now         func() time.Time
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		projects:    make(map[uuid.UUID]domain.Project),
		plans:       make(map[uuid.UUID]domain.Plan),
		subscribers: make(map[uuid.UUID]*domain.Subscriber),
		byUser:      make(map[userKey]uuid.UUID),
		now:         time.Now,
	}
}

var _ repository.SubscriberRepository = (*Store)(nil)

// Projects и Plans возвращают представления Store под отдельными интерфейсами,
// так как GetByID у них совпадает по имени.

// Projects представление для ProjectRepository
func (s *Store) Projects() repository.ProjectRepository { return projectView{s} }

// Plans представление для PlanRepository
func (s *Store) Plans() repository.PlanRepository { return planView{s} }

// PutProject добавляет или заменяет проект
func (s *Store) PutProject(p domain.Project) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.projects[p.ID] = p
}

// PutPlan добавляет или заменяет тариф
func (s *Store) PutPlan(p domain.Plan) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.plans[p.ID] = p
}

// PutSubscriber кладёт подписчика как есть (для подготовки тестов)
func (s *Store) PutSubscriber(sub *domain.Subscriber) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c := sub.Clone()
	if c.Version == 0 {
		c.Version = 1
	}
	s.subscribers[c.ID] = c
	s.byUser[userKey{c.ProjectID, c.TelegramUserID}] = c.ID
}

// Writes количество успешных изменений подписчиков (upsert-вставки и CAS)
func (s *Store) Writes() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.writes
}

// GetByID для SubscriberRepository
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sub.Clone(), nil
}

// Upsert создаёт подписчика в pending_payment или обновляет контактные поля
func (s *Store) Upsert(_ context.Context, projectID uuid.UUID, telegramUserID, chatID int64, username string) (*domain.Subscriber, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := userKey{projectID, telegramUserID}
	if id, ok := s.byUser[key]; ok {
		sub := s.subscribers[id]
		sub.ChatID = chatID
		sub.Username = username
		return sub.Clone(), nil
	}

	now := s.now()
	sub := &domain.Subscriber{
		ID:             uuid.New(),
		ProjectID:      projectID,
		TelegramUserID: telegramUserID,
		ChatID:         chatID,
		Username:       username,
		Status:         domain.StatusPendingPayment,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.subscribers[sub.ID] = sub
	s.byUser[key] = sub.ID
	s.writes++
	return sub.Clone(), nil
}

// GetByTelegramUser ищет подписчика по паре (project, user)
func (s *Store) GetByTelegramUser(_ context.Context, projectID uuid.UUID, telegramUserID int64) (*domain.Subscriber, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	id, ok := s.byUser[userKey{projectID, telegramUserID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.subscribers[id].Clone(), nil
}

// CompareAndSwap записывает next при совпадении статуса и версии
func (s *Store) CompareAndSwap(_ context.Context, next *domain.Subscriber, expected domain.Status) (*domain.Subscriber, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cur, ok := s.subscribers[next.ID]
	if !ok || cur.Status != expected || cur.Version != next.Version {
		return nil, repository.ErrStale
	}

	stored := next.Clone()
	stored.ProjectID = cur.ProjectID
	stored.TelegramUserID = cur.TelegramUserID
	stored.ChatID = cur.ChatID
	stored.Username = cur.Username
	stored.CreatedAt = cur.CreatedAt
	stored.Version = cur.Version + 1
	stored.UpdatedAt = s.now()
	s.subscribers[stored.ID] = stored
	s.writes++
	return stored.Clone(), nil
}

// ListExpired подписчики с прошедшим сроком, кроме expired и suspended
func (s *Store) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Subscriber, error) {
	return s.filter(limit, func(sub *domain.Subscriber) bool {
		return sub.ExpiryDate != nil && !sub.ExpiryDate.After(now) &&
			sub.Status != domain.StatusExpired && sub.Status != domain.StatusSuspended
	}), nil
}

// ListRemindersDue подписчики с доступом, у которых есть неотправленное напоминание
func (s *Store) ListRemindersDue(_ context.Context, now time.Time, limit int) ([]domain.Subscriber, error) {
	return s.filter(limit, func(sub *domain.Subscriber) bool {
		return sub.HoldsAccess(now) && sub.DueReminder(now) != 0
	}), nil
}

func (s *Store) filter(limit int, keep func(*domain.Subscriber) bool) []domain.Subscriber {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []domain.Subscriber
	for _, sub := range s.subscribers {
		if keep(sub) {
			out = append(out, *sub.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(*out[j].ExpiryDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type projectView struct{ s *Store }

func (v projectView) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	v.s.mutex.RLock()
	defer v.s.mutex.RUnlock()
	p, ok := v.s.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type planView struct{ s *Store }

func (v planView) GetByID(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	v.s.mutex.RLock()
	defer v.s.mutex.RUnlock()
	p, ok := v.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (v planView) ListActiveByProject(_ context.Context, projectID uuid.UUID) ([]domain.Plan, error) {
	v.s.mutex.RLock()
	defer v.s.mutex.RUnlock()
	out := []domain.Plan{}
	for _, p := range v.s.plans {
		if p.ProjectID == projectID && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceMinor != out[j].PriceMinor {
			return out[i].PriceMinor < out[j].PriceMinor
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
