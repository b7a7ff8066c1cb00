package cache

import (
	"context"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
)

// CachedProjectRepository read-through кэш проектов.
// Ошибки Redis не фатальны: логируем и идём в БД.
type CachedProjectRepository struct {
	repo  repository.ProjectRepository
	cache *RedisCache
	log   *logger.Logger
}

// NewCachedProjectRepository создает репозиторий проектов с кешированием
func NewCachedProjectRepository(repo repository.ProjectRepository, cache *RedisCache, log *logger.Logger) *CachedProjectRepository {
	return &CachedProjectRepository{repo: repo, cache: cache, log: log}
}

// projectEntry проект вместе с токеном бота (в domain.Project токен скрыт из JSON)
type projectEntry struct {
	domain.Project
	BotToken string `json:"bot_token"`
}

// GetByID сначала из кеша, потом из БД
func (r *CachedProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	key := projectKeyPrefix + id.String()

	var entry projectEntry
	hit, err := r.cache.getJSON(ctx, key, &entry)
	if err != nil {
		r.log.Warnw("Error getting project from cache", "error", err, "projectID", id)
	}
	if hit {
		p := entry.Project
		p.BotToken = entry.BotToken
		return &p, nil
	}

	project, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.setJSON(ctx, key, projectEntry{Project: *project, BotToken: project.BotToken}); err != nil {
		r.log.Warnw("Failed to cache project", "error", err, "projectID", id)
	}
	return project, nil
}

// CachedPlanRepository read-through кэш тарифов
type CachedPlanRepository struct {
	repo  repository.PlanRepository
	cache *RedisCache
	log   *logger.Logger
}

// NewCachedPlanRepository создает репозиторий тарифов с кешированием
func NewCachedPlanRepository(repo repository.PlanRepository, cache *RedisCache, log *logger.Logger) *CachedPlanRepository {
	return &CachedPlanRepository{repo: repo, cache: cache, log: log}
}

// GetByID тариф по ID
func (r *CachedPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	key := planKeyPrefix + id.String()

	var plan domain.Plan
	hit, err := r.cache.getJSON(ctx, key, &plan)
	if err != nil {
		r.log.Warnw("Error getting plan from cache", "error", err, "planID", id)
	}
	if hit {
		return &plan, nil
	}

	p, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.setJSON(ctx, key, p); err != nil {
		r.log.Warnw("Failed to cache plan", "error", err, "planID", id)
	}
	return p, nil
}

// ListActiveByProject список тарифов проекта
func (r *CachedPlanRepository) ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Plan, error) {
	key := planListKeyPrefix + projectID.String()

	var plans []domain.Plan
	hit, err := r.cache.getJSON(ctx, key, &plans)
	if err != nil {
		r.log.Warnw("Error getting plans from cache", "error", err, "projectID", projectID)
	}
	if hit {
		return plans, nil
	}

	plans, err = r.repo.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.setJSON(ctx, key, plans); err != nil {
		r.log.Warnw("Failed to cache plans", "error", err, "projectID", projectID)
	}
	return plans, nil
}

var (
	_ repository.ProjectRepository = (*CachedProjectRepository)(nil)
	_ repository.PlanRepository    = (*CachedPlanRepository)(nil)
)
