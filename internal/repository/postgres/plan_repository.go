package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const planColumns = `id, project_id, name, description, price_minor, currency, duration_days, active`

// PlanRepository чтение тарифов через sqlx
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository создает репозиторий тарифов
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

var _ repository.PlanRepository = (*PlanRepository)(nil)

// GetByID возвращает тариф по ID
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.db.GetContext(ctx, &plan, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

// ListActiveByProject активные тарифы проекта, от дешёвых к дорогим
func (r *PlanRepository) ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Plan, error) {
	plans := []domain.Plan{}
	query := `SELECT ` + planColumns + ` FROM plans WHERE project_id = $1 AND active ORDER BY price_minor, name`
	if err := r.db.SelectContext(ctx, &plans, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}
