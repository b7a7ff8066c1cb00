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

// ProjectRepository чтение проектов через sqlx
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository создает репозиторий проектов
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)

// GetByID возвращает проект по ID
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, name, bot_token, channel_id, admin_chat_id, manual_enabled, manual_instructions,
		       card_enabled, currency, support_contact, created_at
		FROM projects
		WHERE id = $1`

	var project domain.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}
