package project

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecttracker/internal/apperrors"
	"projecttracker/internal/model"
)

// PostgresRepository stores each project as a JSONB document.
type PostgresRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresRepository(db *pgxpool.Pool, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// List decodes every document through DecodeProject. Documents that cannot
// be read are skipped with a warning so one bad row does not hide the rest.
func (r *PostgresRepository) List(ctx context.Context) ([]model.Project, error) {
	query := `
		SELECT id, doc, created_at
		FROM projects
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var (
			id        string
			doc       []byte
			createdAt time.Time
		)
		if err := rows.Scan(&id, &doc, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p, err := DecodeProject(doc)
		if err != nil {
			r.logger.Warn("Skipping unreadable project document",
				zap.String("project_id", id),
				zap.Error(err),
			)
			continue
		}
		p.ID = id
		if p.CreatedAt.IsZero() {
			p.CreatedAt = createdAt.UTC()
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p model.Project) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", p.ID, err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO projects (id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, p.ID, doc, createdAt); err != nil {
		r.logger.Error("Failed to upsert project",
			zap.String("project_id", p.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ProjectNotFound(id)
	}
	return nil
}
