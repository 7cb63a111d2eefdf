package otdr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projecttracker/internal/model"
)

// PostgresStore keeps one JSONB document per stage in otdr_records.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Update runs fn on the locked record and writes it back in one transaction.
func (s *PostgresStore) Update(ctx context.Context, stageName model.StageID, fn func(*Record) error) (*Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin otdr transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.load(ctx, tx, stageName, true)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode otdr record: %w", err)
	}

	query := `
		INSERT INTO otdr_records (stage_name, record, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (stage_name) DO UPDATE
		SET record = EXCLUDED.record, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, string(stageName), doc); err != nil {
		s.logger.Error("Failed to save otdr record",
			zap.String("stage", string(stageName)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save otdr record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit otdr record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, stageName model.StageID) (*Record, error) {
	return s.load(ctx, s.db, stageName, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) load(ctx context.Context, q querier, stageName model.StageID, lock bool) (*Record, error) {
	query := `SELECT record FROM otdr_records WHERE stage_name = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var doc []byte
	err := q.QueryRow(ctx, query, string(stageName)).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewRecord(stageName), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load otdr record: %w", err)
	}

	rec := NewRecord(stageName)
	if err := json.Unmarshal(doc, rec); err != nil {
		return nil, fmt.Errorf("failed to decode otdr record %s: %w", stageName, err)
	}
	rec.StageName = stageName
	if rec.Entries == nil {
		rec.Entries = []Entry{}
	}
	rec.recompute()
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.Query(ctx, `SELECT stage_name, record FROM otdr_records ORDER BY stage_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list otdr records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			name string
			doc  []byte
		)
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan otdr record: %w", err)
		}
		rec := NewRecord(model.StageID(name))
		if err := json.Unmarshal(doc, rec); err != nil {
			s.logger.Warn("Skipping unreadable otdr record",
				zap.String("stage", name),
				zap.Error(err),
			)
			continue
		}
		rec.StageName = model.StageID(name)
		if rec.Entries == nil {
			rec.Entries = []Entry{}
		}
		rec.recompute()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ResetAll(ctx context.Context, stages []model.StageID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin otdr reset: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM otdr_records`); err != nil {
		return fmt.Errorf("failed to clear otdr records: %w", err)
	}
	for _, id := range stages {
		doc, err := json.Marshal(NewRecord(id))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO otdr_records (stage_name, record, updated_at) VALUES ($1, $2, NOW())`,
			string(id), doc,
		); err != nil {
			return fmt.Errorf("failed to reset otdr record %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit otdr reset: %w", err)
	}
	s.logger.Info("OTDR records reset", zap.Int("stages", len(stages)))
	return nil
}
