package mailqueue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"projecttracker/internal/mail"
)

type PostgresQueue struct {
	db *pgxpool.Pool
}

func NewPostgresQueue(db *pgxpool.Pool) *PostgresQueue {
	return &PostgresQueue{db: db}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, msg mail.Message, dedupKey string) (bool, error) {
	query := `
		INSERT INTO email_queue (dedup_key, recipient, subject, text_body, html_body, status)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, 'queued')
		ON CONFLICT (dedup_key) DO NOTHING
	`
	tag, err := q.db.Exec(ctx, query,
		dedupKey,
		strings.Join(msg.To, ","),
		msg.Subject,
		msg.Text,
		msg.HTML,
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue email: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimQueued moves up to limit queued rows to processing. SKIP LOCKED lets
// several workers drain the queue without claiming the same row.
func (q *PostgresQueue) ClaimQueued(ctx context.Context, limit int) ([]Item, error) {
	query := `
		UPDATE email_queue
		SET status = 'processing', claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM email_queue
			WHERE status = 'queued'
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, dedup_key, recipient, subject, text_body, html_body, created_at, claimed_at
	`
	rows, err := q.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued emails: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it        Item
			dedupKey  *string
			recipient string
		)
		if err := rows.Scan(
			&it.ID,
			&dedupKey,
			&recipient,
			&it.Message.Subject,
			&it.Message.Text,
			&it.Message.HTML,
			&it.CreatedAt,
			&it.ClaimedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queued email: %w", err)
		}
		if dedupKey != nil {
			it.DedupKey = *dedupKey
		}
		it.Message.To = mail.Addresses(strings.Split(recipient, ","))
		it.Status = StatusProcessing
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *PostgresQueue) MarkSent(ctx context.Context, id int64, res mail.Result) error {
	query := `
		UPDATE email_queue
		SET status = 'sent', provider = $2, message_id = $3, sent_at = NOW()
		WHERE id = $1
	`
	if _, err := q.db.Exec(ctx, query, id, res.Provider, res.MessageID); err != nil {
		return fmt.Errorf("failed to mark email %d as sent: %w", id, err)
	}
	return nil
}

func (q *PostgresQueue) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE email_queue
		SET status = 'failed', last_error = $2
		WHERE id = $1
	`
	if _, err := q.db.Exec(ctx, query, id, reason); err != nil {
		return fmt.Errorf("failed to mark email %d as failed: %w", id, err)
	}
	return nil
}

// RequeueStale puts rows stuck in processing back in the queue. A row sits in
// processing past olderThan only when its worker died mid-batch, so the
// message may go out twice; that beats never sending it.
func (q *PostgresQueue) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		UPDATE email_queue
		SET status = 'queued', claimed_at = NULL
		WHERE status = 'processing'
		  AND claimed_at < NOW() - make_interval(secs => $1)
	`
	tag, err := q.db.Exec(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale emails: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
