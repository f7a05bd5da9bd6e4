package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/athlete-live/internal/model"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const createPendingTable = `
	CREATE TABLE IF NOT EXISTS pending_messages (
		seq            BIGSERIAL,
		id             UUID PRIMARY KEY,
		msg_type       TEXT NOT NULL,
		payload        JSONB NOT NULL,
		retry_count    INTEGER NOT NULL,
		retry_delay_ms BIGINT NOT NULL,
		enqueued_at    TIMESTAMPTZ NOT NULL
	)
`

// PostgresStore persists pending entries in the pending_messages table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store on top of a pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the pending_messages table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createPendingTable); err != nil {
		return fmt.Errorf("create pending_messages: %w", err)
	}
	return nil
}

// SaveAll inserts entries in one round trip. Existing IDs are left alone.
func (s *PostgresStore) SaveAll(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		payload, err := json.Marshal(map[string]any(e.Message))
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO pending_messages (id, msg_type, payload, retry_count, retry_delay_ms, enqueued_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, e.ID.String(), e.Message.Type(), payload, e.RetryCount, e.RetryDelay.Milliseconds(), e.EnqueuedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert pending message: %w", err)
		}
	}
	return nil
}

// DeleteAll removes entries in one statement.
func (s *PostgresStore) DeleteAll(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM pending_messages WHERE id = ANY($1::uuid[])`, keys); err != nil {
		return fmt.Errorf("delete pending messages: %w", err)
	}
	return nil
}

// Load returns all stored entries in insertion order.
func (s *PostgresStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, payload, retry_count, retry_delay_ms, enqueued_at
		FROM pending_messages
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending messages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			idText   string
			payload  []byte
			retries  int
			delayMs  int64
			enqueued time.Time
		)
		if err := rows.Scan(&idText, &payload, &retries, &delayMs, &enqueued); err != nil {
			return nil, fmt.Errorf("scan pending message: %w", err)
		}

		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, fmt.Errorf("parse pending message id: %w", err)
		}
		msg, err := model.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("pending message %s: %w", id, err)
		}

		entries = append(entries, Entry{
			ID:         id,
			Message:    msg,
			RetryCount: retries,
			RetryDelay: time.Duration(delayMs) * time.Millisecond,
			EnqueuedAt: enqueued,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pending messages: %w", err)
	}

	return entries, nil
}
