package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conduit/internal/domain"
)

// schema — таблица документов. Одна строка на (collection, flow, stage, interaction).
const schema = `
	CREATE TABLE IF NOT EXISTS state_documents (
		collection     TEXT        NOT NULL,
		flow_id        TEXT        NOT NULL,
		stage_id       TEXT        NOT NULL,
		interaction_id TEXT        NOT NULL,
		doc            JSONB       NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, flow_id, stage_id, interaction_id)
	)
`

// PGStore — хранилище документов в Postgres (JSONB).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore создаёт PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema создаёт таблицу документов, если её нет.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert создаёт или заменяет документ.
func (s *PGStore) Upsert(ctx context.Context, collection string, key domain.StateKey, doc []byte) error {
	query := `
		INSERT INTO state_documents (collection, flow_id, stage_id, interaction_id, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (collection, flow_id, stage_id, interaction_id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query,
		collection,
		key.FlowID,
		key.StageID,
		key.InteractionID,
		doc,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Get возвращает документ по ключу.
func (s *PGStore) Get(ctx context.Context, collection string, key domain.StateKey) ([]byte, error) {
	query := `
		SELECT doc
		FROM state_documents
		WHERE collection = $1 AND flow_id = $2 AND stage_id = $3 AND interaction_id = $4
	`
	var doc []byte
	err := s.pool.QueryRow(ctx, query, collection, key.FlowID, key.StageID, key.InteractionID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", collection, err)
	}
	return doc, nil
}

// Count возвращает число документов в коллекции.
func (s *PGStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM state_documents WHERE collection = $1`, collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Close закрывает пул.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
