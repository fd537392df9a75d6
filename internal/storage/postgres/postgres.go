package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/shopwise/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS comparisons (
	id TEXT PRIMARY KEY,
	caller TEXT NOT NULL,
	query TEXT NOT NULL,
	keywords TEXT[] NOT NULL,
	sources TEXT[] NOT NULL,
	raw_text TEXT NOT NULL,
	response JSONB NOT NULL,
	outcome TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS comparisons_caller_created ON comparisons (caller, created_at DESC);
`

// New connects to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.Record) error {
	query := `
	INSERT INTO comparisons (
		id, caller, query, keywords, sources, raw_text, response, outcome, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := b.pool.Exec(ctx, query,
		r.ID,
		r.Caller,
		r.Query,
		r.Keywords,
		r.Sources,
		r.RawText,
		[]byte(r.Response),
		r.Outcome,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, caller, query, keywords, sources, raw_text, response, outcome, created_at FROM comparisons WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Caller != "" {
		query += fmt.Sprintf(` AND caller = $%d`, paramCount)
		args = append(args, filter.Caller)
		paramCount++
	}
	if filter.Outcome != "" {
		query += fmt.Sprintf(` AND outcome = $%d`, paramCount)
		args = append(args, filter.Outcome)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var r storage.Record
		var response []byte

		err := rows.Scan(&r.ID, &r.Caller, &r.Query, &r.Keywords, &r.Sources, &r.RawText, &response, &r.Outcome, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		r.Response = json.RawMessage(response)
		r.CreatedAt = r.CreatedAt.UTC()

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
