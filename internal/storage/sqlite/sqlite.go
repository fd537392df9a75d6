package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/shopwise/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// created_at is unix milliseconds so ordering and range filters are numeric.
const schema = `
CREATE TABLE IF NOT EXISTS comparisons (
	id TEXT PRIMARY KEY,
	caller TEXT NOT NULL,
	query TEXT NOT NULL,
	keywords TEXT NOT NULL,
	sources TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	response TEXT NOT NULL,
	outcome TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS comparisons_caller_created ON comparisons (caller, created_at);
`

// New opens (or creates) the SQLite database at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, r *storage.Record) error {
	keywords, err := json.Marshal(r.Keywords)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	query := `
	INSERT INTO comparisons (
		id, caller, query, keywords, sources, raw_text, response, outcome, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		r.ID,
		r.Caller,
		r.Query,
		string(keywords),
		string(sources),
		r.RawText,
		string(r.Response),
		r.Outcome,
		r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, caller, query, keywords, sources, raw_text, response, outcome, created_at FROM comparisons WHERE 1=1`
	args := []any{}

	if filter.Caller != "" {
		query += ` AND caller = ?`
		args = append(args, filter.Caller)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, filter.Outcome)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixMilli())
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires LIMIT before OFFSET.
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var (
			r                 storage.Record
			keywords, sources string
			response          string
			createdMs         int64
		)

		err := rows.Scan(&r.ID, &r.Caller, &r.Query, &keywords, &sources, &r.RawText, &response, &r.Outcome, &createdMs)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}

		if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
			return nil, fmt.Errorf("sqlite: keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return nil, fmt.Errorf("sqlite: sources: %w", err)
		}
		r.Response = json.RawMessage(response)
		r.CreatedAt = time.UnixMilli(createdMs).UTC()

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
