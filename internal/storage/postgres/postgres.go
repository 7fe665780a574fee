package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	total INTEGER NOT NULL,
	summary JSONB NOT NULL,
	results JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, report *storage.Report) error {
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	query := `
	INSERT INTO reports (id, query, total, summary, results, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = b.pool.Exec(ctx, query,
		report.ID,
		report.Summary.Query,
		report.Summary.Total,
		summaryJSON,
		resultsJSON,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", report.ID, err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Report, error) {
	query := `SELECT id, summary, results, created_at FROM reports WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND query = $%d`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

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
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []*storage.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}

	return reports, nil
}

func (b *postgresBackend) Get(ctx context.Context, id string) (*storage.Report, error) {
	row := b.pool.QueryRow(ctx, `SELECT id, summary, results, created_at FROM reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, storage.ErrNotFound)
	}
	return r, err
}

func scanReport(row pgx.Row) (*storage.Report, error) {
	var r storage.Report
	var summaryJSON, resultsJSON []byte

	if err := row.Scan(&r.ID, &summaryJSON, &resultsJSON, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &r.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(resultsJSON, &r.Results); err != nil {
		return nil, fmt.Errorf("decoding results of %s: %w", r.ID, err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
