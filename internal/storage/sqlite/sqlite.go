package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FranksOps/patentscout/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	total INTEGER NOT NULL,
	summary TEXT NOT NULL,
	results TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, report *storage.Report) error {
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
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		report.ID,
		report.Summary.Query,
		report.Summary.Total,
		string(summaryJSON),
		string(resultsJSON),
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", report.ID, err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Report, error) {
	query := `SELECT id, summary, results, created_at FROM reports WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
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

func (b *sqliteBackend) Get(ctx context.Context, id string) (*storage.Report, error) {
	row := b.db.QueryRowContext(ctx, `SELECT id, summary, results, created_at FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, storage.ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*storage.Report, error) {
	var r storage.Report
	var summaryJSON, resultsJSON string

	if err := s.Scan(&r.ID, &summaryJSON, &resultsJSON, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &r.Results); err != nil {
		return nil, fmt.Errorf("decoding results of %s: %w", r.ID, err)
	}
	return &r, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
