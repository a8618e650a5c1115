// Package store persists crawl results in Postgres. All writes are upserts
// keyed by natural identity; magnet sets are replaced, never merged, so a
// re-crawl cannot leave stale rows behind.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okabe/favcrawl/internal/catalog"
)

// ErrCodeExists signals a work-code edit that would collide with another
// work of the same subject.
var ErrCodeExists = errors.New("work code already exists")

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store is the Postgres-backed storage layer.
type Store struct {
	db DB
}

// New connects a pool to the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool, primarily for testing.
func NewWithDB(db DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id BIGSERIAL PRIMARY KEY,
		scope TEXT NOT NULL,
		name TEXT NOT NULL,
		href TEXT NOT NULL DEFAULT '',
		UNIQUE (scope, name)
	)`,
	`CREATE TABLE IF NOT EXISTS works (
		id BIGSERIAL PRIMARY KEY,
		subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		href TEXT NOT NULL DEFAULT '',
		UNIQUE (subject_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS magnets (
		id BIGSERIAL PRIMARY KEY,
		work_id BIGINT NOT NULL REFERENCES works(id) ON DELETE CASCADE,
		uri TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '',
		size TEXT NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// upsertSubject inserts or refreshes one subject and returns its id. An
// empty href never overwrites a known one.
func upsertSubject(ctx context.Context, q execer, scope catalog.Scope, name, href string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO subjects (scope, name, href)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, name) DO UPDATE SET
			href = CASE WHEN EXCLUDED.href <> '' THEN EXCLUDED.href ELSE subjects.href END
		RETURNING id`,
		string(scope), name, href,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert subject %s/%s: %w", scope, name, err)
	}
	return id, nil
}

// UpsertSubjects writes discovered subjects, refreshing hrefs on
// re-discovery, and returns how many rows were written.
func (s *Store) UpsertSubjects(ctx context.Context, scope catalog.Scope, records []catalog.SubjectRecord) (int, error) {
	saved := 0
	for _, rec := range records {
		rec, ok := rec.Normalize()
		if !ok {
			continue
		}
		if _, err := upsertSubject(ctx, s.db, scope, rec.Name, rec.Href); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// ListSubjects returns every subject of a scope ordered case-insensitively
// by name, the deterministic order the resume logic depends on.
func (s *Store) ListSubjects(ctx context.Context, scope catalog.Scope) ([]catalog.Subject, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, href FROM subjects
		WHERE scope = $1
		ORDER BY LOWER(name)`,
		string(scope))
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []catalog.Subject
	for rows.Next() {
		sub := catalog.Subject{Scope: scope}
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Href); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// SubjectHref returns the stored href for one subject, or "" when unknown.
func (s *Store) SubjectHref(ctx context.Context, scope catalog.Scope, name string) (string, error) {
	var href string
	err := s.db.QueryRow(ctx,
		`SELECT href FROM subjects WHERE scope = $1 AND name = $2`,
		string(scope), name,
	).Scan(&href)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("subject href: %w", err)
	}
	return href, nil
}
