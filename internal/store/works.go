package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okabe/favcrawl/internal/catalog"
)

// ensureWork inserts a work if missing and returns its id. Existing rows are
// left untouched so a magnet-only pass cannot clobber titles captured by a
// richer listing crawl.
func ensureWork(ctx context.Context, q execer, subjectID int64, work catalog.Work) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO works (subject_id, code, title, href)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_id, code) DO UPDATE SET code = works.code
		RETURNING id`,
		subjectID, work.Code, work.Title, work.Href,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure work %s: %w", work.Code, err)
	}
	return id, nil
}

// UpsertWorks writes one subject's work listing in a single transaction,
// refreshing title and href on conflict, and returns how many rows were
// written.
func (s *Store) UpsertWorks(ctx context.Context, scope catalog.Scope, subject catalog.SubjectRecord, works []catalog.Work) (int, error) {
	subject, ok := subject.Normalize()
	if !ok {
		return 0, fmt.Errorf("upsert works: subject name is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	subjectID, err := upsertSubject(ctx, tx, scope, subject.Name, subject.Href)
	if err != nil {
		return 0, err
	}

	saved := 0
	for _, work := range works {
		work, ok := work.Normalize()
		if !ok {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO works (subject_id, code, title, href)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (subject_id, code) DO UPDATE SET
				title = EXCLUDED.title,
				href = EXCLUDED.href`,
			subjectID, work.Code, work.Title, work.Href)
		if err != nil {
			return 0, fmt.Errorf("upsert work %s: %w", work.Code, err)
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit works: %w", err)
	}
	return saved, nil
}

// WorksBySubject returns one subject's works ordered by code.
func (s *Store) WorksBySubject(ctx context.Context, scope catalog.Scope, name string) ([]catalog.Work, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.code, w.title, w.href
		FROM works w
		JOIN subjects s ON s.id = w.subject_id
		WHERE s.scope = $1 AND s.name = $2
		ORDER BY LOWER(w.code), w.code`,
		string(scope), name)
	if err != nil {
		return nil, fmt.Errorf("works by subject: %w", err)
	}
	defer rows.Close()
	return scanWorks(rows)
}

// AllWorks returns every work of a scope grouped by subject name. Subjects
// iterate in case-insensitive name order when traversed via the keys of the
// returned map sorted by the caller; works within a subject are code-ordered.
func (s *Store) AllWorks(ctx context.Context, scope catalog.Scope) (map[string][]catalog.Work, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.name, w.code, w.title, w.href
		FROM works w
		JOIN subjects s ON s.id = w.subject_id
		WHERE s.scope = $1
		ORDER BY LOWER(s.name), w.code`,
		string(scope))
	if err != nil {
		return nil, fmt.Errorf("all works: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]catalog.Work)
	for rows.Next() {
		var name string
		var work catalog.Work
		if err := rows.Scan(&name, &work.Code, &work.Title, &work.Href); err != nil {
			return nil, fmt.Errorf("scan work: %w", err)
		}
		grouped[name] = append(grouped[name], work)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate works: %w", err)
	}
	return grouped, nil
}

// UpdateWork edits a work's code and title in place. Renaming onto a code
// that already exists for the subject returns ErrCodeExists.
func (s *Store) UpdateWork(ctx context.Context, scope catalog.Scope, subject, code, newCode, newTitle string) error {
	if newCode == "" {
		return fmt.Errorf("update work: new code is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var subjectID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM subjects WHERE scope = $1 AND name = $2`,
		string(scope), subject,
	).Scan(&subjectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update work: unknown subject %q", subject)
	}
	if err != nil {
		return fmt.Errorf("update work: %w", err)
	}

	if newCode != code {
		var clash int64
		err = tx.QueryRow(ctx,
			`SELECT id FROM works WHERE subject_id = $1 AND code = $2`,
			subjectID, newCode,
		).Scan(&clash)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrCodeExists, newCode)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update work: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE works SET code = $1, title = $2 WHERE subject_id = $3 AND code = $4`,
		newCode, newTitle, subjectID, code)
	if err != nil {
		return fmt.Errorf("update work: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update work: unknown code %q", code)
	}
	return tx.Commit(ctx)
}

func scanWorks(rows pgx.Rows) ([]catalog.Work, error) {
	var works []catalog.Work
	for rows.Next() {
		var work catalog.Work
		if err := rows.Scan(&work.Code, &work.Title, &work.Href); err != nil {
			return nil, fmt.Errorf("scan work: %w", err)
		}
		works = append(works, work)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate works: %w", err)
	}
	return works, nil
}
