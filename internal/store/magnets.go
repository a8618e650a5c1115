package store

import (
	"context"
	"fmt"

	"github.com/okabe/favcrawl/internal/catalog"
)

// ReplaceMagnets swaps out the stored magnet set for one work inside a
// single transaction: delete everything, then insert the fresh capture. An
// empty slice therefore persists "this work currently has no magnets".
func (s *Store) ReplaceMagnets(ctx context.Context, scope catalog.Scope, subject catalog.SubjectRecord, work catalog.Work, magnets []catalog.Magnet) (int, error) {
	subject, ok := subject.Normalize()
	if !ok {
		return 0, fmt.Errorf("replace magnets: subject name is required")
	}
	work, ok = work.Normalize()
	if !ok {
		return 0, fmt.Errorf("replace magnets: work code and href are required")
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
	workID, err := ensureWork(ctx, tx, subjectID, work)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM magnets WHERE work_id = $1`, workID); err != nil {
		return 0, fmt.Errorf("clear magnets: %w", err)
	}

	saved := 0
	for _, magnet := range magnets {
		magnet, ok := magnet.Normalize()
		if !ok {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO magnets (work_id, uri, tags, size) VALUES ($1, $2, $3, $4)`,
			workID, magnet.URI, magnet.Tags, magnet.Size)
		if err != nil {
			return 0, fmt.Errorf("insert magnet: %w", err)
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit magnets: %w", err)
	}
	return saved, nil
}

// MagnetsGrouped returns every stored magnet of a scope keyed by subject
// name then work code.
func (s *Store) MagnetsGrouped(ctx context.Context, scope catalog.Scope) (map[string]map[string][]catalog.Magnet, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.name, w.code, m.uri, m.tags, m.size
		FROM magnets m
		JOIN works w ON w.id = m.work_id
		JOIN subjects s ON s.id = w.subject_id
		WHERE s.scope = $1
		ORDER BY LOWER(s.name), w.code, m.id`,
		string(scope))
	if err != nil {
		return nil, fmt.Errorf("magnets grouped: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string]map[string][]catalog.Magnet)
	for rows.Next() {
		var subject, code string
		var magnet catalog.Magnet
		if err := rows.Scan(&subject, &code, &magnet.URI, &magnet.Tags, &magnet.Size); err != nil {
			return nil, fmt.Errorf("scan magnet: %w", err)
		}
		byWork := grouped[subject]
		if byWork == nil {
			byWork = make(map[string][]catalog.Magnet)
			grouped[subject] = byWork
		}
		byWork[code] = append(byWork[code], magnet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate magnets: %w", err)
	}
	return grouped, nil
}
