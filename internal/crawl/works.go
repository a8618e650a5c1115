package crawl

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/catalog"
	"github.com/okabe/favcrawl/internal/checkpoint"
	"github.com/okabe/favcrawl/internal/metrics"
)

// CrawlWorks walks every stored subject of the scope in listing order and
// upserts its full work listing. The checkpoint always points at the next
// subject index to process, so a blocked abort retries the subject it died
// on.
func (d *Driver) CrawlWorks(ctx context.Context) error {
	subjects, err := d.filteredSubjects(ctx)
	if err != nil {
		return err
	}

	start := d.resumeIndex(StageWorks, subjects)
	savedWorks, processed, skipped := 0, 0, 0

	for i := start; i < len(subjects); i++ {
		sub := subjects[i]

		if processed > 0 {
			if err := d.politeDelay(ctx); err != nil {
				return err
			}
		}

		works, err := d.crawlSubjectWorks(ctx, sub)
		if err != nil {
			if isBlocked(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			skipped++
			d.logger.Warn("subject listing failed, skipping",
				zap.String("subject", sub.Name), zap.Error(err))
			processed++
			d.saveCursor(StageWorks, checkpoint.Cursor{Subject: sub.Name, Index: i + 1})
			continue
		}

		works = d.cfg.Filters.FilterWorks(works)
		n, err := d.store.UpsertWorks(ctx, d.cfg.Scope,
			catalog.SubjectRecord{Name: sub.Name, Href: sub.Href}, works)
		if err != nil {
			return fmt.Errorf("save works for %s: %w", sub.Name, err)
		}
		savedWorks += n
		metrics.WorksSaved(n)
		processed++
		d.saveCursor(StageWorks, checkpoint.Cursor{Subject: sub.Name, Index: i + 1})

		d.logger.Info("subject works crawled",
			zap.String("subject", sub.Name),
			zap.Int("works", n),
			zap.Int("position", i+1),
			zap.Int("of", len(subjects)))
	}

	d.clearCursor(StageWorks)
	d.recordRun(StageWorks, map[string]int{
		"subjects": processed,
		"works":    savedWorks,
		"skipped":  skipped,
	})
	return nil
}

// crawlSubjectWorks paginates one subject's work listing and returns the
// deduplicated works across all pages.
func (d *Driver) crawlSubjectWorks(ctx context.Context, sub catalog.Subject) ([]catalog.Work, error) {
	pageURL := catalog.ListingURL(d.cfg.BaseURL, sub.Href, d.cfg.Tags, d.cfg.SortType)
	visited := make(map[string]struct{})
	seen := make(map[string]struct{})

	var works []catalog.Work
	pages := 0
	for pageURL != "" && pages < d.cfg.MaxPages {
		if _, dup := visited[pageURL]; dup {
			break
		}
		visited[pageURL] = struct{}{}

		if pages > 0 {
			if err := d.politeDelay(ctx); err != nil {
				return nil, err
			}
		}

		res, err := d.fetchPage(ctx, pageURL, catalog.WorkListSelector, StageWorks)
		if err != nil {
			return nil, err
		}
		pages++

		for _, work := range d.parseWorks(res.HTML) {
			work, ok := work.Normalize()
			if !ok {
				continue
			}
			if _, dup := seen[work.Code]; dup {
				continue
			}
			seen[work.Code] = struct{}{}
			works = append(works, work)
		}

		pageURL = d.nextPage(res.HTML)
	}
	return works, nil
}

// filteredSubjects lists the scope's subjects and applies the name filter.
// Code filters keep every subject and are applied per work instead.
func (d *Driver) filteredSubjects(ctx context.Context) ([]catalog.Subject, error) {
	subjects, err := d.store.ListSubjects(ctx, d.cfg.Scope)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	if len(d.cfg.Filters.Names) == 0 {
		return subjects, nil
	}
	kept := subjects[:0:0]
	for _, sub := range subjects {
		if d.cfg.Filters.MatchName(sub.Name) {
			kept = append(kept, sub)
		}
	}
	d.logger.Info("filters applied",
		zap.Int("matched", len(kept)), zap.Int("of", len(subjects)))
	return kept, nil
}

// resumeIndex maps a saved cursor back onto the current subject list. The
// cursor names the last completed subject and carries the next index; the
// index is trusted only when the name still sits just before it. Otherwise
// the list changed since the checkpoint and we fall back to a name search,
// then to a fresh start.
func (d *Driver) resumeIndex(stage string, subjects []catalog.Subject) int {
	cursor, ok := d.loadCursor(stage)
	if !ok || cursor.Subject == "" {
		return 0
	}
	if cursor.Index > 0 && cursor.Index <= len(subjects) && subjects[cursor.Index-1].Name == cursor.Subject {
		d.logger.Info("resuming from checkpoint",
			zap.String("stage", stage),
			zap.String("after", cursor.Subject),
			zap.Int("index", cursor.Index))
		return cursor.Index
	}
	for i, sub := range subjects {
		if sub.Name == cursor.Subject {
			d.logger.Info("resuming from checkpoint by name",
				zap.String("stage", stage),
				zap.String("after", cursor.Subject),
				zap.Int("index", i+1))
			return i + 1
		}
	}
	d.logger.Warn("checkpoint subject no longer listed, starting from scratch",
		zap.String("stage", stage), zap.String("subject", cursor.Subject))
	return 0
}
