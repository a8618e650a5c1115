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

// CrawlMagnets visits every stored work's detail page and replaces its
// magnet set. The checkpoint cursor names the subject being processed and
// the next work index within it; a failed work fetch is skipped but a
// blocked page aborts the stage with the cursor pointing at the work that
// triggered it.
func (d *Driver) CrawlMagnets(ctx context.Context) error {
	subjects, err := d.filteredSubjects(ctx)
	if err != nil {
		return err
	}

	startSub, startWork := d.resumeMagnets(subjects)
	replaced, worksDone, skipped, first := 0, 0, 0, true

	for si := startSub; si < len(subjects); si++ {
		sub := subjects[si]
		record := catalog.SubjectRecord{Name: sub.Name, Href: sub.Href}

		works, err := d.store.WorksBySubject(ctx, d.cfg.Scope, sub.Name)
		if err != nil {
			return fmt.Errorf("works for %s: %w", sub.Name, err)
		}
		works = d.cfg.Filters.FilterWorks(works)

		wi := 0
		if si == startSub {
			wi = startWork
			if wi > len(works) {
				wi = len(works)
			}
		}

		for ; wi < len(works); wi++ {
			work := works[wi]

			if !first {
				if err := d.politeDelay(ctx); err != nil {
					return err
				}
			}
			first = false

			workURL := catalog.ResolveHref(d.cfg.BaseURL, work.Href)
			res, err := d.fetchPage(ctx, workURL, catalog.MagnetSelector, StageMagnets)
			if err != nil {
				if isBlocked(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				skipped++
				d.logger.Warn("work page failed, skipping",
					zap.String("subject", sub.Name),
					zap.String("code", work.Code),
					zap.Error(err))
				d.saveCursor(StageMagnets, checkpoint.Cursor{Subject: sub.Name, Index: wi + 1})
				continue
			}

			magnets := d.parseMagnets(res.HTML)
			n, err := d.store.ReplaceMagnets(ctx, d.cfg.Scope, record, work, magnets)
			if err != nil {
				return fmt.Errorf("save magnets for %s: %w", work.Code, err)
			}
			replaced += n
			worksDone++
			metrics.MagnetsReplaced(n)
			d.saveCursor(StageMagnets, checkpoint.Cursor{Subject: sub.Name, Index: wi + 1})

			d.logger.Info("magnets replaced",
				zap.String("subject", sub.Name),
				zap.String("code", work.Code),
				zap.Int("magnets", n))
		}
	}

	d.clearCursor(StageMagnets)
	d.recordRun(StageMagnets, map[string]int{
		"works":   worksDone,
		"magnets": replaced,
		"skipped": skipped,
	})
	return nil
}

// resumeMagnets maps a saved magnet cursor onto the subject list. The cursor
// index is a work offset within the named subject; an unknown subject name
// restarts the stage.
func (d *Driver) resumeMagnets(subjects []catalog.Subject) (int, int) {
	cursor, ok := d.loadCursor(StageMagnets)
	if !ok || cursor.Subject == "" {
		return 0, 0
	}
	for i, sub := range subjects {
		if sub.Name == cursor.Subject {
			d.logger.Info("resuming from checkpoint",
				zap.String("stage", StageMagnets),
				zap.String("subject", cursor.Subject),
				zap.Int("work_index", cursor.Index))
			return i, cursor.Index
		}
	}
	d.logger.Warn("checkpoint subject no longer listed, starting from scratch",
		zap.String("stage", StageMagnets), zap.String("subject", cursor.Subject))
	return 0, 0
}
