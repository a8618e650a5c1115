package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/catalog"
	"github.com/okabe/favcrawl/internal/fetch"
	"github.com/okabe/favcrawl/internal/metrics"
	"github.com/okabe/favcrawl/internal/parse"
)

// fetchPage retrieves one page and escalates a blocked result into a
// stage-fatal error.
func (d *Driver) fetchPage(ctx context.Context, url, selector, stage string) (fetch.Result, error) {
	res, err := d.fetcher.Fetch(ctx, url, fetch.Options{
		ExpectedSelector: selector,
		Stage:            stage,
	})
	if err != nil {
		return res, err
	}
	metrics.PageFetched(string(d.cfg.Mode), stage)
	if res.Blocked {
		metrics.PageBlocked(res.BlockedReason)
		return res, fetch.Escalate(res)
	}
	return res, nil
}

// CrawlSubjects walks the saved-collection listing for the configured scope,
// following pagination until the last page or an interstitial, and upserts
// every discovered subject.
func (d *Driver) CrawlSubjects(ctx context.Context) error {
	pageURL := catalog.ListingURL(d.cfg.BaseURL, d.cfg.Scope.ListingPath(), d.cfg.Tags, d.cfg.SortType)
	selector := d.cfg.Scope.ReadySelector()

	seen := make(map[string]struct{})
	visited := make(map[string]struct{})
	pages, saved := 0, 0

	for pageURL != "" && pages < d.cfg.MaxPages {
		if _, dup := visited[pageURL]; dup {
			d.logger.Warn("pagination loop detected, stopping",
				zap.String("url", pageURL))
			break
		}
		visited[pageURL] = struct{}{}

		if pages > 0 {
			if err := d.politeDelay(ctx); err != nil {
				return err
			}
		}

		res, err := d.fetchPage(ctx, pageURL, selector, StageSubjects)
		if err != nil {
			return err
		}
		pages++

		records := d.parseSubjects(res.HTML)
		if len(records) == 0 && parse.Interstitial(res.HTML) {
			d.logger.Warn("interstitial page with no subjects, stopping pagination",
				zap.String("url", pageURL))
			break
		}

		fresh := records[:0:0]
		for _, rec := range records {
			rec, ok := rec.Normalize()
			if !ok {
				continue
			}
			if _, dup := seen[rec.Href]; dup {
				continue
			}
			seen[rec.Href] = struct{}{}
			fresh = append(fresh, rec)
		}

		n, err := d.store.UpsertSubjects(ctx, d.cfg.Scope, fresh)
		if err != nil {
			return fmt.Errorf("save subjects: %w", err)
		}
		saved += n
		metrics.SubjectsSaved(n)

		d.logger.Info("subjects page crawled",
			zap.String("scope", string(d.cfg.Scope)),
			zap.String("url", pageURL),
			zap.Int("found", len(fresh)),
			zap.Int("total_saved", saved))

		pageURL = d.nextPage(res.HTML)
	}

	d.recordRun(StageSubjects, map[string]int{"pages": pages, "subjects": saved})
	return nil
}
