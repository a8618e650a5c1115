// Package crawl drives the three-stage catalog crawl: subject discovery,
// per-subject work listings, then per-work magnet capture. Stages are
// resumable through the checkpoint store and abort hard on a blocked page;
// everything else is logged and skipped.
package crawl

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/catalog"
	"github.com/okabe/favcrawl/internal/checkpoint"
	"github.com/okabe/favcrawl/internal/fetch"
	"github.com/okabe/favcrawl/internal/history"
	"github.com/okabe/favcrawl/internal/parse"
)

// Stage names used for checkpoints, history events, and debug artifacts.
const (
	StageSubjects = "subjects"
	StageWorks    = "works"
	StageMagnets  = "magnets"
)

// Store is what the driver needs from the storage layer.
type Store interface {
	UpsertSubjects(ctx context.Context, scope catalog.Scope, records []catalog.SubjectRecord) (int, error)
	ListSubjects(ctx context.Context, scope catalog.Scope) ([]catalog.Subject, error)
	UpsertWorks(ctx context.Context, scope catalog.Scope, subject catalog.SubjectRecord, works []catalog.Work) (int, error)
	WorksBySubject(ctx context.Context, scope catalog.Scope, name string) ([]catalog.Work, error)
	ReplaceMagnets(ctx context.Context, scope catalog.Scope, subject catalog.SubjectRecord, work catalog.Work, magnets []catalog.Magnet) (int, error)
}

// Config is the per-run crawl configuration.
type Config struct {
	BaseURL  string
	Scope    catalog.Scope
	Mode     fetch.Mode
	Filters  Filters
	Tags     []string
	SortType string
	// DelayMin/DelayMax bound the uniform polite delay between page fetches.
	DelayMin time.Duration
	DelayMax time.Duration
	// MaxPages caps pagination per listing as a runaway guard; 0 means the
	// default.
	MaxPages int
}

// WithDefaults fills unset fields with the run defaults.
func (c Config) WithDefaults() Config {
	c.Scope = catalog.NormalizeScope(string(c.Scope))
	c.Mode = fetch.NormalizeMode(string(c.Mode))
	if c.DelayMin <= 0 {
		c.DelayMin = 800 * time.Millisecond
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = c.DelayMin + 800*time.Millisecond
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 200
	}
	return c
}

// Driver runs crawl stages against one fetcher and one store.
type Driver struct {
	cfg         Config
	fetcher     fetch.PageFetcher
	store       Store
	checkpoints *checkpoint.Store
	history     *history.Log
	logger      *zap.Logger
	runID       string

	// Parser hooks, replaceable in tests.
	parseSubjects func(html string) []catalog.SubjectRecord
	parseWorks    func(html string) []catalog.Work
	parseMagnets  func(html string) []catalog.Magnet
	nextPage      func(html string) string

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a driver. Checkpoints and history may be nil, which disables
// resume tracking and run logging respectively.
func New(cfg Config, fetcher fetch.PageFetcher, store Store, checkpoints *checkpoint.Store, hist *history.Log, logger *zap.Logger) (*Driver, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	d := &Driver{
		cfg:         cfg,
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		history:     hist,
		logger:      logger,
		runID:       uuid.NewString(),
		sleep:       sleepCtx,
	}
	d.parseSubjects = parse.SubjectParser(cfg.Scope, cfg.BaseURL)
	d.parseWorks = parse.WorkParser(cfg.BaseURL)
	d.parseMagnets = parse.Magnets
	d.nextPage = func(html string) string {
		return parse.NextPageURL(cfg.BaseURL, html)
	}
	return d, nil
}

// RunID identifies this driver's run in history records.
func (d *Driver) RunID() string { return d.runID }

// Run executes the named stages in order, stopping at the first failure.
func (d *Driver) Run(ctx context.Context, stages []string) error {
	for _, stage := range stages {
		var err error
		switch stage {
		case StageSubjects:
			err = d.CrawlSubjects(ctx)
		case StageWorks:
			err = d.CrawlWorks(ctx)
		case StageMagnets:
			err = d.CrawlMagnets(ctx)
		default:
			err = fmt.Errorf("unknown stage %q", stage)
		}
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage, err)
		}
	}
	return nil
}

// checkpointsEnabled reports whether this run reads and writes checkpoints.
// Filtered runs never touch them.
func (d *Driver) checkpointsEnabled() bool {
	return d.checkpoints != nil && !d.cfg.Filters.Active()
}

func (d *Driver) checkpointStage(stage string) string {
	return fmt.Sprintf("%s:%s", stage, d.cfg.Scope)
}

func (d *Driver) loadCursor(stage string) (checkpoint.Cursor, bool) {
	if !d.checkpointsEnabled() {
		return checkpoint.Cursor{}, false
	}
	cursor, ok, err := d.checkpoints.Load(d.checkpointStage(stage))
	if err != nil {
		d.logger.Warn("checkpoint load failed, starting from scratch",
			zap.String("stage", stage), zap.Error(err))
		return checkpoint.Cursor{}, false
	}
	return cursor, ok
}

func (d *Driver) saveCursor(stage string, cursor checkpoint.Cursor) {
	if !d.checkpointsEnabled() {
		return
	}
	if err := d.checkpoints.Save(d.checkpointStage(stage), cursor); err != nil {
		d.logger.Warn("checkpoint save failed",
			zap.String("stage", stage), zap.Error(err))
	}
}

func (d *Driver) clearCursor(stage string) {
	if !d.checkpointsEnabled() {
		return
	}
	if err := d.checkpoints.Clear(d.checkpointStage(stage)); err != nil {
		d.logger.Warn("checkpoint clear failed",
			zap.String("stage", stage), zap.Error(err))
	}
}

func (d *Driver) recordRun(event string, counts map[string]int) {
	if d.history == nil {
		return
	}
	if err := d.history.Append(history.Record{
		RunID:  d.runID,
		Event:  event,
		Counts: counts,
	}); err != nil {
		d.logger.Warn("history append failed", zap.Error(err))
	}
}

// politeDelay sleeps a uniform random duration between DelayMin and DelayMax,
// returning early with the context error on cancellation.
func (d *Driver) politeDelay(ctx context.Context) error {
	span := d.cfg.DelayMax - d.cfg.DelayMin
	delay := d.cfg.DelayMin
	if span > 0 {
		if n, err := crand.Int(crand.Reader, big.NewInt(int64(span))); err == nil {
			delay += time.Duration(n.Int64())
		} else {
			delay += span / 2
		}
	}
	return d.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isBlocked reports whether err is the block escalation, which aborts the
// stage instead of being skipped like ordinary per-item failures.
func isBlocked(err error) bool {
	var blocked *fetch.BlockedError
	return errors.As(err, &blocked)
}
