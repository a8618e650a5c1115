package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/catalog"
	"github.com/okabe/favcrawl/internal/checkpoint"
	"github.com/okabe/favcrawl/internal/config"
	"github.com/okabe/favcrawl/internal/crawl"
	"github.com/okabe/favcrawl/internal/fetch"
	"github.com/okabe/favcrawl/internal/history"
	"github.com/okabe/favcrawl/internal/session"
	"github.com/okabe/favcrawl/internal/store"
)

type crawlFlags struct {
	stage        string
	scope        string
	mode         string
	names        []string
	codeContains []string
	codePrefixes []string
	tags         []string
	sortType     string
	headless     bool
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one or more crawl stages",
		Long: `Runs the selected crawl stage against the configured site. "all"
runs subject discovery, work listings, and magnet capture in order. Unfiltered
runs resume from the last checkpoint; any name or code filter makes the run
ad-hoc and leaves checkpoints untouched.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.stage, "stage", "all", "stage to run: subjects, works, magnets, or all")
	cmd.Flags().StringVar(&flags.scope, "scope", "", "collection scope: actor, series, maker, director, or code")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "transport: browser or http")
	cmd.Flags().StringSliceVar(&flags.names, "name", nil, "only crawl subjects with these exact names")
	cmd.Flags().StringSliceVar(&flags.codeContains, "code-contains", nil, "only crawl works whose code contains one of these fragments")
	cmd.Flags().StringSliceVar(&flags.codePrefixes, "code-prefix", nil, "only crawl works whose code starts with one of these prefixes")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "listing tag filters merged into the query string")
	cmd.Flags().StringVar(&flags.sortType, "sort", "", "listing sort_type query value")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "run the browser headless (challenges cannot be cleared by hand)")

	return cmd
}

func runCrawlCommand(ctx context.Context, flags *crawlFlags) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	cfg, logger := rt.Config, rt.Logger

	stages, err := resolveStages(flags.stage)
	if err != nil {
		return err
	}

	scope := cfg.Crawl.Scope
	if flags.scope != "" {
		scope = flags.scope
	}
	mode := cfg.Fetch.Mode
	if flags.mode != "" {
		mode = flags.mode
	}

	baseURL, err := cfg.BaseURL()
	if err != nil {
		return err
	}

	fetcher, cleanup, err := buildFetcher(cfg, fetch.NormalizeMode(mode), baseURL, flags.headless, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.New(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	driver, err := crawl.New(crawl.Config{
		BaseURL: baseURL,
		Scope:   catalog.NormalizeScope(scope),
		Mode:    fetch.NormalizeMode(mode),
		Filters: crawl.Filters{
			Names:        mergeLists(flags.names, cfg.Crawl.Names),
			CodeContains: mergeLists(flags.codeContains, cfg.Crawl.CodeContains),
			CodePrefixes: mergeLists(flags.codePrefixes, cfg.Crawl.CodePrefixes),
		},
		Tags:     mergeLists(flags.tags, cfg.Crawl.Tags),
		SortType: firstNonEmpty(flags.sortType, cfg.Crawl.SortType),
		DelayMin: time.Duration(cfg.Crawl.DelayMinMs) * time.Millisecond,
		DelayMax: time.Duration(cfg.Crawl.DelayMaxMs) * time.Millisecond,
		MaxPages: cfg.Crawl.MaxPages,
	}, fetcher, st,
		checkpoint.NewStore(cfg.Paths.CheckpointFile),
		history.NewLog(cfg.Paths.HistoryFile),
		logger)
	if err != nil {
		return err
	}

	logger.Info("crawl starting",
		zap.String("run_id", driver.RunID()),
		zap.Strings("stages", stages),
		zap.String("scope", scope),
		zap.String("mode", mode))

	if err := driver.Run(ctx, stages); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("crawl interrupted, checkpoints preserved")
			return err
		}
		return fmt.Errorf("crawl: %w", err)
	}

	logger.Info("crawl finished", zap.String("run_id", driver.RunID()))
	return nil
}

// buildFetcher assembles the transport for the run. HTTP mode requires a
// usable cookie snapshot; browser mode tolerates a missing one because the
// persistent profile may already hold an authenticated session.
func buildFetcher(cfg config.Config, mode fetch.Mode, baseURL string, headless bool, logger *zap.Logger) (fetch.PageFetcher, func(), error) {
	fcfg := fetch.Config{
		Mode:             mode,
		UserAgent:        cfg.Fetch.UserAgent,
		PageTimeout:      cfg.Fetch.PageTimeout(),
		ChallengeTimeout: cfg.Fetch.ChallengeTimeout(),
		ProfileDir:       cfg.Paths.ProfileDir,
		Channel:          cfg.Fetch.Channel,
		Headless:         cfg.Fetch.Headless || headless,
		DebugDir:         cfg.Paths.DebugDir,
	}

	snap, err := session.Load(cfg.Session.CookiePath, logger)
	if err != nil {
		if mode == fetch.ModeBrowser && errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cookie snapshot missing, relying on the browser profile",
				zap.String("path", cfg.Session.CookiePath))
			snap = session.Snapshot{}
		} else {
			return nil, nil, err
		}
	}

	if mode == fetch.ModeHTTP {
		f, err := fetch.NewHTTPFetcher(fcfg, baseURL, snap, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init http fetcher: %w", err)
		}
		return f, func() {}, nil
	}

	f, err := fetch.NewBrowserFetcher(fcfg, baseURL, snap, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init browser fetcher: %w", err)
	}
	return f, f.Close, nil
}

func resolveStages(stage string) ([]string, error) {
	switch stage {
	case "all", "":
		return []string{crawl.StageSubjects, crawl.StageWorks, crawl.StageMagnets}, nil
	case crawl.StageSubjects, crawl.StageWorks, crawl.StageMagnets:
		return []string{stage}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

func mergeLists(flag, cfg []string) []string {
	if len(flag) > 0 {
		return flag
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
