package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/okabe/favcrawl/internal/metrics"
	"github.com/okabe/favcrawl/internal/session"
)

// BrowserFetcher implements PageFetcher on a persistent headless-browser
// session via chromedp. One profile and one tab live for the whole fetcher
// lifetime, so the site sees a single continuous session and a human can
// step in on that same tab to clear a challenge. Not safe for concurrent use.
type BrowserFetcher struct {
	cfg         Config
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	meta        *navMeta
	logger      *zap.Logger
	dump        func(stage string, result Result)
}

// NewBrowserFetcher launches the browser over the persistent profile and
// injects the session cookies. Launch is attempted against an explicit
// ordered list of executable candidates; every attempt's failure is captured
// and surfaced only if all of them fail.
func NewBrowserFetcher(cfg Config, baseURL string, snap session.Snapshot, logger *zap.Logger) (*BrowserFetcher, error) {
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.ProfileDir, 0o750); err != nil {
		return nil, fmt.Errorf("create browser profile dir: %w", err)
	}

	var launchErrs []error
	for _, candidate := range channelCandidates(cfg.Channel) {
		execPath, err := resolveExecutable(candidate)
		if err != nil {
			launchErrs = append(launchErrs, err)
			continue
		}
		f, err := launchBrowser(cfg, execPath, logger)
		if err != nil {
			launchErrs = append(launchErrs, fmt.Errorf("channel %s: %w", candidateLabel(candidate), err))
			continue
		}
		if err := f.injectCookies(baseURL, snap); err != nil {
			// The persistent profile may already hold a valid session.
			logger.Warn("cookie injection failed, continuing with existing profile",
				zap.Error(err))
		}
		return f, nil
	}
	return nil, fmt.Errorf("no usable browser found, install Chrome or Edge: %w", errors.Join(launchErrs...))
}

func launchBrowser(cfg Config, execPath string, logger *zap.Logger) (*BrowserFetcher, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserDataDir(cfg.ProfileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless, chromedp.Flag("disable-gpu", true))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	warmupCtx, cancel := context.WithTimeout(browserCtx, cfg.PageTimeout)
	defer cancel()
	if err := chromedp.Run(warmupCtx, network.Enable()); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	meta := &navMeta{}
	chromedp.ListenTarget(browserCtx, meta.captureEvent)

	f := &BrowserFetcher{
		cfg:         cfg,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		meta:        meta,
		logger:      logger,
	}
	f.dump = f.dumpDebug
	return f, nil
}

// Close releases the browser session unconditionally.
func (f *BrowserFetcher) Close() {
	f.browserStop()
	f.allocCancel()
}

func (f *BrowserFetcher) injectCookies(baseURL string, snap session.Snapshot) error {
	if snap.Empty() {
		f.logger.Info("no session cookies to inject, relying on the persistent profile")
		return nil
	}
	host := hostOf(baseURL)
	items := snap.CookieItems(host, f.logger)
	if len(items) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(items))
	for _, item := range items {
		params = append(params, toCookieParam(item))
	}
	ctx, cancel := context.WithTimeout(f.browserCtx, 10*time.Second)
	defer cancel()
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set browser cookies: %w", err)
	}
	f.logger.Info("injected session cookies into browser", zap.Int("count", len(params)))
	return nil
}

func toCookieParam(item session.CookieItem) *network.CookieParam {
	p := &network.CookieParam{
		Name:     item.Name,
		Value:    item.Value,
		Domain:   item.Domain,
		Path:     item.Path,
		URL:      item.URL,
		Secure:   item.Secure,
		HTTPOnly: item.HTTPOnly,
	}
	switch item.SameSite {
	case "Strict":
		p.SameSite = network.CookieSameSiteStrict
	case "Lax":
		p.SameSite = network.CookieSameSiteLax
	case "None":
		p.SameSite = network.CookieSameSiteNone
	}
	if item.Expires > 0 {
		expires := cdp.TimeSinceEpoch(time.Unix(int64(item.Expires), 0))
		p.Expires = &expires
	}
	return p
}

// Fetch navigates the persistent tab, captures the page, and on a blocked
// result with an expected selector enters the challenge wait so a human can
// clear the interstitial in the live browser window.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	f.meta.reset()
	navCtx, cancel := context.WithTimeout(f.browserCtx, f.cfg.PageTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
		return Result{}, fmt.Errorf("navigate %s: %w", url, err)
	}

	result, err := f.capture(ctx, url, f.meta.statusCode())
	if err != nil {
		return Result{}, err
	}

	if result.Blocked && opts.ExpectedSelector != "" {
		// The challenge wait dumps its own artifacts on timeout.
		result, err = f.awaitChallenge(ctx, url, opts, result)
		if err != nil {
			return Result{}, err
		}
	} else if result.Blocked {
		f.dump(opts.Stage, result)
	}
	f.logResult(result)
	return result, nil
}

// awaitChallenge polls for the expected selector until the challenge timeout
// expires, giving a human time to complete verification or login in the
// browser window. On success the page is recaptured with an unknown status,
// since no new navigation response exists.
func (f *BrowserFetcher) awaitChallenge(ctx context.Context, url string, opts Options, blocked Result) (Result, error) {
	f.logger.Warn("suspected block page, waiting for a human to clear the challenge in the browser",
		zap.String("stage", opts.Stage),
		zap.Duration("timeout", f.cfg.ChallengeTimeout))
	metrics.ChallengeWait()

	deadline := time.Now().Add(f.cfg.ChallengeTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("challenge wait canceled: %w", err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.dump(opts.Stage, blocked)
			return blocked, nil
		}

		pollCtx, cancel := context.WithTimeout(f.browserCtx, pollBudget(remaining))
		stop := forwardCancel(ctx, cancel)
		err := chromedp.Run(pollCtx, chromedp.WaitReady(opts.ExpectedSelector, chromedp.ByQuery))
		stop()
		cancel()
		if err == nil {
			break
		}
	}

	// Status is unknown after a wait-retry: the page changed without a
	// navigation response.
	return f.capture(ctx, url, 0)
}

func (f *BrowserFetcher) capture(ctx context.Context, requestedURL string, statusCode int) (Result, error) {
	var (
		html     string
		title    string
		finalURL string
	)
	capCtx, cancel := context.WithTimeout(f.browserCtx, f.cfg.PageTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(capCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("capture canceled: %w", ctx.Err())
		}
		return Result{}, fmt.Errorf("capture page: %w", err)
	}
	if finalURL == "" {
		finalURL = requestedURL
	}

	blocked, reason := Detect(html, title, statusCode)
	return Result{
		RequestedURL:  requestedURL,
		FinalURL:      finalURL,
		StatusCode:    statusCode,
		Title:         title,
		HTML:          html,
		Blocked:       blocked,
		BlockedReason: reason,
	}, nil
}

func (f *BrowserFetcher) logResult(res Result) {
	f.logger.Info("fetched page",
		zap.String("mode", string(ModeBrowser)),
		zap.String("requested", res.RequestedURL),
		zap.String("final", res.FinalURL),
		zap.Int("status", res.StatusCode),
		zap.String("title", res.Title),
		zap.Bool("blocked", res.Blocked))
}

// pollBudget clamps one challenge poll to at most a second and never beyond
// the remaining challenge budget.
func pollBudget(remaining time.Duration) time.Duration {
	const (
		floor   = 200 * time.Millisecond
		ceiling = time.Second
	)
	budget := remaining
	if budget > ceiling {
		budget = ceiling
	}
	if budget < floor {
		budget = floor
	}
	return budget
}

// forwardCancel propagates cancellation from the caller's context into a
// chromedp task context, which is rooted in the browser's own lifetime.
func forwardCancel(ctx context.Context, cancel context.CancelFunc) func() {
	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stopped:
		}
	}()
	return func() { close(stopped) }
}

// navMeta records the most recent top-level document response so the status
// code of a navigation can be reported.
type navMeta struct {
	mu     sync.Mutex
	status int
}

func (m *navMeta) reset() {
	m.mu.Lock()
	m.status = 0
	m.mu.Unlock()
}

func (m *navMeta) statusCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *navMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.mu.Unlock()
}
