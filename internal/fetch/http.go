package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/okabe/favcrawl/internal/parse"
	"github.com/okabe/favcrawl/internal/session"
)

// HTTPFetcher implements PageFetcher with a plain cookie-seeded HTTP client
// via Colly. It is stateless across calls beyond the shared cookie jar and
// never retries internally: a blocked page has no recovery path without a
// human, so escalation is left to the caller.
type HTTPFetcher struct {
	cfg       Config
	baseURL   string
	collector *colly.Collector
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewHTTPFetcher builds the shared collector and seeds its cookie jar from
// the session snapshot's flat map.
func NewHTTPFetcher(cfg Config, baseURL string, snap session.Snapshot, logger *zap.Logger) (*HTTPFetcher, error) {
	cfg = cfg.WithDefaults()

	c := colly.NewCollector(colly.Async(false))
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	// The visited-URL store is shared through Clone; without this a second
	// fetch of the same detail page within one run errors out. Deduplication
	// belongs to the crawl driver, not the transport.
	c.AllowURLRevisit = true
	c.SetRequestTimeout(cfg.PageTimeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 15 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	})

	cookies := make([]*http.Cookie, 0, len(snap.Entries))
	for name, value := range snap.Entries {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	if len(cookies) > 0 {
		if err := c.SetCookies(baseURL, cookies); err != nil {
			return nil, fmt.Errorf("seed cookie jar: %w", err)
		}
	}

	// Pacing floor: at most one request per second regardless of the
	// driver's politeness delay.
	return &HTTPFetcher{
		cfg:       cfg,
		baseURL:   baseURL,
		collector: c,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		logger:    logger,
	}, nil
}

// Fetch issues one GET and returns the captured page with block detection
// applied. The expected selector is ignored: the stateless transport has no
// live session a human could repair.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, _ Options) (Result, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("request pacing wait: %w", err)
	}

	var (
		result   Result
		fetchErr error
	)
	collector := f.collector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Pragma", "no-cache")
		r.Headers.Set("Referer", f.baseURL+"/")
	})
	collector.OnResponse(func(r *colly.Response) {
		html := string(r.Body)
		title := parse.Title(html)
		blocked, reason := Detect(html, title, r.StatusCode)
		result = Result{
			RequestedURL:  url,
			FinalURL:      r.Request.URL.String(),
			StatusCode:    r.StatusCode,
			Title:         title,
			HTML:          html,
			Blocked:       blocked,
			BlockedReason: reason,
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Result{}, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return Result{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
	}

	f.logResult(result)
	return result, nil
}

func (f *HTTPFetcher) logResult(res Result) {
	if f.logger == nil {
		return
	}
	f.logger.Info("fetched page",
		zap.String("mode", string(ModeHTTP)),
		zap.String("requested", res.RequestedURL),
		zap.String("final", res.FinalURL),
		zap.Int("status", res.StatusCode),
		zap.String("title", res.Title),
		zap.Bool("blocked", res.Blocked))
}
