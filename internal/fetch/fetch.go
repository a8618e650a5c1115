// Package fetch provides the dual-transport page fetching abstraction: one
// interface served by a plain HTTP client and by a persistent headless
// browser session, both reporting block-page detection as data rather than
// as an error.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode selects the transport used to retrieve pages.
type Mode string

// Supported transports.
const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
)

// NormalizeMode maps free-form input onto a known mode, defaulting to browser
// since that is the only transport with a recovery path when the site blocks.
func NormalizeMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeHTTP:
		return ModeHTTP
	default:
		return ModeBrowser
	}
}

// Config is the immutable per-run fetch configuration.
type Config struct {
	Mode             Mode
	UserAgent        string
	PageTimeout      time.Duration
	ChallengeTimeout time.Duration
	// ProfileDir is the persistent browser profile location (browser mode).
	ProfileDir string
	// Channel optionally pins one browser executable candidate by name.
	Channel  string
	Headless bool
	// DebugDir receives blocked-page HTML/screenshot dumps.
	DebugDir string
}

// WithDefaults fills unset fields with the run defaults.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeBrowser
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.ChallengeTimeout <= 0 {
		c.ChallengeTimeout = 180 * time.Second
	}
	if c.ProfileDir == "" {
		c.ProfileDir = "userdata/browser_profile"
	}
	if c.DebugDir == "" {
		c.DebugDir = "debug"
	}
	return c
}

// Options carry per-call fetch hints.
type Options struct {
	// ExpectedSelector only exists on the real page; when set, the browser
	// transport waits for a human to clear an interactive challenge instead
	// of returning the first blocked capture.
	ExpectedSelector string
	// Stage labels debug artifacts dumped on a terminal block.
	Stage string
}

// Result is the outcome of one page fetch. A blocked page is a data point,
// not an error: Blocked is set from the detector heuristics and callers
// decide whether to escalate.
type Result struct {
	RequestedURL string
	FinalURL     string
	// StatusCode is 0 when the transport has no navigation response to read,
	// e.g. after a browser challenge-wait recapture.
	StatusCode    int
	Title         string
	HTML          string
	Blocked       bool
	BlockedReason string
}

// PageFetcher retrieves one page per call. Implementations are not safe for
// concurrent use; a crawl run owns exactly one fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (Result, error)
}

// BlockedError is the stage-aborting escalation of a blocked fetch, raised by
// callers when no recovery path remains.
type BlockedError struct {
	URL        string
	StatusCode int
	Title      string
	Reason     string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked page at %s (status=%d, title=%q, reason=%s)",
		e.URL, e.StatusCode, e.Title, e.Reason)
}

// Escalate converts a blocked result into a BlockedError, or nil if the
// result is not blocked.
func Escalate(res Result) error {
	if !res.Blocked {
		return nil
	}
	return &BlockedError{
		URL:        res.RequestedURL,
		StatusCode: res.StatusCode,
		Title:      res.Title,
		Reason:     res.BlockedReason,
	}
}
