// Package session loads and normalizes the caller-supplied cookie snapshot
// that stands in for an authenticated site session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidSnapshot indicates the snapshot file is missing, unreadable, or
// lacks the session markers the site requires.
var ErrInvalidSnapshot = errors.New("invalid session snapshot")

// RequiredMarkers are the cookie names a usable session must carry. Their
// presence is a coarse check only; real validity is decided by the site.
var RequiredMarkers = []string{"cf_clearance", "_jdb_session", "over18"}

// StaleAfter is how old a snapshot file may be before a staleness warning.
const StaleAfter = 3 * 24 * time.Hour

// CookieItem is one structured cookie entry. Zero values mean "attribute not
// present" so a round trip through the flat representation stays lossless.
type CookieItem struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	URL      string  `json:"url,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
}

// Snapshot is the normalized session representation: a flat name->value map
// for the stateless transport plus the original structured items, when the
// source carried them, so attributes survive the flat round trip.
type Snapshot struct {
	Entries map[string]string
	Items   []CookieItem
}

// Empty reports whether the snapshot holds no cookies at all.
func (s Snapshot) Empty() bool {
	return len(s.Entries) == 0 && len(s.Items) == 0
}

// rawSnapshot covers the three accepted file shapes: a {"cookie": "k=v; ..."}
// wrapper, a {"cookies": [...]} wrapper, or a flat name->value object. A bare
// JSON array of items is also accepted.
type rawSnapshot struct {
	Cookie  string       `json:"cookie"`
	Cookies []CookieItem `json:"cookies"`
}

// Load reads, normalizes, and validates a snapshot file. A snapshot missing
// the required session markers is rejected with ErrInvalidSnapshot.
func Load(path string, logger *zap.Logger) (Snapshot, error) {
	snap, err := read(path)
	if err != nil {
		return Snapshot{}, err
	}
	warnIfStale(path, logger)
	if missing := missingMarkers(snap); len(missing) > 0 {
		return Snapshot{}, fmt.Errorf("%w: %s lacks required cookies %s",
			ErrInvalidSnapshot, path, strings.Join(missing, ", "))
	}
	return snap, nil
}

func read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var items []CookieItem
	if err := json.Unmarshal(data, &items); err == nil {
		return FromItems(items), nil
	}

	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err == nil {
		if raw.Cookie != "" {
			return Snapshot{Entries: ParseCookieString(raw.Cookie)}, nil
		}
		if len(raw.Cookies) > 0 {
			return FromItems(raw.Cookies), nil
		}
	}

	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err == nil {
		entries := make(map[string]string, len(flat))
		for k, v := range flat {
			if name := strings.TrimSpace(k); name != "" {
				entries[name] = v
			}
		}
		return Snapshot{Entries: entries}, nil
	}

	return Snapshot{}, fmt.Errorf("%w: %s is not a recognized cookie document", ErrInvalidSnapshot, path)
}

// ParseCookieString splits an "a=b; c=d" header-style cookie string into a
// flat map.
func ParseCookieString(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name := strings.TrimSpace(k)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(v)
	}
	return out
}

// FromItems builds a snapshot from structured items, keeping them as the
// sidecar and deriving the flat map with last-write-wins on duplicate names.
func FromItems(items []CookieItem) Snapshot {
	kept := make([]CookieItem, 0, len(items))
	entries := make(map[string]string, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		item.Name = name
		kept = append(kept, item)
		entries[name] = item.Value
	}
	return Snapshot{Entries: entries, Items: kept}
}

func missingMarkers(s Snapshot) []string {
	var missing []string
	for _, name := range RequiredMarkers {
		if s.Entries[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func warnIfStale(path string, logger *zap.Logger) {
	if logger == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if age := time.Since(info.ModTime()); age >= StaleAfter {
		logger.Warn("session snapshot has not been refreshed recently and may be expired",
			zap.String("path", path),
			zap.Duration("age", age.Truncate(time.Hour)))
	}
}
