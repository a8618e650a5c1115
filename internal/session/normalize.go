package session

import (
	"strings"

	"go.uber.org/zap"
)

const (
	hostPrefix   = "__Host-"
	securePrefix = "__Secure-"
)

// CookieItems converts the snapshot into the structured list the browser
// transport needs. Sidecar items are emitted first with their attributes
// intact; flat entries without a sidecar item are synthesized, defaulting the
// domain to defaultHost unless the name's prefix forbids it. Values from the
// flat map win over a sidecar item of the same name. Malformed entries are
// dropped and counted, never fatal.
func (s Snapshot) CookieItems(defaultHost string, logger *zap.Logger) []CookieItem {
	out := make([]CookieItem, 0, len(s.Items)+len(s.Entries))
	index := make(map[string]int, len(s.Items))
	dropped := 0

	for _, item := range s.Items {
		normalized, ok := normalizeItem(item, defaultHost)
		if !ok {
			dropped++
			continue
		}
		index[normalized.Name] = len(out)
		out = append(out, normalized)
	}

	for name, value := range s.Entries {
		name = strings.TrimSpace(name)
		if name == "" {
			dropped++
			continue
		}
		if i, ok := index[name]; ok {
			out[i].Value = value
			continue
		}
		normalized, ok := normalizeItem(CookieItem{Name: name, Value: value}, defaultHost)
		if !ok {
			dropped++
			continue
		}
		index[normalized.Name] = len(out)
		out = append(out, normalized)
	}

	if dropped > 0 && logger != nil {
		logger.Warn("dropped malformed cookie entries during normalization",
			zap.Int("dropped", dropped))
	}
	return out
}

// normalizeItem applies the forced prefix invariants: __Host- cookies never
// carry a domain, always use path "/", and are always secure; __Secure-
// cookies are always secure. Path defaults to "/" when neither url nor path
// pins the cookie, and domain defaults to defaultHost only when nothing else
// already scopes it.
func normalizeItem(item CookieItem, defaultHost string) (CookieItem, bool) {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return CookieItem{}, false
	}
	item.Name = name

	isHost := strings.HasPrefix(name, hostPrefix)
	if isHost || strings.HasPrefix(name, securePrefix) {
		item.Secure = true
	}
	if isHost {
		item.Domain = ""
		item.Path = "/"
	}

	switch strings.ToLower(strings.TrimSpace(item.SameSite)) {
	case "strict":
		item.SameSite = "Strict"
	case "lax":
		item.SameSite = "Lax"
	case "none":
		item.SameSite = "None"
	default:
		item.SameSite = ""
	}

	if item.URL == "" && item.Domain == "" && !isHost && defaultHost != "" {
		item.Domain = defaultHost
	}
	if item.URL == "" && item.Path == "" {
		item.Path = "/"
	}
	return item, true
}
