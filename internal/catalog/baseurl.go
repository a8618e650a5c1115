package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// The site rotates mirror hosts that differ only in the segment between
// "https://" and ".com", so configuration carries just that segment.

var segmentPattern = regexp.MustCompile(`^[a-z0-9.-]+$`)

// NormalizeHostSegment strips scheme, path and the trailing .com from a
// loosely entered host value, keeping only the middle segment.
func NormalizeHostSegment(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
	}
	v = strings.TrimPrefix(v, "//")
	if i := strings.IndexByte(v, '/'); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSuffix(v, ".com")
	return strings.Trim(strings.TrimSpace(v), ".")
}

// ValidHostSegment reports whether the segment can be safely spliced into
// https://{segment}.com.
func ValidHostSegment(raw string) bool {
	v := NormalizeHostSegment(raw)
	if v == "" {
		return false
	}
	if strings.HasPrefix(v, "-") || strings.HasPrefix(v, ".") ||
		strings.HasSuffix(v, "-") || strings.HasSuffix(v, ".") {
		return false
	}
	if strings.Contains(v, "..") {
		return false
	}
	return segmentPattern.MatchString(v)
}

// BaseURL builds the site base URL from a host segment.
func BaseURL(segment string) (string, error) {
	v := NormalizeHostSegment(segment)
	if !ValidHostSegment(v) {
		return "", fmt.Errorf("invalid site host segment %q", segment)
	}
	return "https://" + v + ".com", nil
}

// Host extracts the hostname of a base URL, used as the default cookie domain.
func Host(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ResolveHref joins a possibly relative href against the base URL.
func ResolveHref(baseURL, href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ListingURL merges tag and sort query parameters into a subject's listing
// href, replacing any values already present.
func ListingURL(baseURL, href string, tags []string, sortType string) string {
	resolved := ResolveHref(baseURL, href)
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	values := url.Values{}
	for key, vs := range u.Query() {
		if key == "t" && len(tags) > 0 {
			continue
		}
		if key == "sort_type" && sortType != "" {
			continue
		}
		values[key] = vs
	}
	if len(tags) > 0 {
		values.Set("t", strings.Join(tags, ","))
	}
	if sortType != "" {
		values.Set("sort_type", sortType)
	}
	u.RawQuery = values.Encode()
	return u.String()
}
