package fetch

import "strings"

// blockMarkers are body substrings that identify a challenge interstitial.
var blockMarkers = []string{
	"cf-wrapper",
	"sorry, you have been blocked",
	"cloudflare ray id",
}

// Detect applies the block-page heuristics in precedence order: HTTP 403,
// then a challenge-vendor title, then known body markers. It is a pure
// function of its inputs; statusCode 0 means the status is unknown.
func Detect(html, title string, statusCode int) (bool, string) {
	if statusCode == 403 {
		return true, "status_403"
	}

	titleLower := strings.ToLower(title)
	if strings.Contains(titleLower, "cloudflare") || strings.Contains(titleLower, "attention required") {
		return true, "title_cloudflare"
	}

	bodyLower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(bodyLower, marker) {
			return true, "html:" + marker
		}
	}

	return false, ""
}
