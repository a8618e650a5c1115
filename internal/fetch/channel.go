package fetch

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// A channel names one installed browser family the fetcher can drive. The
// empty channel means chromedp's own executable discovery.
const (
	channelDefault = ""
	channelChrome  = "chrome"
	channelEdge    = "msedge"
)

// channelCandidates returns the ordered launch attempts: the explicit hint
// alone when one is configured, otherwise default discovery followed by the
// platform-preferred channels.
func channelCandidates(hint string) []string {
	if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" {
		return []string{hint}
	}
	switch runtime.GOOS {
	case "windows":
		return []string{channelDefault, channelEdge, channelChrome}
	case "darwin":
		return []string{channelDefault, channelChrome, channelEdge}
	default:
		return []string{channelDefault, channelChrome}
	}
}

var channelExecutables = map[string]map[string][]string{
	channelChrome: {
		"windows": {`C:\Program Files\Google\Chrome\Application\chrome.exe`, `C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`, "chrome.exe"},
		"darwin":  {"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
		"linux":   {"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"},
	},
	channelEdge: {
		"windows": {`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`, `C:\Program Files\Microsoft\Edge\Application\msedge.exe`, "msedge.exe"},
		"darwin":  {"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
		"linux":   {"microsoft-edge", "microsoft-edge-stable"},
	},
}

// resolveExecutable maps a channel to a concrete browser executable path.
// The default channel resolves to the empty path, delegating discovery to
// chromedp.
func resolveExecutable(channel string) (string, error) {
	if channel == channelDefault {
		return "", nil
	}
	byOS, ok := channelExecutables[channel]
	if !ok {
		// A hint may name an executable directly.
		if path, err := exec.LookPath(channel); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("unknown browser channel %q", channel)
	}
	for _, candidate := range byOS[runtime.GOOS] {
		if strings.ContainsAny(candidate, `/\`) {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			continue
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("browser channel %s: no executable found", channel)
}

func candidateLabel(channel string) string {
	if channel == channelDefault {
		return "default"
	}
	return channel
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
