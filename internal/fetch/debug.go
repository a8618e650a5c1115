package fetch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// dumpDebug writes the blocked page's HTML and a full-page screenshot to the
// debug directory as {stage}_{timestamp}.{ext} for post-mortem diagnosis.
// Best-effort only: dump failures are logged and swallowed.
func (f *BrowserFetcher) dumpDebug(stage string, result Result) {
	if stage == "" {
		stage = "fetch"
	}
	stamp := time.Now().Format("20060102_150405")
	base := DebugArtifactName(stage, stamp)

	if err := os.MkdirAll(f.cfg.DebugDir, 0o750); err != nil {
		f.logger.Warn("debug dir unavailable, skipping block dump", zap.Error(err))
		return
	}

	htmlPath := filepath.Join(f.cfg.DebugDir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(result.HTML), 0o600); err != nil {
		f.logger.Warn("failed to dump blocked page html", zap.Error(err))
	} else {
		f.logger.Info("dumped blocked page html", zap.String("path", htmlPath))
	}

	shotCtx, cancel := context.WithTimeout(f.browserCtx, 10*time.Second)
	defer cancel()
	var shot []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&shot, 90)); err != nil {
		f.logger.Warn("failed to capture blocked page screenshot", zap.Error(err))
		return
	}
	shotPath := filepath.Join(f.cfg.DebugDir, base+".png")
	if err := os.WriteFile(shotPath, shot, 0o600); err != nil {
		f.logger.Warn("failed to write blocked page screenshot", zap.Error(err))
	}
}

// DebugArtifactName builds the base file name for one debug dump.
func DebugArtifactName(stage, stamp string) string {
	return stage + "_" + stamp
}
