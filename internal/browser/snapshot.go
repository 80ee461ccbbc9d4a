package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// artifact is one file of a snapshot, captured from the tab.
type artifact struct {
	ext     string
	capture func(ctx context.Context) ([]byte, error)
}

var artifacts = []artifact{
	{ext: ".png", capture: func(ctx context.Context) ([]byte, error) {
		var buf []byte
		err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90))
		return buf, err
	}},
	{ext: ".html", capture: func(ctx context.Context) ([]byte, error) {
		var html string
		err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html))
		return []byte(html), err
	}},
	{ext: ".targets.json", capture: func(ctx context.Context) ([]byte, error) {
		var infos []*target.Info
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			infos, err = target.GetTargets().Do(ctx)
			return err
		}))
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(infos, "", "  ")
	}},
}

// snapshot dumps what the tab looks like under dir/session: a screenshot,
// the DOM and the frame targets Chrome knows about. Debug logging only.
func snapshot(ctx context.Context, dir, session, label string) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}

	dir = filepath.Join(dir, session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.DebugContext(ctx, "snapshot skipped", "dir", dir, "error", err)
		return
	}
	base := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().UnixMilli(), label))

	written := 0
	for _, a := range artifacts {
		data, err := a.capture(ctx)
		if err == nil {
			err = os.WriteFile(base+a.ext, data, 0o644)
		}
		if err != nil {
			slog.DebugContext(ctx, "snapshot artifact failed", "session", session, "artifact", a.ext, "error", err)
			continue
		}
		written++
	}

	slog.DebugContext(ctx, "snapshot written", "session", session, "label", label, "base", base, "files", written)
}
