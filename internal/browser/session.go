package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/stupside/veil/internal/metrics"
)

// Session is one protected tab.
type Session struct {
	ID  string
	URL string

	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// Open creates a tab, prepares it and navigates to targetURL. A failed
// navigation closes the tab.
func (l *Launcher) Open(ctx context.Context, targetURL string) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(l.ctx)

	if l.enforcer != nil {
		chromedp.ListenTarget(tabCtx, l.enforcer.Listen(tabCtx))
	}

	s := &Session{
		ID:      uuid.NewString(),
		URL:     targetURL,
		ctx:     tabCtx,
		cancel:  cancel,
		started: time.Now(),
	}

	// Don't derive a timeout context from the tab: cancelling a child of a
	// chromedp target context tears the target down.
	navDone := make(chan error, 1)
	go func() {
		navDone <- chromedp.Run(tabCtx,
			runtime.Enable(),
			network.Enable(),
			l.prepareTab(),
			chromedp.Navigate(targetURL),
		)
	}()

	var err error
	select {
	case err = <-navDone:
	case <-time.After(l.cfg.Timeout):
		err = fmt.Errorf("navigation timed out after %s", l.cfg.Timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening %s: %w", targetURL, err)
	}

	metrics.ActiveSessions.Inc()
	slog.DebugContext(ctx, "session opened", "session", s.ID, "url", targetURL)

	if l.cfg.SnapshotDir != "" {
		snapshot(tabCtx, l.cfg.SnapshotDir, s.ID, "after_nav")
	}
	return s, nil
}

// Context is the tab's chromedp context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done is closed when the tab goes away.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close closes the tab.
func (s *Session) Close() {
	s.cancel()
	metrics.ActiveSessions.Dec()
	metrics.SessionDuration.Observe(time.Since(s.started).Seconds())
	slog.Debug("session closed", "session", s.ID, "url", s.URL, "duration", time.Since(s.started))
}
