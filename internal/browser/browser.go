// Package browser drives Chrome over the DevTools protocol and keeps every
// tab and out-of-process frame it controls under the countermeasure script.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/stupside/veil/internal/app"
	"github.com/stupside/veil/internal/cloak"
	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/metrics"
	"github.com/stupside/veil/internal/profile"
)

// Launcher owns one Chrome process. All of its tabs share one profile and
// one rendered script.
type Launcher struct {
	cfg      app.BrowserConfig
	profile  *profile.Profile
	script   *cloak.Script
	enforcer *guard.Enforcer
	journal  *guard.Journal
	frames   *FrameRegistry
	oopif    bool

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Options are what a Launcher protects tabs with.
type Options struct {
	Browser app.BrowserConfig
	Profile *profile.Profile
	Script  *cloak.Script

	// Table enables request interception at the DevTools layer when set.
	Table   *guard.Table
	Journal *guard.Journal

	// OutOfProcess attaches to cross-process iframes and injects into them.
	OutOfProcess bool
}

// NewLauncher validates opts. Chrome is started by Start.
func NewLauncher(opts Options) (*Launcher, error) {
	if opts.Profile == nil || opts.Script == nil {
		return nil, fmt.Errorf("launcher needs a profile and a script")
	}

	l := &Launcher{
		cfg:     opts.Browser,
		profile: opts.Profile,
		script:  opts.Script,
		journal: opts.Journal,
		frames:  NewFrameRegistry(),
		oopif:   opts.OutOfProcess,
	}
	if opts.Table != nil {
		l.enforcer = guard.NewEnforcer(opts.Table, opts.Journal, func(d guard.Decision) {
			metrics.GuardDecisions.WithLabelValues(string(d.Kind), string(d.Verdict)).Inc()
		})
	}
	return l, nil
}

// Start launches Chrome and protects its initial tab.
func (l *Launcher) Start(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts(l.cfg, l.profile.UserAgent)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	l.ctx = browserCtx
	l.cancel = cancel
	l.allocCancel = allocCancel

	if l.oopif {
		chromedp.ListenBrowser(browserCtx, l.onBrowserEvent)
	}
	if l.enforcer != nil {
		chromedp.ListenTarget(browserCtx, l.enforcer.Listen(browserCtx))
	}

	if err := chromedp.Run(browserCtx, l.prepareTab()); err != nil {
		l.Close()
		return fmt.Errorf("starting browser: %w", err)
	}

	slog.DebugContext(ctx, "browser started",
		"chrome", l.cfg.ChromePath,
		"headless", l.cfg.Headless,
		"out_of_process_frames", l.oopif,
		"intercept", l.enforcer != nil,
		"proxy", l.cfg.Proxy != "",
		"user_data_dir", l.cfg.UserDataDir,
	)
	return nil
}

// Context is the initial tab. Tabs opened by Open derive from it.
func (l *Launcher) Context() context.Context {
	return l.ctx
}

// Frames exposes the out-of-process frame registry.
func (l *Launcher) Frames() *FrameRegistry {
	return l.frames
}

// Close tears down every tab and the browser.
func (l *Launcher) Close() {
	l.frames.Close()
	if l.cancel != nil {
		l.cancel()
	}
	if l.allocCancel != nil {
		l.allocCancel()
	}
}

// prepareTab installs the script for every future document of a tab, runs
// it in the current one and aligns the CDP-level overrides with the profile.
// With out-of-process frames on, new frames are held until prepareFrame
// resumes them.
func (l *Launcher) prepareTab() chromedp.Tasks {
	tasks := chromedp.Tasks{
		injectScript(l.script),
		injectOverrides(l.profile),
	}
	if l.enforcer != nil {
		tasks = append(tasks, l.enforcer.Enable())
	}
	if l.oopif {
		tasks = append(tasks, target.SetAutoAttach(true, true).WithFlatten(true))
	}
	return tasks
}

// prepareFrame is prepareTab for an out-of-process frame. It ends by letting
// the frame run, so the script is in place before its first document.
func (l *Launcher) prepareFrame() chromedp.Tasks {
	tasks := chromedp.Tasks{
		injectScript(l.script),
		frameOverrides(l.profile),
	}
	if l.enforcer != nil {
		tasks = append(tasks, l.enforcer.Enable())
	}
	return append(tasks, runtime.RunIfWaitingForDebugger())
}

func injectScript(s *cloak.Script) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(s.Source).
			WithRunImmediately(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("adding page script: %w", err)
		}
		return nil
	}
}

// injectOverrides covers what the page script leaves to the browser:
// navigator.webdriver, focus, the worker-visible core count, the timezone,
// the locale and the user agent with its client hints.
func injectOverrides(p *profile.Profile) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := emulation.SetAutomationOverride(false).Do(ctx); err != nil {
			return fmt.Errorf("automation override: %w", err)
		}
		if err := emulation.SetFocusEmulationEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("focus emulation: %w", err)
		}
		if err := emulation.SetHardwareConcurrencyOverride(int64(p.CPU.Cores)).Do(ctx); err != nil {
			return fmt.Errorf("hardware concurrency override: %w", err)
		}
		if err := emulation.SetTimezoneOverride(p.Timezone).Do(ctx); err != nil {
			return fmt.Errorf("timezone override: %w", err)
		}
		if err := emulation.SetLocaleOverride().WithLocale(p.BrowserLang).Do(ctx); err != nil {
			return fmt.Errorf("locale override: %w", err)
		}
		if ua := userAgentOverride(p); ua != nil {
			if err := ua.Do(ctx); err != nil {
				return fmt.Errorf("user agent override: %w", err)
			}
		}
		return nil
	}
}

// frameOverrides repeats the per-target overrides in a frame process. A
// frame that refuses them keeps what it inherited.
func frameOverrides(p *profile.Profile) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := emulation.SetTimezoneOverride(p.Timezone).Do(ctx); err != nil {
			slog.DebugContext(ctx, "frame: timezone override skipped", "error", err)
		}
		if ua := userAgentOverride(p); ua != nil {
			if err := ua.Do(ctx); err != nil {
				slog.DebugContext(ctx, "frame: user agent override skipped", "error", err)
			}
		}
		return nil
	}
}

// userAgentOverride builds the user agent override of p, or nil when the
// profile keeps Chrome's own. Client hints are attached when the string is
// one they can be derived from.
func userAgentOverride(p *profile.Profile) *emulation.SetUserAgentOverrideParams {
	if p.UserAgent == "" {
		return nil
	}
	ua := emulation.SetUserAgentOverride(p.UserAgent).WithAcceptLanguage(p.BrowserLang)

	hints, ok := p.ClientHints()
	if !ok {
		return ua
	}
	ua = ua.WithPlatform(hints.NavigatorPlatform)

	brands := [][2]string{
		{"Google Chrome", hints.Major},
		{"Chromium", hints.Major},
		{"Not_A Brand", "24"},
	}
	fullVersions := [][2]string{
		{"Google Chrome", hints.FullVersion},
		{"Chromium", hints.FullVersion},
		{"Not_A Brand", "24.0.0.0"},
	}
	return ua.WithUserAgentMetadata(&emulation.UserAgentMetadata{
		Brands:          brandVersions(brands),
		FullVersionList: brandVersions(fullVersions),
		Platform:        hints.Platform,
		PlatformVersion: hints.PlatformVersion,
		Architecture:    hints.Architecture,
		Model:           "",
		Mobile:          false,
		Bitness:         hints.Bitness,
	})
}

func brandVersions(pairs [][2]string) []*emulation.UserAgentBrandVersion {
	out := make([]*emulation.UserAgentBrandVersion, len(pairs))
	for i, b := range pairs {
		out[i] = &emulation.UserAgentBrandVersion{Brand: b[0], Version: b[1]}
	}
	return out
}

// onBrowserEvent runs on the browser event goroutine and must not block.
func (l *Launcher) onBrowserEvent(ev any) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if e.TargetInfo.Type == "iframe" {
			go l.attachFrame(e.TargetInfo.TargetID, e.TargetInfo.URL)
		}
	case *target.EventTargetDestroyed:
		l.frames.Forget(e.TargetID)
	}
}

func (l *Launcher) attachFrame(id target.ID, url string) {
	if !l.frames.Track(id) {
		return
	}

	frameCtx, cancel := chromedp.NewContext(l.ctx, chromedp.WithTargetID(id))
	if l.enforcer != nil {
		chromedp.ListenTarget(frameCtx, l.enforcer.Listen(frameCtx))
	}

	if err := chromedp.Run(frameCtx, l.prepareFrame()); err != nil {
		slog.DebugContext(l.ctx, "frame: attach failed", "target", id, "url", url, "error", err)
		// A held frame must not stay paused, patched or not.
		_ = chromedp.Run(frameCtx, runtime.RunIfWaitingForDebugger())
		cancel()
		return
	}

	if l.frames.MarkPatched(id, cancel) {
		metrics.FramesPatched.Inc()
		slog.DebugContext(l.ctx, "frame: patched", "target", id, "url", url)
		return
	}
	// Destroyed while attaching.
	cancel()
}

// allocatorOpts returns chromedp exec-allocator options that avoid common
// headless-detection flags. userAgent replaces Chrome's own when set.
func allocatorOpts(cfg app.BrowserConfig, userAgent string) []chromedp.ExecAllocatorOption {
	var headlessVal string
	if cfg.Headless {
		headlessVal = "new"
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("headless", headlessVal),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),

		// Keep cross-site frames in their own process so they show up as
		// attachable targets.
		chromedp.Flag("site-per-process", true),

		chromedp.Flag("webrtc-ip-handling-policy", "disable_non_proxied_udp"),

		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if cfg.Proxy != "" {
		opts = append(opts,
			chromedp.ProxyServer(cfg.Proxy),
			chromedp.Flag("proxy-bypass-list", "<-loopback>"),
		)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	return opts
}
