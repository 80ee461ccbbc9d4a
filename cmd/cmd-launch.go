package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/stupside/veil/internal/app"
	"github.com/stupside/veil/internal/browser"
	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/metrics"
)

// launchCommand returns the "launch" CLI subcommand.
func launchCommand() *cli.Command {
	return &cli.Command{
		Name:      "launch",
		Usage:     "Start a protected browser and open the given URLs",
		ArgsUsage: "[url...]",
		Flags:     profileFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			p, err := loadProfile(cmd, cfg)
			if err != nil {
				return err
			}
			script, err := buildScript(cfg, p)
			if err != nil {
				return err
			}

			journal := guard.NewJournal(cfg.Guard.JournalSize)
			launcher, err := browser.NewLauncher(browser.Options{
				Browser:      cfg.Browser,
				Profile:      p,
				Script:       script,
				Table:        guardTable(cfg),
				Journal:      journal,
				OutOfProcess: cfg.Sync.OutOfProcess && !cfg.Sync.Disabled,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			if cfg.Metrics.Addr != "" {
				g.Go(func() error {
					return metrics.Serve(ctx, cfg.Metrics.Addr)
				})
			}

			// The metrics listener stops with the browser.
			g.Go(func() error {
				defer cancel()
				return run(ctx, launcher, cfg.Browser.MaxTabs, cmd.Args().Slice())
			})

			err = g.Wait()

			for _, line := range journal.Lines() {
				slog.Debug("guard decision", "entry", line)
			}
			return err
		},
	}
}

// run starts the browser, opens urls with at most maxTabs navigations in
// flight, and keeps everything open until ctx is done.
func run(ctx context.Context, launcher *browser.Launcher, maxTabs int, urls []string) error {
	if err := launcher.Start(ctx); err != nil {
		return err
	}
	defer launcher.Close()

	sessions := make([]*browser.Session, len(urls))

	var g errgroup.Group
	g.SetLimit(maxTabs)
	errs := make([]error, len(urls))
	for i, u := range urls {
		g.Go(func() error {
			s, err := launcher.Open(ctx, u)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", u, err)
				return nil
			}
			sessions[i] = s
			return nil
		})
	}
	_ = g.Wait()

	defer func() {
		for _, s := range sessions {
			if s != nil {
				s.Close()
			}
		}
	}()

	if err := errors.Join(errs...); err != nil {
		slog.WarnContext(ctx, "some tabs failed to open", "error", err)
	}

	slog.InfoContext(ctx, "browser ready", "tabs", len(urls), "frames", launcher.Frames().Len())

	select {
	case <-ctx.Done():
	case <-launcher.Context().Done():
		slog.InfoContext(ctx, "browser closed")
	}
	return nil
}
