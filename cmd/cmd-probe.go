package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/stupside/veil/internal/app"
	"github.com/stupside/veil/internal/browser"
	"github.com/stupside/veil/internal/cloak"
	"github.com/stupside/veil/internal/guard"
)

// probeCommand returns the "probe" CLI subcommand.
func probeCommand() *cli.Command {
	var urlArg string

	return &cli.Command{
		Name:  "probe",
		Usage: "Open a URL in a protected tab and check what a fingerprinting script sees",
		Flags: profileFlags(),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "url",
				Destination: &urlArg,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if urlArg == "" {
				return fmt.Errorf("probe needs a URL")
			}

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
			if err := launcher.Start(ctx); err != nil {
				return err
			}
			defer launcher.Close()

			session, err := launcher.Open(ctx, urlArg)
			if err != nil {
				return err
			}
			defer session.Close()

			sentinel := cloak.DefaultSentinel
			if script.Plan.Sync != nil {
				sentinel = script.Plan.Sync.Sentinel
			}
			report, err := browser.Probe(session.Context(), sentinel)
			if err != nil {
				return err
			}

			slog.Info("probe",
				"url", urlArg,
				"webgl_vendor", report.WebGLVendor,
				"webgl_renderer", report.WebGLRenderer,
				"device_memory", report.DeviceMemory,
				"hardware_concurrency", report.HardwareConcurrency,
				"devices", len(report.Devices),
				"voices", len(report.Voices),
				"loopback_socket", report.LoopbackSocket,
				"frames", launcher.Frames().Len(),
			)
			for _, line := range journal.Lines() {
				slog.Info("guard decision", "entry", line)
			}

			if mismatches := report.Mismatches(script, p); len(mismatches) > 0 {
				return fmt.Errorf("probe found %d mismatches: %s", len(mismatches), strings.Join(mismatches, "; "))
			}
			slog.Info("probe passed", "url", urlArg)
			return nil
		},
	}
}
