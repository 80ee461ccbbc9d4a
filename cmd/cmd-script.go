package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/stupside/veil/internal/app"
)

// scriptCommand returns the "script" CLI subcommand.
func scriptCommand() *cli.Command {
	return &cli.Command{
		Name:  "script",
		Usage: "Render the page script for the session profile",
		Flags: append(profileFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the script to this file instead of stdout",
			},
		),
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

			out := cmd.String("output")
			if out == "" {
				_, err := fmt.Fprint(os.Stdout, script.Source)
				return err
			}
			if err := os.WriteFile(out, []byte(script.Source), 0o644); err != nil {
				return fmt.Errorf("writing script: %w", err)
			}
			slog.Info("script written", "path", out, "bytes", len(script.Source), "token", script.Plan.Token)
			return nil
		},
	}
}
