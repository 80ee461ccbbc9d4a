package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/stupside/veil/internal/app"
)

// profileCommand returns the "profile" CLI subcommand.
func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Print the session profile as YAML",
		Flags: profileFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}
			p, err := loadProfile(cmd, cfg)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(p); err != nil {
				return fmt.Errorf("encoding profile: %w", err)
			}
			return enc.Close()
		},
	}
}
