package cmd

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/veil/internal/app"
	"github.com/stupside/veil/internal/cloak"
	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/profile"
)

// profileFlags let a command override the configured profile source.
func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "profile",
			Usage: "Path to a profile YAML file",
		},
		&cli.StringFlag{
			Name:  "identifier",
			Usage: "Derive the profile from this identifier",
		},
	}
}

// loadProfile resolves the session profile: an explicit file, then an
// identifier, then a random one. A configured canvas pool replaces the
// rendered canvas payload.
func loadProfile(cmd *cli.Command, cfg *app.Config) (*profile.Profile, error) {
	path := cfg.Profile.Path
	if v := cmd.String("profile"); v != "" {
		path = v
	}
	identifier := cfg.Profile.Identifier
	if v := cmd.String("identifier"); v != "" {
		identifier = v
		path = ""
	}

	var (
		p   *profile.Profile
		err error
	)
	if path != "" {
		p, err = profile.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		p = profile.Generate(identifier)
	}

	if cfg.Profile.CanvasPool != "" {
		pool, err := profile.LoadCanvasPool(cfg.Profile.CanvasPool)
		if err != nil {
			return nil, err
		}
		p = p.WithCanvasFrom(pool)
	}

	slog.Debug("profile ready",
		"source", profileSource(path, identifier),
		"gpu", p.GPU.Renderer,
		"cores", p.CPU.Cores,
		"ram", p.RAM,
		"voices", len(p.Voices),
		"lang", p.BrowserLang,
		"timezone", p.Timezone,
	)
	return p, nil
}

func profileSource(path, identifier string) string {
	switch {
	case path != "":
		return "file"
	case identifier != "":
		return "identifier"
	default:
		return "random"
	}
}

// buildScript renders the page script for p from the configuration.
func buildScript(cfg *app.Config, p *profile.Profile) (*cloak.Script, error) {
	s, err := cloak.Build(p, cloak.Options{
		Canvas:   cfg.Canvas,
		Rules:    guardRules(cfg),
		Disabled: cfg.Surfaces.Disabled,
		Sentinel: cfg.Sync.Sentinel,
		NoSync:   cfg.Sync.Disabled,
		NoGuard:  cfg.Guard.Disabled,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering page script: %w", err)
	}

	slog.Debug("page script ready",
		"bytes", len(s.Source),
		"surfaces", len(s.Plan.Surfaces),
		"members", len(s.Plan.Members),
	)
	return s, nil
}

// guardTable returns the table used at the DevTools layer, or nil when
// interception is off.
func guardTable(cfg *app.Config) *guard.Table {
	if cfg.Guard.Disabled || !cfg.Guard.Intercept {
		return nil
	}
	return guard.NewTable(guardRules(cfg))
}

// guardRules returns the configured rules, or nil for the defaults.
func guardRules(cfg *app.Config) []guard.Rule {
	if len(cfg.Guard.Rules) == 0 {
		return nil
	}
	return cfg.Guard.Rules
}
