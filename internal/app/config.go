package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/policy"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are
// separated by a double underscore: VEIL_BROWSER__CHROME_PATH.
const EnvPrefix = "VEIL_"

// Config holds all application configuration.
type Config struct {
	Browser  BrowserConfig  `koanf:"browser" validate:"required"`
	Profile  ProfileConfig  `koanf:"profile"`
	Canvas   policy.Canvas  `koanf:"canvas" validate:"required"`
	Guard    GuardConfig    `koanf:"guard"`
	Sync     SyncConfig     `koanf:"sync"`
	Surfaces SurfacesConfig `koanf:"surfaces"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// BrowserConfig holds settings for the controlled Chrome instance.
type BrowserConfig struct {
	Timeout      time.Duration `koanf:"timeout" validate:"required"`
	Headless     bool          `koanf:"headless"`
	NoSandbox    bool          `koanf:"no_sandbox"`
	ChromePath   string        `koanf:"chrome_path"`
	WindowWidth  int           `koanf:"window_width" validate:"gt=0"`
	WindowHeight int           `koanf:"window_height" validate:"gt=0"`
	MaxTabs      int           `koanf:"max_tabs" validate:"gt=0"`
	SnapshotDir  string        `koanf:"snapshot_dir"`

	// Proxy routes all browser traffic, e.g. socks5://127.0.0.1:1080.
	// Loopback stays direct.
	Proxy string `koanf:"proxy" validate:"omitempty,url"`
	// UserDataDir keeps cookies and storage across runs. Empty uses a
	// throwaway directory.
	UserDataDir string `koanf:"user_data_dir"`
}

// ProfileConfig selects where the session profile comes from. Path wins over
// Identifier; with neither a random profile is generated.
type ProfileConfig struct {
	Path       string `koanf:"path"`
	Identifier string `koanf:"identifier"`
	CanvasPool string `koanf:"canvas_pool"`
}

// GuardConfig holds the network rule table. An empty Rules list uses the
// built-in rules.
type GuardConfig struct {
	Disabled    bool         `koanf:"disabled"`
	Intercept   bool         `koanf:"intercept"`
	Rules       []guard.Rule `koanf:"rules" validate:"dive"`
	JournalSize int          `koanf:"journal_size" validate:"gte=512"`
}

// SyncConfig holds frame synchronization settings.
type SyncConfig struct {
	Disabled     bool   `koanf:"disabled"`
	Sentinel     string `koanf:"sentinel"`
	OutOfProcess bool   `koanf:"out_of_process"`
}

// SurfacesConfig lists surfaces left native.
type SurfacesConfig struct {
	Disabled []string `koanf:"disabled"`
}

// MetricsConfig holds the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() Config {
	return Config{
		Browser: BrowserConfig{
			Timeout:      60 * time.Second,
			Headless:     true,
			WindowWidth:  1920,
			WindowHeight: 1080,
			MaxTabs:      4,
		},
		Canvas: policy.DefaultCanvas(),
		Guard: GuardConfig{
			Intercept:   true,
			JournalSize: 64 * 1024,
		},
		Sync: SyncConfig{
			OutOfProcess: true,
		},
	}
}

// Load reads configuration from an optional YAML file, then applies a .env
// file and VEIL_ environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// envKey maps VEIL_BROWSER__CHROME_PATH to browser.chrome_path.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, fmt.Errorf("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}
