package version

// Build information, injected with
// -ldflags "-X github.com/stupside/veil/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
