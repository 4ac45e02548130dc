package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// Version information (set via -ldflags during build)
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// PrintBanner displays the application banner and the resolved run targets
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("cartograb", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("base_url", config.Catalog.BaseURL).
		Str("staging_dir", config.Paths.StagingDir).
		Str("output_dir", config.Paths.OutputDir).
		Str("ledger", config.Paths.LedgerFile).
		Msg("cartograb starting")
}
