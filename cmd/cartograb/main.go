package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
)

var (
	// Command-line flags
	configFiles []string // later files override earlier ones
	logLevel    string
	startPage   int
	maxPage     int
	headless    bool

	// Global state, resolved once before any subcommand runs
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "cartograb",
	Short: "cartograb exports datasets, maps and their metadata from a CARTO dashboard.",
	Long: `cartograb signs in to a CARTO dashboard, walks the paginated dataset or map
listing and either downloads every asset in the best available format or
collects the page-state metadata of every asset into a single CSV.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.IntVar(&startPage, "start-page", 0, "First catalog page (overrides config)")
	flags.IntVar(&maxPage, "max-page", 0, "Last catalog page (overrides config)")
	flags.BoolVar(&headless, "headless", true, "Run Chrome without a window (overrides config)")

	rootCmd.AddCommand(exportCmd, metadataCmd, runsCmd, rowsCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence (REQUIRED ORDER):
// 1. Load config (defaults -> file1 -> file2 -> ... -> env, .env filling unset variables)
// 2. Apply CLI overrides (highest priority)
// 3. Validate
// 4. Initialize logger and crash handler
// 5. Print banner
func loadConfig(cmd *cobra.Command, args []string) error {
	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("cartograb.toml"); err == nil {
			configFiles = append(configFiles, "cartograb.toml")
		} else if _, err := os.Stat("deployments/local/cartograb.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/cartograb.toml")
		}
	}

	// CARTOGRAB_USERNAME / CARTOGRAB_PASSWORD usually live here; variables already set win
	_ = godotenv.Load(".env")

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	overrides := common.FlagOverrides{
		StartPage: startPage,
		MaxPage:   maxPage,
		LogLevel:  logLevel,
		OutputCSV: outputCSV,
	}
	if cmd.Flags().Changed("headless") {
		overrides.Headless = &headless
	}
	common.ApplyFlagOverrides(config, overrides)

	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.SetupLogger(config)
	common.InstallCrashHandler(config.Logging.Dir)
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_type", config.Storage.Type).
		Str("log_level", config.Logging.Level).
		Int("start_page", config.Catalog.StartPage).
		Int("max_page", config.Catalog.MaxPage).
		Bool("headless", config.Browser.Headless).
		Msg("Resolved configuration (sanitized)")

	return nil
}
