package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Empty page policies
const (
	// EmptyPageEnd treats a page without asset links as the end of the catalog
	EmptyPageEnd = "end"
	// EmptyPageSkip treats it as a transient render failure: ledger it and move on.
	// Requires catalog.max_page so the run still terminates.
	EmptyPageSkip = "skip"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"`
	Catalog     CatalogConfig   `toml:"catalog"`
	Auth        AuthConfig      `toml:"auth"`
	Browser     BrowserConfig   `toml:"browser"`
	Timeouts    TimeoutsConfig  `toml:"timeouts"`
	Paths       PathsConfig     `toml:"paths"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Metadata    MetadataConfig  `toml:"metadata"`
	Selectors   SelectorsConfig `toml:"selectors"`
}

// CatalogConfig describes the paginated dashboard listing
type CatalogConfig struct {
	BaseURL                    string   `toml:"base_url" validate:"required,url"`
	DatasetsPath               string   `toml:"datasets_path" validate:"required"`
	MapsPath                   string   `toml:"maps_path" validate:"required"`
	PageParam                  string   `toml:"page_param" validate:"required"`
	StartPage                  int      `toml:"start_page" validate:"min=1"`
	MaxPage                    int      `toml:"max_page" validate:"min=0"`                      // 0 = no limit
	EmptyPagePolicy            string   `toml:"empty_page_policy" validate:"oneof=end skip"`    // "end" or "skip"
	PageAttempts               int      `toml:"page_attempts" validate:"min=1,max=10"`          // page load attempts before the page is skipped
	MaxConsecutivePageFailures int      `toml:"max_consecutive_page_failures" validate:"min=0"` // 0 = never give up; ignored when max_page is set
	AssetDelay                 Duration `toml:"asset_delay"`                                    // minimum spacing between asset visits
}

// AuthConfig holds the dashboard credentials
type AuthConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// BrowserConfig controls the chromedp allocator
type BrowserConfig struct {
	Headless     bool   `toml:"headless"`
	NoSandbox    bool   `toml:"no_sandbox"`
	DisableGPU   bool   `toml:"disable_gpu"`
	UserAgent    string `toml:"user_agent"`
	ExecPath     string `toml:"exec_path"`     // Chrome binary, empty = auto-detect
	UserDataDir  string `toml:"user_data_dir"` // persistent profile, empty = temporary
	WindowWidth  int    `toml:"window_width" validate:"min=0"`
	WindowHeight int    `toml:"window_height" validate:"min=0"`
}

// TimeoutsConfig separates short DOM waits from long server-side export waits
type TimeoutsConfig struct {
	Login             Duration `toml:"login"`
	PageLoad          Duration `toml:"page_load"`          // catalog listing / asset page render
	Element           Duration `toml:"element"`            // export menu and format options
	Confirm           Duration `toml:"confirm"`            // server-side export preparation
	DownloadSettle    Duration `toml:"download_settle"`    // after confirm, before materializing
	MaterializeSettle Duration `toml:"materialize_settle"` // before polling the staging directory
	RenderSettle      Duration `toml:"render_settle"`      // before reading page source for metadata
}

// PathsConfig holds filesystem locations
type PathsConfig struct {
	StagingDir  string `toml:"staging_dir" validate:"required"`
	OutputDir   string `toml:"output_dir" validate:"required"`
	LedgerFile  string `toml:"ledger_file" validate:"required"`
	MetadataCSV string `toml:"metadata_csv" validate:"required"`
}

// StorageConfig selects where metadata rows and run history are kept
type StorageConfig struct {
	Type   string       `toml:"type" validate:"oneof=badger memory"` // "memory" keeps nothing after exit
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
	Dir        string   `toml:"dir"`         // log directory for file output, default ./logs
}

// MetadataConfig controls the metadata pipeline
type MetadataConfig struct {
	MissingValue string   `toml:"missing_value"` // cell value for columns a row lacks
	ScriptBlobs  []string `toml:"script_blobs" validate:"min=1,dive,required"`
	AssetColumns bool     `toml:"asset_columns"` // add asset.url / asset.page / asset.index columns
}

// SelectorsConfig holds every selector the UI automation depends on
type SelectorsConfig struct {
	Login    LoginSelectors `toml:"login"`
	Datasets KindSelectors  `toml:"datasets"`
	Maps     KindSelectors  `toml:"maps"`
}

// LoginSelectors drive the fixed login sequence
type LoginSelectors struct {
	LoginLink string `toml:"login_link"`
	Email     string `toml:"email" validate:"required"`
	Password  string `toml:"password" validate:"required"`
	Submit    string `toml:"submit" validate:"required"`
	Dashboard string `toml:"dashboard" validate:"required"` // present once authenticated
}

// KindSelectors describe the listing and export UI of one asset kind
type KindSelectors struct {
	AssetLink     string   `toml:"asset_link" validate:"required"` // one anchor per asset row
	EmptyState    string   `toml:"empty_state"`                    // rendered when a page has no assets
	Caption       string   `toml:"caption"`                        // CSS, name element inside an asset link; empty = link text
	Title         string   `toml:"title"`                          // display name on the asset page
	OpenExport    []string `toml:"open_export" validate:"min=1,dive,required"`
	FormatOption  string   `toml:"format_option" validate:"required"` // fmt template, %s = format key
	DisabledClass string   `toml:"disabled_class"`
	Confirm       string   `toml:"confirm" validate:"required"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Catalog: CatalogConfig{
			BaseURL:                    "https://ampitup.carto.com",
			DatasetsPath:               "/dashboard/datasets/",
			MapsPath:                   "/dashboard/maps/",
			PageParam:                  "page",
			StartPage:                  1,
			MaxPage:                    0,
			EmptyPagePolicy:            EmptyPageEnd,
			PageAttempts:               3,
			MaxConsecutivePageFailures: 3,
			AssetDelay:                 D(3 * time.Second),
		},
		Browser: BrowserConfig{
			Headless:     true,
			NoSandbox:    false,
			DisableGPU:   true,
			UserAgent:    "",
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Timeouts: TimeoutsConfig{
			Login:             D(30 * time.Second),
			PageLoad:          D(30 * time.Second),
			Element:           D(30 * time.Second),
			Confirm:           D(180 * time.Second),
			DownloadSettle:    D(15 * time.Second),
			MaterializeSettle: D(5 * time.Second),
			RenderSettle:      D(5 * time.Second),
		},
		Paths: PathsConfig{
			StagingDir:  "./data/staging",
			OutputDir:   "./data/exports",
			LedgerFile:  "./data/failed_assets.txt",
			MetadataCSV: "./data/map_metadata.csv",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path:           "./data/db",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
			Dir:        "./logs",
		},
		Metadata: MetadataConfig{
			MissingValue: "",
			ScriptBlobs:  []string{"frontendConfig", "visualizationData"},
		},
		Selectors: SelectorsConfig{
			Login: LoginSelectors{
				LoginLink: ".Header-settingsItem.js-login",
				Email:     "#session_email",
				Password:  "#session_password",
				Submit:    "button.button--arrow.is-cartoRed.u-width--100",
				Dashboard: "a.navbar-elementItem",
			},
			Datasets: KindSelectors{
				AssetLink:     ".DatasetListItem .DatasetListItem-title a",
				EmptyState:    ".ContentList-empty, .EmptyState",
				Title:         ".Editor-HeaderInfo-titleText",
				OpenExport:    []string{".js-toggle-menu", `//li[@data-val="export-data"]//button`},
				FormatOption:  `[data-format="%s"]`,
				DisabledClass: "is-disabled",
				Confirm:       "button.CDB-Button.js-confirm",
			},
			Maps: KindSelectors{
				AssetLink:     "a.card.map-card.card--can-hover",
			Caption:       ".card-title",
				EmptyState:    ".ContentList-empty, .EmptyState",
				Title:         ".Editor-HeaderInfo-titleText",
				OpenExport:    []string{".js-toggle-menu", `//li[@data-val="export-map"]//button`},
				FormatOption:  `[data-format="%s"]`,
				DisabledClass: "is-disabled",
				Confirm:       "button.CDB-Button.js-confirm",
			},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into the existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CARTOGRAB_ENV"); env != "" {
		config.Environment = env
	}

	// Catalog
	if baseURL := os.Getenv("CARTOGRAB_BASE_URL"); baseURL != "" {
		config.Catalog.BaseURL = baseURL
	}
	if startPage := os.Getenv("CARTOGRAB_START_PAGE"); startPage != "" {
		if p, err := strconv.Atoi(startPage); err == nil {
			config.Catalog.StartPage = p
		}
	}
	if maxPage := os.Getenv("CARTOGRAB_MAX_PAGE"); maxPage != "" {
		if p, err := strconv.Atoi(maxPage); err == nil {
			config.Catalog.MaxPage = p
		}
	}
	if policy := os.Getenv("CARTOGRAB_EMPTY_PAGE_POLICY"); policy != "" {
		config.Catalog.EmptyPagePolicy = policy
	}

	// Credentials
	if username := os.Getenv("CARTOGRAB_USERNAME"); username != "" {
		config.Auth.Username = username
	}
	if password := os.Getenv("CARTOGRAB_PASSWORD"); password != "" {
		config.Auth.Password = password
	}

	// Browser
	if headless := os.Getenv("CARTOGRAB_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if execPath := os.Getenv("CARTOGRAB_CHROME_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}

	// Timeouts
	if confirm := os.Getenv("CARTOGRAB_CONFIRM_TIMEOUT"); confirm != "" {
		if d, err := time.ParseDuration(confirm); err == nil {
			config.Timeouts.Confirm = D(d)
		}
	}

	// Paths
	if staging := os.Getenv("CARTOGRAB_STAGING_DIR"); staging != "" {
		config.Paths.StagingDir = staging
	}
	if output := os.Getenv("CARTOGRAB_OUTPUT_DIR"); output != "" {
		config.Paths.OutputDir = output
	}
	if ledger := os.Getenv("CARTOGRAB_LEDGER_FILE"); ledger != "" {
		config.Paths.LedgerFile = ledger
	}
	if csvPath := os.Getenv("CARTOGRAB_METADATA_CSV"); csvPath != "" {
		config.Paths.MetadataCSV = csvPath
	}
	if storageType := os.Getenv("CARTOGRAB_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("CARTOGRAB_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging
	if level := os.Getenv("CARTOGRAB_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CARTOGRAB_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// FlagOverrides carries command-line values; zero values leave the config untouched
type FlagOverrides struct {
	StartPage int
	MaxPage   int
	Headless  *bool
	LogLevel  string
	OutputCSV string
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.StartPage > 0 {
		config.Catalog.StartPage = flags.StartPage
	}
	if flags.MaxPage > 0 {
		config.Catalog.MaxPage = flags.MaxPage
	}
	if flags.Headless != nil {
		config.Browser.Headless = *flags.Headless
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	if flags.OutputCSV != "" {
		config.Paths.MetadataCSV = flags.OutputCSV
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot express
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Catalog.EmptyPagePolicy == EmptyPageSkip && c.Catalog.MaxPage == 0 {
		return fmt.Errorf("invalid configuration: empty_page_policy %q requires catalog.max_page", EmptyPageSkip)
	}
	if c.Catalog.MaxPage > 0 && c.Catalog.MaxPage < c.Catalog.StartPage {
		return fmt.Errorf("invalid configuration: max_page %d is before start_page %d", c.Catalog.MaxPage, c.Catalog.StartPage)
	}
	for _, kind := range []models.AssetKind{models.AssetKindDataset, models.AssetKindMap} {
		tmpl := c.Selectors.For(kind).FormatOption
		if strings.Count(tmpl, "%s") != 1 {
			return fmt.Errorf("invalid configuration: selectors.%s.format_option must contain exactly one %%s", kind)
		}
		if interfaces.IsXPath(c.Selectors.For(kind).Caption) {
			return fmt.Errorf("invalid configuration: selectors.%s.caption must be a CSS selector", kind)
		}
	}
	if c.Timeouts.Confirm.Duration < c.Timeouts.PageLoad.Duration {
		return fmt.Errorf("invalid configuration: timeouts.confirm (%s) must not be shorter than timeouts.page_load (%s)",
			c.Timeouts.Confirm.Duration, c.Timeouts.PageLoad.Duration)
	}
	return nil
}

// For returns the selectors of an asset kind
func (s SelectorsConfig) For(kind models.AssetKind) KindSelectors {
	if kind == models.AssetKindMap {
		return s.Maps
	}
	return s.Datasets
}

// ListingPath returns the dashboard path of an asset kind
func (c CatalogConfig) ListingPath(kind models.AssetKind) string {
	if kind == models.AssetKindMap {
		return c.MapsPath
	}
	return c.DatasetsPath
}
