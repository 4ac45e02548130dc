// -----------------------------------------------------------------------
// App - composition root wiring storage, browser and the run pipeline
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
	"github.com/ternarybob/cartograb/internal/services/browser"
	"github.com/ternarybob/cartograb/internal/services/catalog"
	"github.com/ternarybob/cartograb/internal/services/downloads"
	"github.com/ternarybob/cartograb/internal/services/export"
	"github.com/ternarybob/cartograb/internal/services/ledger"
	"github.com/ternarybob/cartograb/internal/services/metadata"
	"github.com/ternarybob/cartograb/internal/services/orchestrator"
	"github.com/ternarybob/cartograb/internal/storage"
)

// App holds all application components
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager interfaces.StorageManager

	// Run pipeline, created by StartSession
	Session      interfaces.BrowserSession
	Ledger       *ledger.Ledger
	Materializer *downloads.Materializer
	Paginator    *catalog.Paginator
	Orchestrator *orchestrator.Orchestrator
}

// New initializes storage only. Commands that read run history never start a browser.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return app, nil
}

// initDatabase initializes the row and run stores
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("type", a.Config.Storage.Type).
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage initialized")
	return nil
}

// StartSession opens the ledger, starts the browser, signs in and builds the
// pipeline. A login failure is fatal to the run and closes the browser.
func (a *App) StartSession(ctx context.Context) error {
	l, err := ledger.Open(a.Config.Paths.LedgerFile, a.Logger)
	if err != nil {
		return err
	}
	a.Ledger = l

	session, err := browser.NewSession(browser.Options{
		Browser:    a.Config.Browser,
		StagingDir: a.Config.Paths.StagingDir,
		PageLoad:   a.Config.Timeouts.PageLoad.Duration,
		Startup:    a.Config.Timeouts.Login.Duration,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	err = session.Login(ctx,
		a.Config.Catalog.BaseURL,
		a.Config.Auth,
		a.Config.Selectors.Login,
		a.Config.Timeouts.Login.Duration,
	)
	if err != nil {
		session.Close()
		return err
	}
	a.Session = session

	a.initPipeline()
	return nil
}

// initPipeline wires the components shared by both run modes
func (a *App) initPipeline() {
	a.Materializer = downloads.NewMaterializer(
		a.Config.Paths.StagingDir,
		a.Config.Timeouts.MaterializeSettle.Duration,
		a.Logger,
	)
	a.Paginator = catalog.NewPaginator(a.Session, a.Config, a.Logger)
	a.Orchestrator = orchestrator.NewOrchestrator(
		a.Paginator,
		a.Ledger,
		a.StorageManager.RunStorage(),
		a.Config,
		a.Logger,
	)
}

// RunExport downloads every asset of kind in the best available format
func (a *App) RunExport(ctx context.Context, kind models.AssetKind) (*models.RunRecord, error) {
	if a.Orchestrator == nil {
		return nil, fmt.Errorf("%w: session not started", models.ErrSessionUnavailable)
	}

	negotiator := export.NewNegotiator(a.Session, a.Materializer, a.Config, a.Logger)
	processor := orchestrator.NewExportProcessor(negotiator, a.Ledger, a.Config.Paths.OutputDir, a.Logger)

	return a.Orchestrator.Run(ctx, kind, processor)
}

// RunMetadata extracts one metadata row per asset of kind and writes the CSV
func (a *App) RunMetadata(ctx context.Context, kind models.AssetKind) (*models.RunRecord, error) {
	if a.Orchestrator == nil {
		return nil, fmt.Errorf("%w: session not started", models.ErrSessionUnavailable)
	}

	extractor := metadata.NewExtractor(a.Session, a.Config, a.Logger)
	// The run record adopts the table's id so "rows --run" finds the rows
	table := metadata.NewTable(a.StorageManager.RowStorage(), common.NewRunID(), a.Config.Metadata.MissingValue)
	processor := orchestrator.NewMetadataProcessor(
		extractor,
		table,
		a.Ledger,
		a.Config.Paths.MetadataCSV,
		a.Config.Metadata.AssetColumns,
		a.Logger,
	)

	return a.Orchestrator.Run(ctx, kind, processor)
}

// ListRuns returns the most recent runs, newest first
func (a *App) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	return a.StorageManager.RunStorage().ListRuns(ctx, limit)
}

// WriteRunRows rewrites the metadata CSV of a stored run to path
func (a *App) WriteRunRows(ctx context.Context, runID string, path string) (int, error) {
	rows, err := a.StorageManager.RowStorage().ListRows(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to list rows of run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no rows stored for %s", interfaces.ErrRunNotFound, runID)
	}

	columns := metadata.ColumnsOf(rows)
	if err := metadata.WriteRowsFile(path, columns, rows, a.Config.Metadata.MissingValue); err != nil {
		return 0, err
	}

	a.Logger.Info().
		Str("run_id", runID).
		Str("path", path).
		Int("rows", len(rows)).
		Int("columns", len(columns)).
		Msg("Rewrote metadata CSV")
	return len(rows), nil
}

// Close releases the browser, the ledger and storage
func (a *App) Close() error {
	if a.Session != nil {
		if err := a.Session.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close browser session")
		}
		a.Session = nil
	}

	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close ledger")
		}
	}

	if a.StorageManager != nil {
		closeStart := time.Now()
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Dur("elapsed", time.Since(closeStart)).Msg("Storage closed")
	}

	return nil
}
