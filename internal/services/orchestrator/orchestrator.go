// -----------------------------------------------------------------------
// Orchestrator - walks the catalog and hands every asset to a processor
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// AssetProcessor is the per-asset half of a run (export or metadata).
//
// ProcessAsset records its own failures and returns nil for them; a returned
// error stops the run and is reserved for cancellation or broken output.
// Finish is called once after the catalog walk, including after an abort.
type AssetProcessor interface {
	Mode() models.RunMode
	ProcessAsset(ctx context.Context, asset models.AssetReference, run *models.RunRecord) error
	Finish(ctx context.Context, run *models.RunRecord) error
}

// runIdentifier is implemented by processors whose output is keyed by a
// run id chosen before the run starts
type runIdentifier interface {
	RunID() string
}

// Orchestrator composes the paginator with a processor and the failure ledger.
// Pages and assets are handled strictly one at a time.
type Orchestrator struct {
	paginator  interfaces.CatalogPaginator
	ledger     interfaces.FailureLedger
	runs       interfaces.RunStorage
	catalog    common.CatalogConfig
	ledgerPath string
	limiter    *rate.Limiter
	logger     arbor.ILogger
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator. runs may be nil when history is not kept.
func NewOrchestrator(paginator interfaces.CatalogPaginator, ledger interfaces.FailureLedger, runs interfaces.RunStorage, config *common.Config, logger arbor.ILogger) *Orchestrator {
	o := &Orchestrator{
		paginator:  paginator,
		ledger:     ledger,
		runs:       runs,
		catalog:    config.Catalog,
		ledgerPath: config.Paths.LedgerFile,
		logger:     logger,
		now:        time.Now,
	}
	if delay := config.Catalog.AssetDelay.Duration; delay > 0 {
		o.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return o
}

// Run walks the catalog of kind from the configured start page. It stops at
// max_page, at the first empty page (policy "end"), after too many
// consecutive page failures, or when ctx is cancelled. The returned record
// is always populated; the error is non-nil only when the run was cut short
// by cancellation or a processor fault.
func (o *Orchestrator) Run(ctx context.Context, kind models.AssetKind, processor AssetProcessor) (*models.RunRecord, error) {
	runID := common.NewRunID()
	if p, ok := processor.(runIdentifier); ok && p.RunID() != "" {
		runID = p.RunID()
	}

	run := &models.RunRecord{
		ID:         runID,
		Mode:       processor.Mode(),
		Kind:       kind,
		StartedAt:  o.now(),
		LedgerPath: o.ledgerPath,
	}

	o.logger.Info().
		Str("run_id", run.ID).
		Str("mode", string(run.Mode)).
		Str("kind", string(kind)).
		Int("start_page", o.catalog.StartPage).
		Int("max_page", o.catalog.MaxPage).
		Str("empty_page_policy", o.catalog.EmptyPagePolicy).
		Msg("Run started")

	runErr := o.walk(ctx, kind, processor, run)

	// Partial output is still written when the walk was cancelled
	if err := processor.Finish(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to finish run")
		if runErr == nil {
			runErr = err
		}
	}

	run.FinishedAt = o.now()
	if runErr != nil && run.Aborted == "" {
		run.Aborted = runErr.Error()
	}

	if o.runs != nil {
		if err := o.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			o.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to save run history")
		}
	}

	o.logger.Info().
		Str("run_id", run.ID).
		Int("pages", run.Pages).
		Int("pages_failed", run.PagesFailed).
		Int("assets", run.Assets).
		Int("succeeded", run.Succeeded).
		Int("failed", run.Failed).
		Int("ledger_entries", o.ledger.Count()).
		Dur("elapsed", run.Duration()).
		Msg("Run finished")

	return run, runErr
}

func (o *Orchestrator) walk(ctx context.Context, kind models.AssetKind, processor AssetProcessor, run *models.RunRecord) error {
	consecutiveFailures := 0

	for pageNumber := o.catalog.StartPage; ; pageNumber++ {
		if o.catalog.MaxPage > 0 && pageNumber > o.catalog.MaxPage {
			o.logger.Info().Int("max_page", o.catalog.MaxPage).Msg("Reached last configured page")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pageStart := time.Now()
		o.logger.Info().Int("page", pageNumber).Msg("Processing page")

		page, err := o.paginator.NextPage(ctx, kind, pageNumber)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run.PagesFailed++
			consecutiveFailures++
			o.record(pageNumber, "page", err.Error())
			if o.tooManyFailures(consecutiveFailures, run) {
				return nil
			}
			continue
		}

		if page.Empty() {
			if o.catalog.EmptyPagePolicy != common.EmptyPageSkip {
				o.logger.Info().Int("page", pageNumber).Msg("No assets on page, end of catalog")
				return nil
			}
			run.PagesFailed++
			consecutiveFailures++
			o.record(pageNumber, "page", "no assets rendered")
			if o.tooManyFailures(consecutiveFailures, run) {
				return nil
			}
			continue
		}

		consecutiveFailures = 0
		run.Pages++

		for _, asset := range page.Assets {
			if err := o.pace(ctx); err != nil {
				return err
			}

			o.logger.Info().
				Int("page", pageNumber).
				Int("index", asset.IndexOnPage).
				Int("of", len(page.Assets)).
				Str("url", asset.URL).
				Msgf("Processing %s %d on page %d", kind.Singular(), asset.IndexOnPage, pageNumber)

			run.Assets++
			if err := processor.ProcessAsset(ctx, asset, run); err != nil {
				return err
			}
		}

		o.logger.Info().
			Int("page", pageNumber).
			Int("assets", len(page.Assets)).
			Dur("elapsed", time.Since(pageStart)).
			Msg("Page complete")
	}
}

// tooManyFailures marks the run aborted once the consecutive page failure
// limit is hit. A walk bounded by max_page always runs to its last page.
func (o *Orchestrator) tooManyFailures(consecutive int, run *models.RunRecord) bool {
	limit := o.catalog.MaxConsecutivePageFailures
	if limit <= 0 || o.catalog.MaxPage > 0 || consecutive < limit {
		return false
	}
	run.Aborted = fmt.Sprintf("%d consecutive page failures", consecutive)
	o.logger.Error().Int("consecutive_failures", consecutive).Msg("Giving up on catalog walk")
	return true
}

// pace spaces asset visits by catalog.asset_delay
func (o *Orchestrator) pace(ctx context.Context) error {
	if o.limiter == nil {
		return ctx.Err()
	}
	return o.limiter.Wait(ctx)
}

func (o *Orchestrator) record(pageNumber int, label, reason string) {
	// Ledger write errors are logged by the ledger and never stop a run
	_ = o.ledger.Record(pageNumber, label, reason)
}
