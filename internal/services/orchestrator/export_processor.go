package orchestrator

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// ExportProcessor downloads every asset through the export negotiator
type ExportProcessor struct {
	negotiator interfaces.ExportNegotiator
	ledger     interfaces.FailureLedger
	outputDir  string
	logger     arbor.ILogger
}

// NewExportProcessor creates the export half of a run
func NewExportProcessor(negotiator interfaces.ExportNegotiator, ledger interfaces.FailureLedger, outputDir string, logger arbor.ILogger) *ExportProcessor {
	return &ExportProcessor{
		negotiator: negotiator,
		ledger:     ledger,
		outputDir:  outputDir,
		logger:     logger,
	}
}

func (p *ExportProcessor) Mode() models.RunMode {
	return models.RunModeExport
}

// ProcessAsset ledgers every attempt that did not succeed, a negotiation
// fault, and assets where no format succeeded at all. Attempts made before a
// fault still count.
func (p *ExportProcessor) ProcessAsset(ctx context.Context, asset models.AssetReference, run *models.RunRecord) error {
	result, err := p.negotiator.ExportAsset(ctx, asset)

	label := asset.Label()
	if result != nil && result.Name != "" {
		label = result.Name
	}

	if result != nil {
		for _, attempt := range result.Attempts {
			if attempt.Outcome == models.OutcomeSuccess {
				if attempt.File != "" {
					run.Files++
				}
				continue
			}
			_ = p.ledger.Record(asset.PageNumber, label,
				fmt.Sprintf("%s %s: %s", attempt.Format, attempt.Outcome, attempt.Reason))
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = p.ledger.Record(asset.PageNumber, label, err.Error())
	}

	if result != nil && result.Succeeded() {
		run.Succeeded++
		p.logger.Info().Str("asset", label).Str("formats", result.Summary()).Msg("Asset exported")
		return nil
	}

	run.Failed++
	if err == nil {
		_ = p.ledger.Record(asset.PageNumber, label, "no export format succeeded: "+result.Summary())
	}
	return nil
}

func (p *ExportProcessor) Finish(ctx context.Context, run *models.RunRecord) error {
	run.OutputPath = p.outputDir
	return nil
}
