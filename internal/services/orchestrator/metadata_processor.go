package orchestrator

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
	"github.com/ternarybob/cartograb/internal/services/metadata"
)

// MetadataProcessor extracts one row per asset and writes the CSV at the end
type MetadataProcessor struct {
	extractor    interfaces.MetadataExtractor
	table        *metadata.Table
	ledger       interfaces.FailureLedger
	csvPath      string
	assetColumns bool
	logger       arbor.ILogger
}

// NewMetadataProcessor creates the metadata half of a run
func NewMetadataProcessor(extractor interfaces.MetadataExtractor, table *metadata.Table, ledger interfaces.FailureLedger, csvPath string, assetColumns bool, logger arbor.ILogger) *MetadataProcessor {
	return &MetadataProcessor{
		extractor:    extractor,
		table:        table,
		ledger:       ledger,
		csvPath:      csvPath,
		assetColumns: assetColumns,
		logger:       logger,
	}
}

func (p *MetadataProcessor) Mode() models.RunMode {
	return models.RunModeMetadata
}

// RunID makes the run record share the id its rows are stored under
func (p *MetadataProcessor) RunID() string {
	return p.table.RunID()
}

// ProcessAsset appends exactly one row per visited asset. When the page could
// not be read the row is empty apart from the asset columns.
func (p *MetadataProcessor) ProcessAsset(ctx context.Context, asset models.AssetReference, run *models.RunRecord) error {
	row, err := p.extractor.ExtractRow(ctx, asset)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.Failed++
		_ = p.ledger.Record(asset.PageNumber, asset.Label(), err.Error())

		row = models.MetadataRow{}
		if p.assetColumns {
			row = metadata.AssetColumns(asset)
		}
	} else {
		run.Succeeded++
	}

	if err := p.table.Append(ctx, asset.URL, row); err != nil {
		return err
	}

	run.Rows = p.table.Len()
	run.Columns = len(p.table.Columns())
	return nil
}

// Finish writes the CSV with the column union of every row
func (p *MetadataProcessor) Finish(ctx context.Context, run *models.RunRecord) error {
	if err := p.table.WriteFile(ctx, p.csvPath); err != nil {
		return err
	}
	run.OutputPath = p.csvPath

	p.logger.Info().
		Str("path", p.csvPath).
		Int("rows", p.table.Len()).
		Int("columns", len(p.table.Columns())).
		Msg("Saved metadata")
	return nil
}
