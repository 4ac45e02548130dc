package interfaces

import (
	"context"

	"github.com/ternarybob/cartograb/internal/models"
)

// FailureLedger is the append-only failure sink
type FailureLedger interface {
	Record(pageNumber int, label string, reason string) error
	Count() int
}

// Materializer moves the newest completed download into a destination folder.
// Callers must not have more than one download outstanding.
type Materializer interface {
	Materialize(ctx context.Context, destinationFolder string) (string, error)
}

// CatalogPaginator yields one catalog page at a time
type CatalogPaginator interface {
	NextPage(ctx context.Context, kind models.AssetKind, pageNumber int) (*models.CatalogPage, error)
}

// ExportNegotiator exports one asset in the best available formats
type ExportNegotiator interface {
	ExportAsset(ctx context.Context, asset models.AssetReference) (*models.AssetExport, error)
}

// MetadataExtractor produces one flattened row per asset
type MetadataExtractor interface {
	ExtractRow(ctx context.Context, asset models.AssetReference) (models.MetadataRow, error)
}
