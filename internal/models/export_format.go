package models

import "fmt"

// ExportFormat is the closed set of formats offered by the export dialog
type ExportFormat int

const (
	FormatGeoJSON ExportFormat = iota
	FormatSHP
	FormatCSV
)

// exportPriority is the fallback order. CSV is only a last resort and is
// attempted when neither primary format succeeded.
var exportPriority = []ExportFormat{FormatGeoJSON, FormatSHP, FormatCSV}

// PrimaryFormats are attempted in order and may both be downloaded
var PrimaryFormats = []ExportFormat{FormatGeoJSON, FormatSHP}

// FallbackFormat is attempted only when no primary format succeeded
const FallbackFormat = FormatCSV

// ExportPriority returns a copy of the fallback order
func ExportPriority() []ExportFormat {
	out := make([]ExportFormat, len(exportPriority))
	copy(out, exportPriority)
	return out
}

// Key is the token used in selectors and config (data-format attribute)
func (f ExportFormat) Key() string {
	switch f {
	case FormatGeoJSON:
		return "geojson"
	case FormatSHP:
		return "shp"
	case FormatCSV:
		return "csv"
	}
	return "unknown"
}

func (f ExportFormat) String() string {
	switch f {
	case FormatGeoJSON:
		return "GeoJSON"
	case FormatSHP:
		return "SHP"
	case FormatCSV:
		return "CSV"
	}
	return fmt.Sprintf("ExportFormat(%d)", int(f))
}
