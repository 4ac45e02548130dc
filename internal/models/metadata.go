package models

// MetadataRow is one flattened asset record keyed by dotted path
type MetadataRow map[string]interface{}

// StoredRow is the persisted form of a MetadataRow. Values are rendered to
// strings before storage so the gob encoding stays schema-free.
type StoredRow struct {
	ID       string            `json:"id"`
	RunID    string            `json:"run_id" badgerhold:"index"`
	Sequence int               `json:"sequence"`
	AssetURL string            `json:"asset_url"`
	Values   map[string]string `json:"values"`
}
