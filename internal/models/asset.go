package models

import (
	"fmt"
	"strings"
)

// AssetKind identifies which dashboard listing an asset came from
type AssetKind string

const (
	AssetKindDataset AssetKind = "datasets"
	AssetKindMap     AssetKind = "maps"
)

// ParseAssetKind accepts the plural listing name as well as the singular form
func ParseAssetKind(s string) (AssetKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "datasets", "dataset", "data":
		return AssetKindDataset, nil
	case "maps", "map":
		return AssetKindMap, nil
	default:
		return "", fmt.Errorf("unknown asset kind %q (expected datasets or maps)", s)
	}
}

// Singular returns the kind as used in human-readable labels ("dataset", "map")
func (k AssetKind) Singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// AssetReference points at one catalog entry. It is created by the paginator
// and consumed exactly once by the negotiator or the extractor.
type AssetReference struct {
	URL         string    `json:"url"`
	Kind        AssetKind `json:"kind"`
	PageNumber  int       `json:"page_number"`
	IndexOnPage int       `json:"index_on_page"` // 1-based
	Title       string    `json:"title,omitempty"`
}

// Label returns the best-known human label for ledger entries
func (a AssetReference) Label() string {
	if t := strings.TrimSpace(a.Title); t != "" {
		return t
	}
	return a.Placeholder()
}

// Placeholder is the label used when no name could be read, e.g. "3th map"
func (a AssetReference) Placeholder() string {
	return fmt.Sprintf("%dth %s", a.IndexOnPage, a.Kind.Singular())
}

// CatalogPage is one listing page as produced by the paginator
type CatalogPage struct {
	PageNumber int              `json:"page_number"`
	Assets     []AssetReference `json:"assets"`
}

// Empty reports whether the page yielded no asset links
func (p *CatalogPage) Empty() bool {
	return p == nil || len(p.Assets) == 0
}
