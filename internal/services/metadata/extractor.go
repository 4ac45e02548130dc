// -----------------------------------------------------------------------
// Metadata Extractor - embedded page-state JSON to one flat row per asset
// -----------------------------------------------------------------------

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Asset columns added when metadata.asset_columns is enabled
const (
	ColumnAssetURL   = "asset.url"
	ColumnAssetPage  = "asset.page"
	ColumnAssetIndex = "asset.index"
)

// Extractor reads the inline `var NAME = JSON.parse('...')` assignments of
// an asset page and flattens them under their variable names
type Extractor struct {
	session      interfaces.BrowserSession
	blobs        []string
	patterns     map[string]*regexp.Regexp
	settle       time.Duration
	assetColumns bool
	logger       arbor.ILogger
}

var _ interfaces.MetadataExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor for the configured script blobs
func NewExtractor(session interfaces.BrowserSession, config *common.Config, logger arbor.ILogger) *Extractor {
	e := &Extractor{
		session:      session,
		blobs:        config.Metadata.ScriptBlobs,
		patterns:     make(map[string]*regexp.Regexp, len(config.Metadata.ScriptBlobs)),
		settle:       config.Timeouts.RenderSettle.Duration,
		assetColumns: config.Metadata.AssetColumns,
		logger:       logger,
	}
	for _, name := range e.blobs {
		e.patterns[name] = blobPattern(name)
	}
	return e
}

// blobPattern matches `var NAME = JSON.parse('<literal>');` and captures the raw literal
func blobPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)\b(?:var|let|const)\s+` + regexp.QuoteMeta(name) +
		`\s*=\s*JSON\.parse\(\s*'((?:[^'\\]|\\.)*)'\s*\)`)
}

// ExtractRow loads the asset page and returns its flattened metadata.
// Missing or malformed blobs are logged and contribute nothing; only a
// page that could not be loaded is an error.
func (e *Extractor) ExtractRow(ctx context.Context, asset models.AssetReference) (models.MetadataRow, error) {
	if err := e.session.Navigate(ctx, asset.URL); err != nil {
		return nil, fmt.Errorf("failed to open asset page: %w", err)
	}

	// Page state is injected by scripts after the document is ready
	if err := common.Sleep(ctx, e.settle); err != nil {
		return nil, err
	}

	source, err := e.session.PageSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page source: %w", err)
	}

	row := e.ParseSource(source, asset.URL)
	if e.assetColumns {
		Merge(row, AssetColumns(asset))
	}
	return row, nil
}

// ParseSource extracts and flattens every configured blob from page markup
func (e *Extractor) ParseSource(source string, origin string) models.MetadataRow {
	scripts := inlineScripts(source)
	row := models.MetadataRow{}

	for _, name := range e.blobs {
		obj, err := e.decodeBlob(name, scripts, source)
		if err != nil {
			e.logger.Warn().
				Str("url", origin).
				Str("blob", name).
				Err(err).
				Msg("Embedded JSON unavailable, continuing with empty object")
			obj = map[string]interface{}{}
		}
		Merge(row, Flatten(name, obj))
	}

	e.logger.Debug().Str("url", origin).Int("keys", len(row)).Msg("Metadata extracted")
	return row
}

func (e *Extractor) decodeBlob(name string, scripts []string, source string) (map[string]interface{}, error) {
	pattern := e.patterns[name]

	raw, found := "", false
	for _, script := range scripts {
		if m := pattern.FindStringSubmatch(script); m != nil {
			raw, found = m[1], true
			break
		}
	}
	if !found {
		// Markup the parser could not split into scripts
		if m := pattern.FindStringSubmatch(source); m != nil {
			raw, found = m[1], true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s assignment not found", models.ErrParseFailure, name)
	}

	return DecodeLiteral(raw)
}

// DecodeLiteral unescapes a JavaScript string literal body and parses it as
// a JSON object. Numbers are kept as json.Number to avoid float rounding.
func DecodeLiteral(raw string) (map[string]interface{}, error) {
	text, err := UnescapeJSLiteral(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", models.ErrParseFailure)
	}
	if obj == nil {
		// Literal was "null"
		obj = map[string]interface{}{}
	}
	return obj, nil
}

// AssetColumns returns the provenance columns of an asset
func AssetColumns(asset models.AssetReference) models.MetadataRow {
	return models.MetadataRow{
		ColumnAssetURL:   asset.URL,
		ColumnAssetPage:  asset.PageNumber,
		ColumnAssetIndex: asset.IndexOnPage,
	}
}

// inlineScripts returns the bodies of <script> elements without a src attribute
func inlineScripts(source string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil
	}

	var scripts []string
	doc.Find("script:not([src])").Each(func(i int, s *goquery.Selection) {
		if text := s.Text(); strings.TrimSpace(text) != "" {
			scripts = append(scripts, text)
		}
	})
	return scripts
}
