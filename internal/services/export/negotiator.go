// -----------------------------------------------------------------------
// Export Negotiator - per-asset format discovery, fallback and download
// -----------------------------------------------------------------------

package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Negotiator drives the export dialog of one asset at a time.
// It shares the browser tab with the paginator and must not run concurrently.
type Negotiator struct {
	session      interfaces.BrowserSession
	materializer interfaces.Materializer
	selectors    common.SelectorsConfig
	outputDir    string
	pageLoad     time.Duration
	element      time.Duration
	confirm      time.Duration
	settle       time.Duration
	logger       arbor.ILogger
}

var _ interfaces.ExportNegotiator = (*Negotiator)(nil)

// NewNegotiator creates a negotiator writing under config.Paths.OutputDir
func NewNegotiator(session interfaces.BrowserSession, materializer interfaces.Materializer, config *common.Config, logger arbor.ILogger) *Negotiator {
	return &Negotiator{
		session:      session,
		materializer: materializer,
		selectors:    config.Selectors,
		outputDir:    config.Paths.OutputDir,
		pageLoad:     config.Timeouts.PageLoad.Duration,
		element:      config.Timeouts.Element.Duration,
		confirm:      config.Timeouts.Confirm.Duration,
		settle:       config.Timeouts.DownloadSettle.Duration,
		logger:       logger,
	}
}

// ExportAsset tries every format in priority order and returns what happened.
// Unavailable formats and failed attempts are reported in the result; the
// error return is reserved for faults that stop the negotiation (the page or
// the export control could not be reached, or ctx was cancelled). The result
// is non-nil even when an error is returned.
func (n *Negotiator) ExportAsset(ctx context.Context, asset models.AssetReference) (*models.AssetExport, error) {
	sel := n.selectors.For(asset.Kind)
	result := &models.AssetExport{Asset: asset, Name: asset.Label()}

	if err := n.session.Navigate(ctx, asset.URL); err != nil {
		return result, fmt.Errorf("failed to open asset page: %w", err)
	}

	result.Name = n.displayName(ctx, sel, asset)
	result.Folder = filepath.Join(n.outputDir, string(asset.Kind), SanitizeName(result.Name))

	menuOpen := false
	primarySucceeded := false

	priority := models.ExportPriority()
	for i, format := range priority {
		if format == models.FallbackFormat && primarySucceeded {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !menuOpen {
			if err := n.openExport(ctx, sel); err != nil {
				return result, err
			}
			menuOpen = true
		}

		// Options are replaced every time the menu opens, never reuse a handle
		option, state := n.resolveOption(ctx, sel, format)
		if option == nil {
			n.logger.Debug().
				Str("asset", result.Name).
				Str("format", format.String()).
				Str("state", string(state)).
				Msg("Export format not offered")
			result.Skipped = append(result.Skipped, models.FormatSkip{Format: format, Outcome: state})
			continue
		}

		attempt := n.attempt(ctx, sel, asset, format, option, result.Folder)
		result.Attempts = append(result.Attempts, attempt)
		menuOpen = false

		n.logger.Info().
			Str("asset", result.Name).
			Str("format", format.String()).
			Str("outcome", string(attempt.Outcome)).
			Str("file", attempt.File).
			Msg("Export attempt finished")

		if attempt.Outcome == models.OutcomeSuccess {
			if format != models.FallbackFormat {
				primarySucceeded = true
			}
			continue
		}

		if !pending(priority[i+1:], primarySucceeded) {
			break
		}

		// Reset whatever dialog state the failed attempt left behind
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := n.session.Navigate(ctx, asset.URL); err != nil {
			return result, fmt.Errorf("failed to reload asset page after %s attempt: %w", format, err)
		}
	}

	return result, nil
}

// pending reports whether any later format would still be attempted
func pending(rest []models.ExportFormat, primarySucceeded bool) bool {
	for _, format := range rest {
		if format != models.FallbackFormat || !primarySucceeded {
			return true
		}
	}
	return false
}

// displayName prefers the asset page title, then the listing caption, then the placeholder
func (n *Negotiator) displayName(ctx context.Context, sel common.KindSelectors, asset models.AssetReference) string {
	if sel.Title != "" {
		if el, err := n.session.FindOne(ctx, sel.Title, n.pageLoad); err == nil {
			if text, err := el.Text(ctx); err == nil {
				if text = strings.Join(strings.Fields(text), " "); text != "" {
					return text
				}
			}
		} else {
			n.logger.Debug().Err(err).Str("url", asset.URL).Msg("Asset title not found")
		}
	}
	return asset.Label()
}

// openExport clicks through the kind's export control sequence
func (n *Negotiator) openExport(ctx context.Context, sel common.KindSelectors) error {
	for i, selector := range sel.OpenExport {
		el, err := n.session.WaitClickable(ctx, selector, n.element)
		if err != nil {
			if errors.Is(err, interfaces.ErrLocatorTimeout) || errors.Is(err, interfaces.ErrElementNotFound) {
				return fmt.Errorf("%w: export control step %d (%s) never became clickable", models.ErrExportUnavailable, i+1, selector)
			}
			return fmt.Errorf("failed to open export control: %w", err)
		}
		if err := n.click(ctx, el); err != nil {
			return fmt.Errorf("failed to click export control step %d: %w", i+1, err)
		}
	}

	// Give the option list a chance to render before probing individual formats
	if _, err := n.session.FindOne(ctx, n.anyOption(sel), n.element); err != nil {
		n.logger.Debug().Err(err).Msg("No export format options rendered")
	}
	return nil
}

// resolveOption returns the live option element, or nil with the reason it cannot be used
func (n *Negotiator) resolveOption(ctx context.Context, sel common.KindSelectors, format models.ExportFormat) (interfaces.Element, models.AttemptOutcome) {
	option, err := n.session.FindOne(ctx, optionSelector(sel, format), 0)
	if err != nil {
		return nil, models.OutcomeAbsent
	}
	if isDisabled(option, sel.DisabledClass) {
		return nil, models.OutcomeDisabled
	}
	return option, ""
}

// attempt selects a format, confirms the download and materializes the file
func (n *Negotiator) attempt(ctx context.Context, sel common.KindSelectors, asset models.AssetReference, format models.ExportFormat, option interfaces.Element, folder string) models.DownloadAttempt {
	result := models.DownloadAttempt{Asset: asset, Format: format}
	fail := func(outcome models.AttemptOutcome, reason string) models.DownloadAttempt {
		result.Outcome = outcome
		result.Reason = reason
		return result
	}

	if err := n.click(ctx, option); err != nil {
		return fail(models.OutcomeError, fmt.Sprintf("select %s: %v", format, err))
	}

	confirm, err := n.session.WaitClickable(ctx, sel.Confirm, n.confirm)
	if err != nil {
		if errors.Is(err, interfaces.ErrLocatorTimeout) {
			return fail(models.OutcomeTimeout, fmt.Sprintf("%v after %s", models.ErrConfirmTimeout, n.confirm))
		}
		return fail(models.OutcomeError, fmt.Sprintf("wait for confirm: %v", err))
	}

	if err := n.click(ctx, confirm); err != nil {
		return fail(models.OutcomeError, fmt.Sprintf("confirm: %v", err))
	}

	if err := common.Sleep(ctx, n.settle); err != nil {
		return fail(models.OutcomeError, fmt.Sprintf("download settle: %v", err))
	}

	// One outstanding download at a time: materialize before the next format
	file, err := n.materializer.Materialize(ctx, folder)
	if err != nil {
		return fail(models.OutcomeError, fmt.Sprintf("materialize: %v", err))
	}

	result.Outcome = models.OutcomeSuccess
	result.File = file
	return result
}

// click tries a native click first and falls back to a scripted click for
// overlays that swallow pointer events
func (n *Negotiator) click(ctx context.Context, el interfaces.Element) error {
	err := el.Click(ctx)
	if err == nil {
		return nil
	}
	n.logger.Debug().Err(err).Msg("Native click failed, falling back to scripted click")
	if scriptErr := el.ScriptClick(ctx); scriptErr != nil {
		return fmt.Errorf("%v; scripted click: %w", err, scriptErr)
	}
	return nil
}

func (n *Negotiator) anyOption(sel common.KindSelectors) string {
	sep := ", "
	if interfaces.IsXPath(sel.FormatOption) {
		sep = " | "
	}
	parts := make([]string, 0, 3)
	for _, format := range models.ExportPriority() {
		parts = append(parts, optionSelector(sel, format))
	}
	return strings.Join(parts, sep)
}

func optionSelector(sel common.KindSelectors, format models.ExportFormat) string {
	return fmt.Sprintf(sel.FormatOption, format.Key())
}

// isDisabled checks the disabled attribute, aria-disabled and the configured class
func isDisabled(el interfaces.Element, disabledClass string) bool {
	if _, ok := el.Attribute("disabled"); ok {
		return true
	}
	if v, ok := el.Attribute("aria-disabled"); ok && strings.EqualFold(v, "true") {
		return true
	}
	if disabledClass == "" {
		return false
	}
	class, _ := el.Attribute("class")
	for _, c := range strings.Fields(class) {
		if c == disabledClass {
			return true
		}
	}
	return false
}
