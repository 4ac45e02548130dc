// -----------------------------------------------------------------------
// Catalog Paginator - enumerates asset links one listing page at a time
// -----------------------------------------------------------------------

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Paginator walks the dashboard listing of one CARTO account
type Paginator struct {
	session   interfaces.BrowserSession
	catalog   common.CatalogConfig
	selectors common.SelectorsConfig
	pageLoad  time.Duration
	retry     *RetryPolicy
	logger    arbor.ILogger
}

var _ interfaces.CatalogPaginator = (*Paginator)(nil)

// NewPaginator creates a paginator bound to an authenticated session
func NewPaginator(session interfaces.BrowserSession, config *common.Config, logger arbor.ILogger) *Paginator {
	return &Paginator{
		session:   session,
		catalog:   config.Catalog,
		selectors: config.Selectors,
		pageLoad:  config.Timeouts.PageLoad.Duration,
		retry:     NewRetryPolicy(config.Catalog.PageAttempts),
		logger:    logger,
	}
}

// WithRetryPolicy replaces the page-load retry policy
func (p *Paginator) WithRetryPolicy(policy *RetryPolicy) *Paginator {
	p.retry = policy
	return p
}

// NextPage loads listing page pageNumber and returns its assets in on-screen order.
// A page that rendered its empty state returns an empty CatalogPage; a page that
// rendered neither rows nor the empty state returns ErrPageLoadTimeout.
func (p *Paginator) NextPage(ctx context.Context, kind models.AssetKind, pageNumber int) (*models.CatalogPage, error) {
	pageURL, err := p.PageURL(kind, pageNumber)
	if err != nil {
		return nil, err
	}

	var page *models.CatalogPage
	err = p.retry.ExecuteWithRetry(ctx, p.logger, func() error {
		var loadErr error
		page, loadErr = p.load(ctx, kind, pageNumber, pageURL)
		return loadErr
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("kind", string(kind)).
		Int("page", pageNumber).
		Int("assets", len(page.Assets)).
		Msg("Catalog page loaded")

	return page, nil
}

// PageURL builds the listing URL for a page, e.g. https://x.carto.com/dashboard/maps/?page=3
func (p *Paginator) PageURL(kind models.AssetKind, pageNumber int) (string, error) {
	base, err := url.Parse(p.catalog.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", p.catalog.BaseURL, err)
	}

	listing, err := base.Parse(p.catalog.ListingPath(kind))
	if err != nil {
		return "", fmt.Errorf("invalid listing path for %s: %w", kind, err)
	}

	query := listing.Query()
	query.Set(p.catalog.PageParam, strconv.Itoa(pageNumber))
	listing.RawQuery = query.Encode()
	return listing.String(), nil
}

func (p *Paginator) load(ctx context.Context, kind models.AssetKind, pageNumber int, pageURL string) (*models.CatalogPage, error) {
	sel := p.selectors.For(kind)

	if err := p.session.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}

	// Rows or the empty-state marker, whichever renders first
	if _, err := p.session.FindOne(ctx, readySelector(sel), p.pageLoad); err != nil {
		if errors.Is(err, interfaces.ErrLocatorTimeout) {
			return nil, fmt.Errorf("%w: page %d of %s did not render within %s",
				models.ErrPageLoadTimeout, pageNumber, kind, p.pageLoad)
		}
		return nil, fmt.Errorf("failed to wait for page %d: %w", pageNumber, err)
	}

	links, err := p.session.FindAll(ctx, sel.AssetLink, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets on page %d: %w", pageNumber, err)
	}

	page := &models.CatalogPage{PageNumber: pageNumber}
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		href, ok := link.Attribute("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		assetURL, err := p.resolve(href)
		if err != nil {
			p.logger.Warn().Str("href", href).Err(err).Msg("Skipping unparseable asset link")
			continue
		}
		if seen[assetURL] {
			continue
		}
		seen[assetURL] = true

		page.Assets = append(page.Assets, models.AssetReference{
			URL:         assetURL,
			Kind:        kind,
			PageNumber:  pageNumber,
			IndexOnPage: len(page.Assets) + 1,
			Title:       caption(ctx, link, sel.Caption),
		})
	}

	return page, nil
}

// resolve makes an href absolute against the base url
func (p *Paginator) resolve(href string) (string, error) {
	base, err := url.Parse(p.catalog.BaseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// caption names a listing row: the configured caption element, then the
// link's title attribute, then the link text. The link text is only used
// without a caption selector, since card links wrap dates and view counts too.
func caption(ctx context.Context, link interfaces.Element, captionSelector string) string {
	if captionSelector != "" {
		if el, err := link.Find(ctx, captionSelector); err == nil {
			if text := visibleText(ctx, el); text != "" {
				return text
			}
		}
	}
	if title, ok := link.Attribute("title"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if captionSelector != "" {
		return ""
	}
	return visibleText(ctx, link)
}

func visibleText(ctx context.Context, el interfaces.Element) string {
	text, err := el.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// readySelector matches either an asset row or the empty-state marker.
// CSS and XPath cannot be mixed in one expression, so a mixed pair waits on rows only.
func readySelector(sel common.KindSelectors) string {
	if sel.EmptyState == "" {
		return sel.AssetLink
	}
	linkXPath, emptyXPath := interfaces.IsXPath(sel.AssetLink), interfaces.IsXPath(sel.EmptyState)
	switch {
	case !linkXPath && !emptyXPath:
		return sel.AssetLink + ", " + sel.EmptyState
	case linkXPath && emptyXPath:
		return sel.AssetLink + " | " + sel.EmptyState
	default:
		return sel.AssetLink
	}
}
