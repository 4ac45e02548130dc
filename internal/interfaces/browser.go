package interfaces

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrLocatorTimeout is returned when a bounded wait for an element expires
var ErrLocatorTimeout = errors.New("locator wait timed out")

// ErrElementNotFound is returned by FindOne when nothing matches and no wait was requested
var ErrElementNotFound = errors.New("element not found")

// Element is a handle to a node resolved from the current page state.
// Handles go stale on navigation or when the page re-renders the node.
type Element interface {
	// Text returns the visible text content
	Text(ctx context.Context) (string, error)

	// Attribute returns the attribute value captured when the element was resolved
	Attribute(name string) (string, bool)

	// Find returns the first descendant matching a CSS selector, without
	// waiting. ErrElementNotFound when nothing matches.
	Find(ctx context.Context, selector string) (Element, error)

	// Click performs a native mouse click on the element
	Click(ctx context.Context) error

	// ScriptClick invokes element.click() from page script, bypassing overlays
	// that intercept pointer events
	ScriptClick(ctx context.Context) error
}

// Locator resolves selector expressions against the current page.
// Selectors starting with "/" or "(" are XPath, everything else is CSS.
// A timeout of zero means "do not wait".
type Locator interface {
	FindOne(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	FindAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)
	WaitClickable(ctx context.Context, selector string, timeout time.Duration) (Element, error)
}

// BrowserSession is the authenticated, single-tab browser shared by every
// component of a run. It is not safe for concurrent use.
type BrowserSession interface {
	Locator

	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string) error

	// PageSource returns the full rendered markup of the current document
	PageSource(ctx context.Context) (string, error)

	// Close releases the tab and the browser process
	Close() error
}

// IsXPath reports whether a selector is an XPath expression rather than CSS
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}
