package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/cartograb/internal/interfaces"
)

type cdpNode = cdp.Node

// element wraps a resolved DOM node
type element struct {
	session *Session
	node    *cdp.Node
}

// queryBy picks the chromedp query strategy for a selector expression
func queryBy(selector string, first bool) chromedp.QueryOption {
	if interfaces.IsXPath(selector) {
		return chromedp.BySearch
	}
	if first {
		return chromedp.ByQuery
	}
	return chromedp.ByQueryAll
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

// Text returns the element's textContent, trimmed
func (e *element) Text(ctx context.Context) (string, error) {
	runCtx, cancel := e.session.scope(ctx, e.session.pageLoad)
	defer cancel()

	var text string
	if err := chromedp.Run(runCtx, chromedp.TextContent(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", e.session.classify(ctx, runCtx, err, "read text")
	}
	return strings.TrimSpace(text), nil
}

// Attribute returns an attribute as captured at resolution time
func (e *element) Attribute(name string) (string, bool) {
	e.node.RLock()
	defer e.node.RUnlock()

	for i := 0; i+1 < len(e.node.Attributes); i += 2 {
		if e.node.Attributes[i] == name {
			return e.node.Attributes[i+1], true
		}
	}
	return "", false
}

// Find queries the node's subtree. XPath is not supported here because
// DOM.performSearch always searches the whole document.
func (e *element) Find(ctx context.Context, selector string) (interfaces.Element, error) {
	if interfaces.IsXPath(selector) {
		return nil, fmt.Errorf("scoped find does not support XPath: %s", selector)
	}

	runCtx, cancel := e.session.scope(ctx, e.session.pageLoad)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(runCtx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQuery, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, e.session.classify(ctx, runCtx, err, "find "+selector)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrElementNotFound, selector)
	}
	return &element{session: e.session, node: nodes[0]}, nil
}

// Click scrolls the node into view and dispatches a mouse click at its centre
func (e *element) Click(ctx context.Context) error {
	runCtx, cancel := e.session.scope(ctx, e.session.pageLoad)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.MouseClickNode(e.node)); err != nil {
		return e.session.classify(ctx, runCtx, err, "click")
	}
	return nil
}

// ScriptClick calls HTMLElement.click() on the node from page script
func (e *element) ScriptClick(ctx context.Context) error {
	runCtx, cancel := e.session.scope(ctx, e.session.pageLoad)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		_, exception, err := runtime.CallFunctionOn(`function() { this.click(); }`).
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		return nil
	}))
	if err != nil {
		return e.session.classify(ctx, runCtx, err, "script click")
	}
	return nil
}
