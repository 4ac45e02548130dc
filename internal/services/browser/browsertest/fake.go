// Package browsertest provides a scriptable in-memory BrowserSession for
// exercising page automation without a Chrome process.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/cartograb/internal/interfaces"
)

// Element is a fake DOM node. OnClick runs for both native and scripted clicks.
type Element struct {
	Label    string
	Attrs    map[string]string
	Children map[string]*Element // descendants by selector
	OnClick  func() error
	ClickErr error // returned by native clicks only, ScriptClick still fires

	Clicks       int
	ScriptClicks int
}

var _ interfaces.Element = (*Element)(nil)

// NewElement creates an element with alternating attribute name/value pairs
func NewElement(label string, attrs ...string) *Element {
	e := &Element{Label: label, Attrs: map[string]string{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attrs[attrs[i]] = attrs[i+1]
	}
	return e
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.Label, nil
}

func (e *Element) Attribute(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

func (e *Element) Find(ctx context.Context, selector string) (interfaces.Element, error) {
	if child, ok := e.Children[selector]; ok {
		return child, nil
	}
	return nil, fmt.Errorf("%w: %s", interfaces.ErrElementNotFound, selector)
}

// WithChild attaches a descendant resolvable through Find
func (e *Element) WithChild(selector string, child *Element) *Element {
	if e.Children == nil {
		e.Children = map[string]*Element{}
	}
	e.Children[selector] = child
	return e
}

func (e *Element) Click(ctx context.Context) error {
	e.Clicks++
	if e.ClickErr != nil {
		return e.ClickErr
	}
	return e.fire()
}

func (e *Element) ScriptClick(ctx context.Context) error {
	e.ScriptClicks++
	return e.fire()
}

func (e *Element) fire() error {
	if e.OnClick == nil {
		return nil
	}
	return e.OnClick()
}

// Page is the static content served for one URL
type Page struct {
	Source   string
	Elements map[string][]*Element

	// NavigateErrs are returned by successive navigations to this page, then nil
	NavigateErrs []error
}

// Session is a fake single-tab browser. Elements added with Show live until
// the next navigation, which models menus and dialogs that reset on reload.
type Session struct {
	mu sync.Mutex

	Pages       map[string]*Page
	Navigations []string
	Queries     []string
	Closed      bool

	current string
	dynamic map[string][]*Element
}

var _ interfaces.BrowserSession = (*Session)(nil)

// NewSession creates an empty fake browser
func NewSession() *Session {
	return &Session{
		Pages:   map[string]*Page{},
		dynamic: map[string][]*Element{},
	}
}

// AddPage registers the content served at url
func (s *Session) AddPage(url string, page *Page) *Page {
	if page.Elements == nil {
		page.Elements = map[string][]*Element{}
	}
	s.Pages[url] = page
	return page
}

// Show makes elements resolvable for selector until the next navigation
func (s *Session) Show(selector string, elements ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dynamic[selector] = append(s.dynamic[selector], elements...)
}

// Hide removes every dynamic element of selector
func (s *Session) Hide(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dynamic, selector)
}

// QueryCount returns how many times selector was resolved
func (s *Session) QueryCount(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.Queries {
		if q == selector {
			n++
		}
	}
	return n
}

// NavigationCount returns how many times url was loaded
func (s *Session) NavigationCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.Navigations {
		if u == url {
			n++
		}
	}
	return n
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Navigations = append(s.Navigations, url)
	s.dynamic = map[string][]*Element{}
	s.current = url

	if page, ok := s.Pages[url]; ok && len(page.NavigateErrs) > 0 {
		err := page.NavigateErrs[0]
		page.NavigateErrs = page.NavigateErrs[1:]
		if err != nil {
			s.current = ""
			return err
		}
	}
	return nil
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.Pages[s.current]; ok {
		return page.Source, nil
	}
	return "<html><head></head><body></body></html>", nil
}

func (s *Session) FindOne(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	found := s.lookup(selector)
	if len(found) == 0 {
		return nil, notFound(selector, timeout)
	}
	return found[0], nil
}

func (s *Session) FindAll(ctx context.Context, selector string, timeout time.Duration) ([]interfaces.Element, error) {
	found := s.lookup(selector)
	if len(found) == 0 && timeout > 0 {
		return nil, notFound(selector, timeout)
	}
	out := make([]interfaces.Element, len(found))
	for i, e := range found {
		out[i] = e
	}
	return out, nil
}

func (s *Session) WaitClickable(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	for _, e := range s.lookup(selector) {
		if _, disabled := e.Attrs["disabled"]; !disabled {
			return e, nil
		}
	}
	return nil, notFound(selector, timeout)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// lookup resolves an exact selector, or each member of a ", " / " | " union
func (s *Session) lookup(selector string) []*Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, selector)

	if found := s.resolve(selector); len(found) > 0 {
		return found
	}

	var found []*Element
	for _, sep := range []string{", ", " | "} {
		if !strings.Contains(selector, sep) {
			continue
		}
		for _, part := range strings.Split(selector, sep) {
			found = append(found, s.resolve(part)...)
		}
	}
	return found
}

func (s *Session) resolve(selector string) []*Element {
	var found []*Element
	if page, ok := s.Pages[s.current]; ok {
		found = append(found, page.Elements[selector]...)
	}
	return append(found, s.dynamic[selector]...)
}

func notFound(selector string, timeout time.Duration) error {
	if timeout > 0 {
		return fmt.Errorf("%w: %s after %s", interfaces.ErrLocatorTimeout, selector, timeout)
	}
	return fmt.Errorf("%w: %s", interfaces.ErrElementNotFound, selector)
}
