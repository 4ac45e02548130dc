// -----------------------------------------------------------------------
// Browser Session - single chromedp tab shared by the whole run
// -----------------------------------------------------------------------

package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Options configures a Session
type Options struct {
	Browser    common.BrowserConfig
	StagingDir string        // downloads land here
	PageLoad   time.Duration // bound on Navigate
	Startup    time.Duration // bound on the startup self-test
}

// Session is the chromedp implementation of interfaces.BrowserSession.
// It owns one browser process with one tab; every call is serialized by the caller.
type Session struct {
	tabCtx          context.Context
	tabCancel       context.CancelFunc
	allocatorCancel context.CancelFunc
	pageLoad        time.Duration
	stagingDir      string
	logger          arbor.ILogger
}

var _ interfaces.BrowserSession = (*Session)(nil)

// runActions executes chromedp actions during startup; replaced in tests
var runActions = chromedp.Run

// NewSession starts Chrome, verifies it responds, and routes downloads into the staging directory
func NewSession(opts Options, logger arbor.ILogger) (*Session, error) {
	startTime := time.Now()

	stagingDir, err := filepath.Abs(opts.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(
		context.Background(),
		allocatorOptions(opts.Browser)...,
	)

	tabCtx, tabCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	s := &Session{
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		allocatorCancel: allocatorCancel,
		pageLoad:        opts.PageLoad,
		stagingDir:      stagingDir,
		logger:          logger,
	}

	// The browser process is bound to the context of the first Run, so it
	// starts on the tab context and only the self-test carries a deadline
	if err := runActions(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	startup := opts.Startup
	if startup <= 0 {
		startup = 30 * time.Second
	}
	testCtx, testCancel := context.WithTimeout(tabCtx, startup)
	defer testCancel()

	// Startup test, then allow downloads without prompting
	err = runActions(testCtx,
		chromedp.Navigate("about:blank"),
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(stagingDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	s.listenDownloads()

	logger.Info().
		Bool("headless", opts.Browser.Headless).
		Str("staging_dir", stagingDir).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session started")

	return s, nil
}

// allocatorOptions builds the Chrome flags
func allocatorOptions(cfg common.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.DisableGPU),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", true),
	)

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	return opts
}

// listenDownloads logs browser download lifecycle events
func (s *Session) listenDownloads() {
	chromedp.ListenBrowser(s.tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			s.logger.Debug().
				Str("guid", e.GUID).
				Str("filename", e.SuggestedFilename).
				Msg("Download started")
		case *cdpbrowser.EventDownloadProgress:
			switch e.State {
			case cdpbrowser.DownloadProgressStateCompleted:
				s.logger.Debug().
					Str("guid", e.GUID).
					Int64("bytes", int64(e.ReceivedBytes)).
					Msg("Download completed")
			case cdpbrowser.DownloadProgressStateCanceled:
				s.logger.Warn().
					Str("guid", e.GUID).
					Msg("Download canceled by browser")
			}
		}
	})
}

// scope derives a chromedp-capable context from the tab that is also
// cancelled when the caller's ctx is done. timeout <= 0 means no deadline.
func (s *Session) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.tabCtx)
	}

	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// classify maps a chromedp error from a bounded wait onto the facade's sentinels
func (s *Session) classify(ctx, runCtx context.Context, err error, what string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", interfaces.ErrLocatorTimeout, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Navigate loads url and waits for the load event, bounded by the page-load timeout
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.scope(ctx, s.pageLoad)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: navigate %s", models.ErrPageLoadTimeout, url)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	s.logger.Trace().Str("url", url).Msg("Navigated")
	return nil
}

// PageSource returns the outer HTML of the document element
func (s *Session) PageSource(ctx context.Context) (string, error) {
	runCtx, cancel := s.scope(ctx, s.pageLoad)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", s.classify(ctx, runCtx, err, "read page source")
	}
	return html, nil
}

// FindOne returns the first element matching selector
func (s *Session) FindOne(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	elements, err := s.find(ctx, selector, timeout, true)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrElementNotFound, selector)
	}
	return elements[0], nil
}

// FindAll returns every element matching selector. With a timeout it waits
// until at least one is present; without one it may return an empty slice.
func (s *Session) FindAll(ctx context.Context, selector string, timeout time.Duration) ([]interfaces.Element, error) {
	return s.find(ctx, selector, timeout, false)
}

func (s *Session) find(ctx context.Context, selector string, timeout time.Duration, first bool) ([]interfaces.Element, error) {
	runCtx, cancel := s.scope(ctx, timeout)
	defer cancel()

	opts := []chromedp.QueryOption{queryBy(selector, first)}
	if timeout <= 0 {
		opts = append(opts, chromedp.AtLeast(0))
	}

	var nodes []*cdpNode
	if err := chromedp.Run(runCtx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, s.classify(ctx, runCtx, err, "find "+selector)
	}

	return s.wrap(nodes), nil
}

// WaitClickable waits until the element is visible and enabled
func (s *Session) WaitClickable(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	runCtx, cancel := s.scope(ctx, timeout)
	defer cancel()

	by := queryBy(selector, true)

	var nodes []*cdpNode
	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(selector, by),
		chromedp.WaitEnabled(selector, by),
		chromedp.Nodes(selector, &nodes, by),
	)
	if err != nil {
		return nil, s.classify(ctx, runCtx, err, "wait clickable "+selector)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrElementNotFound, selector)
	}

	return &element{session: s, node: nodes[0]}, nil
}

func (s *Session) wrap(nodes []*cdpNode) []interfaces.Element {
	elements := make([]interfaces.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{session: s, node: n})
	}
	return elements
}

// Close shuts down the tab and the browser process
func (s *Session) Close() error {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
	}
	s.logger.Debug().Msg("Browser session closed")
	return nil
}
