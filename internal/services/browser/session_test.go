package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// detachedSession has no browser behind it; only the pure helpers are usable
func detachedSession() *Session {
	return &Session{
		tabCtx:   context.Background(),
		pageLoad: time.Second,
		logger:   arbor.NewLogger(),
	}
}

func TestElement_Attribute(t *testing.T) {
	e := &element{node: &cdp.Node{Attributes: []string{
		"href", "/viz/abc/map",
		"class", "card map-card",
		"disabled", "",
	}}}

	href, ok := e.Attribute("href")
	assert.True(t, ok)
	assert.Equal(t, "/viz/abc/map", href)

	disabled, ok := e.Attribute("disabled")
	assert.True(t, ok)
	assert.Empty(t, disabled)

	_, ok = e.Attribute("title")
	assert.False(t, ok)
}

func TestSession_Classify(t *testing.T) {
	s := detachedSession()

	t.Run("Deadline becomes locator timeout", func(t *testing.T) {
		runCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-runCtx.Done()

		err := s.classify(context.Background(), runCtx, context.DeadlineExceeded, "find .x")
		assert.ErrorIs(t, err, interfaces.ErrLocatorTimeout)
	})

	t.Run("Caller cancellation wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.classify(ctx, context.Background(), context.DeadlineExceeded, "find .x")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Other errors are wrapped", func(t *testing.T) {
		boom := errors.New("node detached")
		err := s.classify(context.Background(), context.Background(), boom, "click")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, interfaces.ErrLocatorTimeout)
	})

	t.Run("Nil stays nil", func(t *testing.T) {
		assert.NoError(t, s.classify(context.Background(), context.Background(), nil, "click"))
	})
}

func TestSession_ScopeFollowsCaller(t *testing.T) {
	s := detachedSession()
	ctx, cancel := context.WithCancel(context.Background())

	runCtx, release := s.scope(ctx, 0)
	defer release()

	cancel()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("scoped context was not cancelled with the caller")
	}
}

func TestSession_ScopeTimeout(t *testing.T) {
	s := detachedSession()

	runCtx, release := s.scope(context.Background(), 10*time.Millisecond)
	defer release()

	<-runCtx.Done()
	assert.ErrorIs(t, runCtx.Err(), context.DeadlineExceeded)
}

func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	minimal := allocatorOptions(common.BrowserConfig{Headless: true})
	assert.Len(t, minimal, base+5)

	full := allocatorOptions(common.BrowserConfig{
		Headless:     false,
		WindowWidth:  1280,
		WindowHeight: 800,
		UserAgent:    "cartograb-test",
		ExecPath:     "/usr/bin/chromium",
		UserDataDir:  "/tmp/profile",
	})
	assert.Len(t, full, base+9)
}

func TestLogin_RequiresCredentials(t *testing.T) {
	s := detachedSession()

	err := s.Login(context.Background(), "https://example.carto.com", common.AuthConfig{Username: "someone"},
		common.NewDefaultConfig().Selectors.Login, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSessionUnavailable)
}

type startupCall struct {
	hasDeadline bool
	actions     int
}

// stubStartup replaces the startup runner for the duration of the test
func stubStartup(t *testing.T, fail error) *[]startupCall {
	t.Helper()
	var calls []startupCall
	original := runActions
	runActions = func(ctx context.Context, actions ...chromedp.Action) error {
		_, ok := ctx.Deadline()
		calls = append(calls, startupCall{hasDeadline: ok, actions: len(actions)})
		if fail != nil && len(calls) == 2 {
			return fail
		}
		return nil
	}
	t.Cleanup(func() { runActions = original })
	return &calls
}

func TestNewSession_StartsBrowserWithoutDeadline(t *testing.T) {
	calls := stubStartup(t, nil)

	s, err := NewSession(Options{
		Browser:    common.BrowserConfig{Headless: true},
		StagingDir: t.TempDir(),
		Startup:    5 * time.Second,
	}, arbor.NewLogger())
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, *calls, 2)

	// The first Run allocates the browser and must not be bounded
	assert.False(t, (*calls)[0].hasDeadline)
	assert.Equal(t, 0, (*calls)[0].actions)

	assert.True(t, (*calls)[1].hasDeadline)
	assert.Equal(t, 2, (*calls)[1].actions)

	// The tab outlives NewSession
	assert.NoError(t, s.tabCtx.Err())
}

func TestNewSession_StartupTestFailureCloses(t *testing.T) {
	boom := errors.New("target crashed")
	stubStartup(t, boom)

	s, err := NewSession(Options{StagingDir: t.TempDir()}, arbor.NewLogger())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "startup test")
}

func TestElement_FindRejectsXPath(t *testing.T) {
	e := &element{session: detachedSession(), node: &cdp.Node{}}

	_, err := e.Find(context.Background(), "//h3[@class='card-title']")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XPath")
}
