package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/models"
)

// Login runs the fixed sign-in sequence and waits for the dashboard marker.
// Any failure here is fatal to the run.
func (s *Session) Login(ctx context.Context, baseURL string, auth common.AuthConfig, sel common.LoginSelectors, timeout time.Duration) error {
	if auth.Username == "" || auth.Password == "" {
		return fmt.Errorf("%w: username and password are required", models.ErrSessionUnavailable)
	}

	runCtx, cancel := s.scope(ctx, timeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.Navigate(baseURL),
	}
	if sel.LoginLink != "" {
		tasks = append(tasks,
			chromedp.WaitVisible(sel.LoginLink, queryBy(sel.LoginLink, true)),
			chromedp.Click(sel.LoginLink, queryBy(sel.LoginLink, true)),
		)
	}
	tasks = append(tasks,
		chromedp.WaitVisible(sel.Email, queryBy(sel.Email, true)),
		chromedp.SendKeys(sel.Email, auth.Username, queryBy(sel.Email, true)),
		chromedp.SendKeys(sel.Password, auth.Password, queryBy(sel.Password, true)),
		chromedp.Click(sel.Submit, queryBy(sel.Submit, true)),
		chromedp.WaitReady(sel.Dashboard, queryBy(sel.Dashboard, true)),
	)

	s.logger.Info().
		Str("url", baseURL).
		Str("username", auth.Username).
		Msg("Logging in")

	if err := chromedp.Run(runCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: login failed: %v", models.ErrSessionUnavailable, err)
	}

	s.logger.Info().Msg("Authenticated session established")
	return nil
}
