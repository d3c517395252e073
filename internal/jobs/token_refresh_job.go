package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/oauth"
	"github.com/dailyquill/dailyquill/internal/secrets"
)

// TokenRefreshJob sweeps stored tokens and refreshes the ones close to
// expiry, so the daily cycle rarely pays the refresh latency itself.
type TokenRefreshJob struct {
	keys         *secrets.Keyring
	orchestrator *oauth.Orchestrator
}

func NewTokenRefreshJob(keys *secrets.Keyring, orchestrator *oauth.Orchestrator) *TokenRefreshJob {
	return &TokenRefreshJob{
		keys:         keys,
		orchestrator: orchestrator,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, p := range models.Platforms {
		if p.Auth != models.AuthRedirect {
			continue
		}

		tok, err := c.keys.Token(ctx, p.ID)
		if err != nil {
			continue
		}
		if !tok.Refreshable() || !tok.Expired(30*time.Minute) {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(id models.PlatformID) {
			defer wg.Done()
			defer func() { <-semaphore }()

			// Failures wait for the user to reauthorize; the sweep
			// never retries on its own.
			if err := c.orchestrator.RefreshAhead(ctx, id, 30*time.Minute); err != nil {
				slog.Info("unable to refresh token", "platform", id, "error", err.Error())
			}
		}(p.ID)
	}

	wg.Wait()
}
