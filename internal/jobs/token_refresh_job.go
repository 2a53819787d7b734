package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
)

const (
	refreshAhead         = 30 * time.Minute
	refreshConcurrency   = 10
	TokenRefreshSchedule = "@every 00h10m00s"
)

type TokenRefreshJob struct {
	cr repository.CredentialsRepository
	yt service.YoutubeService
	tt service.TiktokService
	ig service.InstagramService
}

func NewTokenRefreshJob(
	cr repository.CredentialsRepository,
	yt service.YoutubeService,
	tt service.TiktokService,
	ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cr: cr,
		yt: yt,
		tt: tt,
		ig: ig,
	}
}

// RefreshTokens renews every stored token that expires within the next 30
// minutes or already has. It returns how many refreshes succeeded.
func (c *TokenRefreshJob) RefreshTokens() int {
	ctx := context.Background()

	currentTime := time.Now()
	accounts, err := c.cr.ListByTimeInterval(ctx, currentTime, currentTime.Add(refreshAhead))
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.Credentials) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var err error
			switch acc.Platform {
			case models.PlatformYoutube:
				err = c.yt.RefreshToken(ctx, acc)
			case models.PlatformInstagram:
				err = c.ig.RefreshToken(ctx, acc)
			case models.PlatformTiktok:
				err = c.tt.RefreshToken(ctx, acc)
			default:
				return
			}
			if err != nil {
				slog.Info("unable to refresh token", "user_id", acc.UserID, "platform", acc.Platform, "error", err)
				return
			}

			mu.Lock()
			refreshed++
			mu.Unlock()
		}(acc)
	}

	wg.Wait()
	if len(accounts) > 0 {
		slog.Info("token refresh complete", "event", "tokens_refreshed", "due", len(accounts), "refreshed", refreshed)
	}
	return refreshed
}
