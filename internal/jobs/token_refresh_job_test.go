package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshRecorder struct {
	mu      sync.Mutex
	users   []string
	failFor string
}

func (r *refreshRecorder) record(stored *models.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, stored.UserID+"/"+string(stored.Platform))
	if stored.UserID == r.failFor {
		return errors.New("refresh rejected")
	}
	return nil
}

type refreshInstagram struct{ *refreshRecorder }

func (r refreshInstagram) Publish(ctx context.Context, userID string, post *models.InstagramPost) (*models.PublishResult, error) {
	return nil, nil
}
func (r refreshInstagram) ValidateCredentials(ctx context.Context, userID string) bool { return true }
func (r refreshInstagram) RefreshToken(ctx context.Context, stored *models.Credentials) error {
	return r.record(stored)
}

type refreshYoutube struct{ *refreshRecorder }

func (r refreshYoutube) Publish(ctx context.Context, userID string, post *models.YouTubePost) (*models.PublishResult, error) {
	return nil, nil
}
func (r refreshYoutube) ValidateCredentials(ctx context.Context, userID string) bool { return true }
func (r refreshYoutube) RefreshToken(ctx context.Context, stored *models.Credentials) error {
	return r.record(stored)
}

type refreshTiktok struct{ *refreshRecorder }

func (r refreshTiktok) Publish(ctx context.Context, userID string, post *models.TikTokPost) (*models.PublishResult, error) {
	return nil, nil
}
func (r refreshTiktok) ValidateCredentials(ctx context.Context, userID string) bool { return true }
func (r refreshTiktok) RefreshToken(ctx context.Context, stored *models.Credentials) error {
	return r.record(stored)
}

func TestRefreshTokens(t *testing.T) {
	cr := repotest.NewCredentialsRepository()
	ctx := context.Background()

	soon := time.Now().Add(10 * time.Minute)
	expired := time.Now().Add(-time.Hour)
	distant := time.Now().Add(24 * time.Hour)

	seed := []*models.Credentials{
		{UserID: "u1", Platform: models.PlatformYoutube, AccessToken: "a", RefreshToken: "r", TokenExpiresAt: &soon},
		{UserID: "u2", Platform: models.PlatformTiktok, AccessToken: "a", RefreshToken: "r", TokenExpiresAt: &expired},
		{UserID: "u3", Platform: models.PlatformInstagram, AccessToken: "a", RefreshToken: "r", TokenExpiresAt: &soon},
		{UserID: "u4", Platform: models.PlatformInstagram, AccessToken: "a", RefreshToken: "r", TokenExpiresAt: &distant},
		{UserID: "u5", Platform: models.PlatformYoutube, AccessToken: "a", TokenExpiresAt: &soon},
	}
	for _, c := range seed {
		require.NoError(t, cr.Upsert(ctx, c))
	}

	rec := &refreshRecorder{failFor: "u3"}
	job := NewTokenRefreshJob(cr, refreshYoutube{rec}, refreshTiktok{rec}, refreshInstagram{rec})

	refreshed := job.RefreshTokens()

	assert.Equal(t, 2, refreshed)
	assert.ElementsMatch(t, []string{"u1/youtube", "u2/tiktok", "u3/instagram"}, rec.users)
}
