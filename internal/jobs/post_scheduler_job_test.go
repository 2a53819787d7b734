package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository/repotest"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakePublisher claims and settles posts the way the real publisher does,
// failing the ones listed in fail.
type fakePublisher struct {
	posts *repotest.PostRepository

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	delay time.Duration
}

func newFakePublisher(posts *repotest.PostRepository) *fakePublisher {
	return &fakePublisher{posts: posts, calls: map[string]int{}, fail: map[string]bool{}}
}

func (p *fakePublisher) PublishPost(ctx context.Context, post *models.ScheduledPost) error {
	if err := p.posts.TransitionStatus(ctx, post.ID, post.Status, models.PostStatusProcessing, ""); err != nil {
		return err
	}

	p.mu.Lock()
	p.calls[post.ID]++
	fail := p.fail[post.ID]
	p.mu.Unlock()

	time.Sleep(p.delay)
	if fail {
		p.posts.TransitionStatus(ctx, post.ID, models.PostStatusProcessing, models.PostStatusFailed, "failed")
		return &models.PublishError{PostID: post.ID, Platform: post.Platform, Err: errors.New("upstream")}
	}
	return p.posts.TransitionStatus(ctx, post.ID, models.PostStatusProcessing, models.PostStatusPublished, "")
}

func (p *fakePublisher) ValidateCredentials(ctx context.Context, userID string, platform models.Platform) bool {
	return true
}

func (p *fakePublisher) callsFor(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func seedPost(posts *repotest.PostRepository, at time.Time) *models.ScheduledPost {
	return posts.Seed(&models.ScheduledPost{
		UserID:      "user-1",
		Platform:    models.PlatformInstagram,
		ScheduledAt: at,
		Status:      models.PostStatusScheduled,
		Content: models.NewContent(&models.InstagramPost{
			Type:  models.InstagramFeed,
			Media: []string{"https://cdn.example.com/a.jpg"},
		}),
	})
}

func newTestScheduler(posts *repotest.PostRepository, pub service.PublisherService) *PostScheduler {
	s := NewPostScheduler(config.Scheduler{Interval: time.Minute, Window: 5 * time.Minute, Concurrency: 4}, posts, pub)
	s.now = func() time.Time { return scanNow }
	return s
}

func TestRunOncePublishesDuePostsOnce(t *testing.T) {
	posts := repotest.NewPostRepository()
	pub := newFakePublisher(posts)
	s := newTestScheduler(posts, pub)

	due1 := seedPost(posts, scanNow.Add(time.Minute))
	due2 := seedPost(posts, scanNow.Add(4*time.Minute))
	later := seedPost(posts, scanNow.Add(10*time.Minute))
	past := seedPost(posts, scanNow.Add(-time.Minute))

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanSummary{Due: 2, Published: 2}, summary)

	assert.Equal(t, 1, pub.callsFor(due1.ID))
	assert.Equal(t, 1, pub.callsFor(due2.ID))
	assert.Zero(t, pub.callsFor(later.ID))
	assert.Zero(t, pub.callsFor(past.ID))

	summary, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanSummary{}, summary)
	assert.Equal(t, 1, pub.callsFor(due1.ID))
}

func TestRunOnceSiblingsIndependent(t *testing.T) {
	posts := repotest.NewPostRepository()
	pub := newFakePublisher(posts)
	s := newTestScheduler(posts, pub)

	bad := seedPost(posts, scanNow.Add(time.Minute))
	good1 := seedPost(posts, scanNow.Add(2*time.Minute))
	good2 := seedPost(posts, scanNow.Add(3*time.Minute))
	pub.fail[bad.ID] = true

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Due)
	assert.Equal(t, 2, summary.Published)
	assert.Equal(t, 1, summary.Failed)

	for _, id := range []string{good1.ID, good2.ID} {
		p, _ := posts.GetByID(context.Background(), id)
		assert.Equal(t, models.PostStatusPublished, p.Status)
	}
	p, _ := posts.GetByID(context.Background(), bad.ID)
	assert.Equal(t, models.PostStatusFailed, p.Status)
}

func TestConcurrentScansClaimEachPostOnce(t *testing.T) {
	posts := repotest.NewPostRepository()
	pub := newFakePublisher(posts)
	pub.delay = 10 * time.Millisecond
	s := newTestScheduler(posts, pub)

	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, seedPost(posts, scanNow.Add(time.Duration(i+1)*time.Second)).ID)
	}

	var wg sync.WaitGroup
	var published atomic.Int32
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := s.RunOnce(context.Background())
			assert.NoError(t, err)
			published.Add(int32(summary.Published))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(len(ids)), published.Load())

	for _, id := range ids {
		assert.Equal(t, 1, pub.callsFor(id))
	}
}

func TestRunOnceQueryFailure(t *testing.T) {
	posts := repotest.NewPostRepository()
	posts.ListDueErr = &models.StoreError{Op: "list due posts", Err: errors.New("connection refused")}
	s := newTestScheduler(posts, newFakePublisher(posts))

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStopIdempotent(t *testing.T) {
	posts := repotest.NewPostRepository()
	s := newTestScheduler(posts, newFakePublisher(posts))

	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start())
	first := s.cron
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Same(t, first, s.cron)
	assert.Len(t, s.cron.Entries(), 1)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}

func TestSchedulerScansAfterRestart(t *testing.T) {
	posts := repotest.NewPostRepository()
	pub := newFakePublisher(posts)
	s := NewPostScheduler(config.Scheduler{Interval: time.Second, Window: 5 * time.Minute, Concurrency: 4}, posts, pub)
	s.now = func() time.Time { return scanNow }

	require.NoError(t, s.Start())
	s.Stop()

	post := seedPost(posts, scanNow.Add(time.Minute))

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		stored, _ := posts.GetByID(context.Background(), post.ID)
		return stored.Status == models.PostStatusPublished
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, pub.callsFor(post.ID))
}

func TestRetryFailedPost(t *testing.T) {
	posts := repotest.NewPostRepository()
	pub := newFakePublisher(posts)
	s := newTestScheduler(posts, pub)
	ctx := context.Background()

	post := seedPost(posts, scanNow.Add(time.Minute))
	pub.fail[post.ID] = true
	s.RunOnce(ctx)

	failed, err := s.GetFailedPosts(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, failed, 1)

	pub.fail[post.ID] = false
	require.NoError(t, s.RetryFailedPost(ctx, post.ID))
	assert.Equal(t, 2, pub.callsFor(post.ID))

	p, _ := posts.GetByID(ctx, post.ID)
	assert.Equal(t, models.PostStatusPublished, p.Status)
	assert.Equal(t, 2, p.Attempts)

	assert.ErrorIs(t, s.RetryFailedPost(ctx, post.ID), models.ErrInvalidTransition)
	assert.ErrorIs(t, s.RetryFailedPost(ctx, "missing"), models.ErrPostNotFound)
}

const testSecretKey = "0123456789abcdef0123456789abcdef"

// instagramScenario wires the real publisher and Instagram client against a
// fake Graph API.
func instagramScenario(t *testing.T, publishStatus int) (*PostScheduler, *repotest.PostRepository, *[]string) {
	t.Helper()

	var (
		mu    sync.Mutex
		steps []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ig-1/media", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		steps = append(steps, "media")
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
	})
	mux.HandleFunc("POST /ig-1/media_publish", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		steps = append(steps, "media_publish")
		mu.Unlock()
		w.WriteHeader(publishStatus)
		if publishStatus == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"id": "media-1"})
			return
		}
		w.Write([]byte(`{"error":{"message":"internal detail","code":2}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.Config{SecretKey: testSecretKey, PlatformAPI: config.PlatformAPI{InstagramGraphURL: srv.URL}}

	cr := repotest.NewCredentialsRepository()
	token, err := utils.Encrypt([]byte("ig-token"), []byte(testSecretKey))
	require.NoError(t, err)
	require.NoError(t, cr.Upsert(context.Background(), &models.Credentials{
		UserID: "user-1", Platform: models.PlatformInstagram, AccountID: "ig-1", AccessToken: token,
	}))

	posts := repotest.NewPostRepository()
	history := repotest.NewPostingHistoryRepository()
	ig := service.NewInstagramService(cfg, srv.Client(), cr)
	yt := service.NewYoutubeService(cfg, srv.Client(), cr)
	tt := service.NewTiktokService(cfg, srv.Client(), cr)
	pub := service.NewPublisherService(posts, history, ig, yt, tt)

	return newTestScheduler(posts, pub), posts, &steps
}

func TestInstagramScenarioPublished(t *testing.T) {
	s, posts, steps := instagramScenario(t, http.StatusOK)
	post := seedPost(posts, scanNow.Add(time.Minute))

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Published)

	stored, _ := posts.GetByID(context.Background(), post.ID)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
	assert.Equal(t, []string{"media", "media_publish"}, *steps)
}

func TestInstagramScenarioPublishStepFails(t *testing.T) {
	s, posts, steps := instagramScenario(t, http.StatusInternalServerError)
	post := seedPost(posts, scanNow.Add(time.Minute))

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"media", "media_publish"}, *steps)

	failed, err := s.GetFailedPosts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, post.ID, failed[0].ID)
	assert.NotContains(t, failed[0].LastError, "internal detail")
}
