// Package repotest provides in-memory repositories that behave like the
// PostgreSQL ones, for tests of the layers above them.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

var (
	_ repository.PostRepository           = (*PostRepository)(nil)
	_ repository.PostingHistoryRepository = (*PostingHistoryRepository)(nil)
	_ repository.CredentialsRepository    = (*CredentialsRepository)(nil)
	_ repository.MediaAssetRepository     = (*MediaAssetRepository)(nil)
)

type PostRepository struct {
	mu    sync.Mutex
	posts map[string]*models.ScheduledPost

	// ListDueErr, when set, is returned by ListDue.
	ListDueErr error
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: map[string]*models.ScheduledPost{}}
}

func clonePost(p *models.ScheduledPost) *models.ScheduledPost {
	c := *p
	return &c
}

func (r *PostRepository) Create(ctx context.Context, post *models.ScheduledPost) (*models.ScheduledPost, error) {
	if post.Status == "" {
		post.Status = models.PostStatusScheduled
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := clonePost(post)
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.posts[p.ID] = p
	return clonePost(p), nil
}

// Seed stores post as is, keeping its ID, status and timestamps. Zero
// timestamps are set to the current time.
func (r *PostRepository) ReleaseStale(ctx context.Context, id string, staleBefore time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return models.ErrPostNotFound
	}
	if p.Status != models.PostStatusProcessing || !p.UpdatedAt.Before(staleBefore) {
		return models.ErrStatusConflict
	}

	p.Status = models.PostStatusFailed
	p.LastError = lastError
	p.UpdatedAt = time.Now()
	return nil
}

func (r *PostRepository) Seed(post *models.ScheduledPost) *models.ScheduledPost {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := clonePost(post)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	r.posts[p.ID] = p
	return clonePost(p)
}

func (r *PostRepository) Update(ctx context.Context, id string, patch *models.PostPatch) (*models.ScheduledPost, error) {
	if patch.Content != nil {
		if err := patch.Content.Validate(); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, models.ErrPostNotFound
	}
	if patch.ScheduledAt != nil {
		p.ScheduledAt = *patch.ScheduledAt
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	p.UpdatedAt = time.Now()
	return clonePost(p), nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return models.ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, models.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *PostRepository) filter(keep func(*models.ScheduledPost) bool, desc bool) []*models.ScheduledPost {
	r.mu.Lock()
	defer r.mu.Unlock()

	posts := []*models.ScheduledPost{}
	for _, p := range r.posts {
		if keep(p) {
			posts = append(posts, clonePost(p))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if desc {
			return posts[i].ScheduledAt.After(posts[j].ScheduledAt)
		}
		return posts[i].ScheduledAt.Before(posts[j].ScheduledAt)
	})
	return posts
}

func (r *PostRepository) GetByUserID(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool { return p.UserID == userID }, false), nil
}

func (r *PostRepository) GetUpcoming(ctx context.Context, userID string, now time.Time) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.UserID == userID && p.Status == models.PostStatusScheduled && !p.ScheduledAt.Before(now)
	}, false), nil
}

func (r *PostRepository) GetFailed(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusFailed && (userID == "" || p.UserID == userID)
	}, true), nil
}

func (r *PostRepository) ListDue(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error) {
	if r.ListDueErr != nil {
		return nil, r.ListDueErr
	}
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusScheduled && !p.ScheduledAt.Before(from) && !p.ScheduledAt.After(to)
	}, false), nil
}

func (r *PostRepository) TransitionStatus(ctx context.Context, id string, from, to models.PostStatus, lastError string) error {
	if !from.CanTransitionTo(to) {
		return models.ErrInvalidTransition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return models.ErrPostNotFound
	}
	if p.Status != from {
		return models.ErrStatusConflict
	}

	p.Status = to
	p.LastError = lastError
	if to == models.PostStatusProcessing {
		p.Attempts++
	}
	if to == models.PostStatusPublished {
		now := time.Now()
		p.PublishedAt = &now
	}
	p.UpdatedAt = time.Now()
	return nil
}

type PostingHistoryRepository struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func NewPostingHistoryRepository() *PostingHistoryRepository {
	return &PostingHistoryRepository{}
}

func (r *PostingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := *ph
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	r.entries = append(r.entries, &e)
	return e.ID, nil
}

func (r *PostingHistoryRepository) GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := []*models.PostingHistory{}
	for _, e := range r.entries {
		if e.PostID == postID {
			c := *e
			history = append(history, &c)
		}
	}
	return history, nil
}

type credentialsKey struct {
	userID   string
	platform models.Platform
}

type CredentialsRepository struct {
	mu    sync.Mutex
	creds map[credentialsKey]*models.Credentials
}

func NewCredentialsRepository() *CredentialsRepository {
	return &CredentialsRepository{creds: map[credentialsKey]*models.Credentials{}}
}

func (r *CredentialsRepository) Get(ctx context.Context, userID string, platform models.Platform) (*models.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.creds[credentialsKey{userID, platform}]
	if !ok {
		return nil, models.ErrCredentialsNotFound
	}
	cc := *c
	return &cc, nil
}

func (r *CredentialsRepository) Upsert(ctx context.Context, creds *models.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *creds
	c.UpdatedAt = time.Now()
	if prev, ok := r.creds[credentialsKey{c.UserID, c.Platform}]; ok {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = c.UpdatedAt
	}
	r.creds[credentialsKey{c.UserID, c.Platform}] = &c
	return nil
}

func (r *CredentialsRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds := []*models.Credentials{}
	for k, c := range r.creds {
		if k.userID != userID {
			continue
		}
		creds = append(creds, &models.Credentials{
			UserID:         c.UserID,
			Platform:       c.Platform,
			AccountID:      c.AccountID,
			TokenExpiresAt: c.TokenExpiresAt,
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Platform < creds[j].Platform })
	return creds, nil
}

func (r *CredentialsRepository) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var creds []*models.Credentials
	for _, c := range r.creds {
		if c.RefreshToken == "" || c.TokenExpiresAt == nil || c.TokenExpiresAt.After(finalTime) {
			continue
		}
		cc := *c
		creds = append(creds, &cc)
	}
	return creds, nil
}

func (r *CredentialsRepository) SetToken(ctx context.Context, userID string, platform models.Platform, oldAccessToken string, creds *models.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.creds[credentialsKey{userID, platform}]
	if !ok || c.AccessToken != oldAccessToken {
		return models.ErrCredentialsNotFound
	}
	if creds.AccessToken != "" {
		c.AccessToken = creds.AccessToken
	}
	if creds.RefreshToken != "" {
		c.RefreshToken = creds.RefreshToken
	}
	if creds.TokenExpiresAt != nil {
		c.TokenExpiresAt = creds.TokenExpiresAt
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (r *CredentialsRepository) Remove(ctx context.Context, userID string, platform models.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := credentialsKey{userID, platform}
	if _, ok := r.creds[k]; !ok {
		return models.ErrCredentialsNotFound
	}
	delete(r.creds, k)
	return nil
}

type MediaAssetRepository struct {
	mu     sync.Mutex
	assets map[string]*models.MediaAsset
}

func NewMediaAssetRepository() *MediaAssetRepository {
	return &MediaAssetRepository{assets: map[string]*models.MediaAsset{}}
}

func (r *MediaAssetRepository) Create(ctx context.Context, ma *models.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ma.CreatedAt = time.Now()
	a := *ma
	r.assets[a.ID] = &a
	return nil
}

func (r *MediaAssetRepository) GetByID(ctx context.Context, id string) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return nil, models.ErrAssetNotFound
	}
	c := *a
	return &c, nil
}

func (r *MediaAssetRepository) ListByUserID(ctx context.Context, userID string) ([]*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	assets := []*models.MediaAsset{}
	for _, a := range r.assets {
		if a.UserID == userID {
			c := *a
			assets = append(assets, &c)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].CreatedAt.After(assets[j].CreatedAt) })
	return assets, nil
}

func (r *MediaAssetRepository) Remove(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok || a.UserID != userID {
		return models.ErrAssetNotFound
	}
	delete(r.assets, id)
	return nil
}
