package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository/repotest"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	mu           sync.Mutex
	containers   []transfer.InstagramContainerRequest
	published    []string
	publishFails bool
}

func (g *fakeGraph) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ig-1/media", func(w http.ResponseWriter, r *http.Request) {
		var req transfer.InstagramContainerRequest
		json.NewDecoder(r.Body).Decode(&req)

		g.mu.Lock()
		g.containers = append(g.containers, req)
		id := fmt.Sprintf("container-%d", len(g.containers))
		g.mu.Unlock()

		json.NewEncoder(w).Encode(transfer.InstagramIDResponse{ID: id})
	})
	mux.HandleFunc("POST /ig-1/media_publish", func(w http.ResponseWriter, r *http.Request) {
		if g.publishFails {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Media ID is not available","code":9007}}`))
			return
		}
		var req transfer.InstagramPublishRequest
		json.NewDecoder(r.Body).Decode(&req)

		g.mu.Lock()
		g.published = append(g.published, req.CreationID)
		g.mu.Unlock()

		json.NewEncoder(w).Encode(transfer.InstagramIDResponse{ID: "media-1"})
	})
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "ig-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"ig-1"}`))
	})
	mux.HandleFunc("GET /refresh_access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "ig_refresh_token" || r.URL.Query().Get("access_token") != "ig-token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"access_token":"ig-token-2","token_type":"bearer","expires_in":5184000}`))
	})
	return mux
}

func newInstagramFixture(t *testing.T, graph *fakeGraph) (InstagramService, *repotest.CredentialsRepository) {
	t.Helper()

	srv := httptest.NewServer(graph.handler())
	t.Cleanup(srv.Close)

	cr := repotest.NewCredentialsRepository()
	seedCredentials(t, cr, "user-1", models.PlatformInstagram, "ig-1", "ig-token", "ig-token")
	return NewInstagramService(testConfig(srv.URL), srv.Client(), cr), cr
}

func TestInstagramPublishFeed(t *testing.T) {
	graph := &fakeGraph{}
	ig, _ := newInstagramFixture(t, graph)

	post := &models.InstagramPost{
		Type:     models.InstagramFeed,
		Media:    []string{"https://cdn.example.com/a.jpg"},
		Caption:  "Launch day",
		Hashtags: []string{"launch"},
		Location: "loc-7",
		UserTags: []string{"friend"},
	}

	result, err := ig.Publish(context.Background(), "user-1", post)
	require.NoError(t, err)
	assert.Equal(t, "media-1", result.ExternalID)
	assert.Equal(t, models.PlatformInstagram, result.Platform)

	require.Len(t, graph.containers, 1)
	c := graph.containers[0]
	assert.Equal(t, "https://cdn.example.com/a.jpg", c.ImageURL)
	assert.Equal(t, "Launch day\n\n#launch", c.Caption)
	assert.Equal(t, "loc-7", c.LocationID)
	assert.Equal(t, "ig-token", c.AccessToken)
	require.Len(t, c.UserTags, 1)
	assert.Equal(t, "friend", c.UserTags[0].Username)
	assert.Equal(t, []string{"container-1"}, graph.published)
}

func TestInstagramPublishReel(t *testing.T) {
	graph := &fakeGraph{}
	ig, _ := newInstagramFixture(t, graph)

	_, err := ig.Publish(context.Background(), "user-1", &models.InstagramPost{
		Type:  models.InstagramReel,
		Media: []string{"https://cdn.example.com/r.mp4"},
	})
	require.NoError(t, err)

	require.Len(t, graph.containers, 1)
	assert.Equal(t, "REELS", graph.containers[0].MediaType)
	assert.Equal(t, "https://cdn.example.com/r.mp4", graph.containers[0].VideoURL)
	assert.Empty(t, graph.containers[0].ImageURL)
}

func TestInstagramPublishStepFailure(t *testing.T) {
	graph := &fakeGraph{publishFails: true}
	ig, _ := newInstagramFixture(t, graph)

	_, err := ig.Publish(context.Background(), "user-1", &models.InstagramPost{
		Type:  models.InstagramFeed,
		Media: []string{"https://cdn.example.com/a.jpg"},
	})

	var upstream *models.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "media_publish", upstream.Step)
	assert.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	assert.Len(t, graph.containers, 1)
}

func TestInstagramPublishWithoutCredentials(t *testing.T) {
	graph := &fakeGraph{}
	ig, _ := newInstagramFixture(t, graph)

	_, err := ig.Publish(context.Background(), "user-2", &models.InstagramPost{
		Type:  models.InstagramFeed,
		Media: []string{"https://cdn.example.com/a.jpg"},
	})
	assert.ErrorIs(t, err, models.ErrCredentialsNotFound)
	assert.Empty(t, graph.containers)
}

func TestInstagramValidateCredentials(t *testing.T) {
	ig, cr := newInstagramFixture(t, &fakeGraph{})

	assert.True(t, ig.ValidateCredentials(context.Background(), "user-1"))
	assert.False(t, ig.ValidateCredentials(context.Background(), "user-2"))

	seedCredentials(t, cr, "user-3", models.PlatformInstagram, "ig-1", "revoked", "")
	assert.False(t, ig.ValidateCredentials(context.Background(), "user-3"))
}

func TestInstagramRefreshToken(t *testing.T) {
	ig, cr := newInstagramFixture(t, &fakeGraph{})

	stored, err := cr.Get(context.Background(), "user-1", models.PlatformInstagram)
	require.NoError(t, err)

	require.NoError(t, ig.RefreshToken(context.Background(), stored))
	assert.Equal(t, "ig-token-2", storedAccessToken(t, cr, "user-1", models.PlatformInstagram))

	// The stored token changed underneath, so a second refresh with the
	// stale row must not overwrite it.
	err = ig.RefreshToken(context.Background(), stored)
	assert.Error(t, err)
}

func TestIsVideoURL(t *testing.T) {
	assert.True(t, isVideoURL("https://cdn.example.com/clip.MP4"))
	assert.True(t, isVideoURL("https://cdn.example.com/clip.mov?sig=1"))
	assert.False(t, isVideoURL("https://cdn.example.com/photo.jpg"))
	assert.False(t, isVideoURL("::"))
}
