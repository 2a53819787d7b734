package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"
)

type fakeYoutube struct {
	srv           *httptest.Server
	metadata      youtube.Video
	uploadHeaders http.Header
	uploaded      []byte
	playlistCalls int
	sessionFails  bool
}

func newYoutubeFixture(t *testing.T, fake *fakeYoutube) (YoutubeService, *repotest.CredentialsRepository) {
	t.Helper()

	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer yt-token"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /media/v.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("youtube-video"))
	})
	mux.HandleFunc("POST /upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) || r.URL.Query().Get("uploadType") != "resumable" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if fake.sessionFails {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"errors":[{"reason":"quotaExceeded"}]}}`))
			return
		}
		fake.uploadHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&fake.metadata)
		w.Header().Set("Location", fake.srv.URL+"/upload-session/abc")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /upload-session/abc", func(w http.ResponseWriter, r *http.Request) {
		fake.uploaded, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"id":"video-1","kind":"youtube#video"}`))
	})
	mux.HandleFunc("POST /youtube/v3/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		fake.playlistCalls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"items":[{"id":"channel-1"}]}`))
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("refresh_token") != "yt-refresh" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"yt-token-2","token_type":"Bearer","expires_in":3600}`))
	})

	fake.srv = httptest.NewServer(mux)
	t.Cleanup(fake.srv.Close)

	cr := repotest.NewCredentialsRepository()
	seedCredentials(t, cr, "user-1", models.PlatformYoutube, "channel-1", "yt-token", "yt-refresh")
	return NewYoutubeService(testConfig(fake.srv.URL), fake.srv.Client(), cr), cr
}

func TestYoutubePublish(t *testing.T) {
	fake := &fakeYoutube{}
	yt, _ := newYoutubeFixture(t, fake)

	post := &models.YouTubePost{
		Title:         "Weekly update",
		Description:   "What shipped",
		Tags:          []string{"update"},
		VideoFile:     fake.srv.URL + "/media/v.mp4",
		PrivacyStatus: "unlisted",
		Playlist:      "PL123",
	}

	result, err := yt.Publish(context.Background(), "user-1", post)
	require.NoError(t, err)
	assert.Equal(t, "video-1", result.ExternalID)

	require.NotNil(t, fake.metadata.Snippet)
	assert.Equal(t, "Weekly update", fake.metadata.Snippet.Title)
	assert.Equal(t, defaultYoutubeCategory, fake.metadata.Snippet.CategoryId)
	assert.Equal(t, "unlisted", fake.metadata.Status.PrivacyStatus)
	assert.Equal(t, "13", fake.uploadHeaders.Get("X-Upload-Content-Length"))
	assert.Equal(t, "youtube-video", string(fake.uploaded))

	// A failing playlist insert is logged and does not fail the upload.
	assert.Equal(t, 1, fake.playlistCalls)
}

func TestYoutubePublishSessionRejected(t *testing.T) {
	fake := &fakeYoutube{sessionFails: true}
	yt, _ := newYoutubeFixture(t, fake)

	_, err := yt.Publish(context.Background(), "user-1", &models.YouTubePost{
		Title:         "t",
		VideoFile:     fake.srv.URL + "/media/v.mp4",
		PrivacyStatus: "public",
	})

	var upstream *models.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "metadata", upstream.Step)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
	assert.Nil(t, fake.uploaded)
}

func TestYoutubeValidateCredentials(t *testing.T) {
	yt, cr := newYoutubeFixture(t, &fakeYoutube{})

	assert.True(t, yt.ValidateCredentials(context.Background(), "user-1"))
	assert.False(t, yt.ValidateCredentials(context.Background(), "nobody"))

	seedCredentials(t, cr, "user-2", models.PlatformYoutube, "channel-2", "expired", "")
	assert.False(t, yt.ValidateCredentials(context.Background(), "user-2"))
}

func TestYoutubeRefreshToken(t *testing.T) {
	yt, cr := newYoutubeFixture(t, &fakeYoutube{})

	stored, err := cr.Get(context.Background(), "user-1", models.PlatformYoutube)
	require.NoError(t, err)
	require.NoError(t, yt.RefreshToken(context.Background(), stored))

	creds, err := newCredentialSource(cr, testSecretKey).get(context.Background(), "user-1", models.PlatformYoutube)
	require.NoError(t, err)
	assert.Equal(t, "yt-token-2", creds.AccessToken)
	assert.Equal(t, "yt-refresh", creds.RefreshToken)
	require.NotNil(t, creds.TokenExpiresAt)
}

func TestVideoMetadata(t *testing.T) {
	v := videoMetadata(&models.YouTubePost{Title: "t", Category: "10", MadeForKids: true, License: "creativeCommon"})

	assert.Equal(t, "10", v.Snippet.CategoryId)
	assert.True(t, v.Status.SelfDeclaredMadeForKids)
	assert.Equal(t, "creativeCommon", v.Status.License)
}
