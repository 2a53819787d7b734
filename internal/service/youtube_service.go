package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const defaultYoutubeCategory = "22"

type YoutubeService interface {
	Publish(ctx context.Context, userID string, post *models.YouTubePost) (*models.PublishResult, error)
	ValidateCredentials(ctx context.Context, userID string) bool
	RefreshToken(ctx context.Context, stored *models.Credentials) error
}

type youtubeService struct {
	cfg    config.Config
	client *http.Client
	creds  credentialSource
	cr     repository.CredentialsRepository
}

func NewYoutubeService(cfg config.Config, client *http.Client, cr repository.CredentialsRepository) YoutubeService {
	return &youtubeService{
		cfg:    cfg,
		client: client,
		creds:  newCredentialSource(cr, cfg.SecretKey),
		cr:     cr,
	}
}

func (s *youtubeService) oauthConfig() *oauth2.Config {
	endpoint := google.Endpoint
	if s.cfg.PlatformAPI.GoogleTokenURL != "" {
		endpoint.TokenURL = s.cfg.PlatformAPI.GoogleTokenURL
	}
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
		Endpoint:     endpoint,
	}
}

// authClient returns a client that sends the user's bearer token and
// refreshes it through the google token endpoint when it has expired.
func (s *youtubeService) authClient(ctx context.Context, creds *models.Credentials) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}
	if creds.TokenExpiresAt != nil {
		token.Expiry = *creds.TokenExpiresAt
	}
	return s.oauthConfig().Client(ctx, token)
}

func (s *youtubeService) apiService(ctx context.Context, client *http.Client) (*youtube.Service, error) {
	return youtube.NewService(ctx, option.WithHTTPClient(client), option.WithEndpoint(s.cfg.PlatformAPI.YoutubeAPIURL))
}

// Publish runs a resumable upload: the metadata call returns a session URL
// in its Location header and the video bytes are PUT there.
func (s *youtubeService) Publish(ctx context.Context, userID string, post *models.YouTubePost) (*models.PublishResult, error) {
	creds, err := s.creds.get(ctx, userID, models.PlatformYoutube)
	if err != nil {
		return nil, err
	}
	client := s.authClient(ctx, creds)

	video, err := downloadMedia(ctx, s.client, post.VideoFile)
	if err != nil {
		return nil, &models.UpstreamError{Platform: models.PlatformYoutube, Step: "download", Err: err}
	}
	defer video.Close()

	uploadURL, err := s.createUploadSession(ctx, client, videoMetadata(post), video)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, video)
	if err != nil {
		return nil, err
	}
	req.ContentLength = video.Size
	req.Header.Set("Content-Type", video.ContentType)

	var uploaded youtube.Video
	if err := callJSON(client, req, models.PlatformYoutube, "upload", &uploaded); err != nil {
		return nil, err
	}
	if uploaded.Id == "" {
		return nil, &models.UpstreamError{Platform: models.PlatformYoutube, Step: "upload", Err: errors.New("no video id returned")}
	}

	// The video is live at this point; follow-up failures are logged only
	// so a retry does not upload a duplicate.
	s.applyExtras(ctx, client, uploaded.Id, post)

	slog.Info("youtube video uploaded", "user_id", userID, "video_id", uploaded.Id)
	return &models.PublishResult{Platform: models.PlatformYoutube, ExternalID: uploaded.Id}, nil
}

func videoMetadata(post *models.YouTubePost) *youtube.Video {
	category := post.Category
	if category == "" {
		category = defaultYoutubeCategory
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:           post.Title,
			Description:     post.Description,
			Tags:            post.Tags,
			CategoryId:      category,
			DefaultLanguage: post.Language,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           post.PrivacyStatus,
			SelfDeclaredMadeForKids: post.MadeForKids,
			License:                 post.License,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

func (s *youtubeService) createUploadSession(ctx context.Context, client *http.Client, metadata *youtube.Video, video *mediaFile) (string, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("error marshalling video metadata: %w", err)
	}

	params := url.Values{}
	params.Set("uploadType", "resumable")
	params.Set("part", "snippet,status")
	endpoint := strings.TrimRight(s.cfg.PlatformAPI.YoutubeUploadURL, "/") + "/upload/youtube/v3/videos?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(video.Size, 10))
	req.Header.Set("X-Upload-Content-Type", video.ContentType)

	resp, err := client.Do(req)
	if err != nil {
		return "", &models.UpstreamError{Platform: models.PlatformYoutube, Step: "metadata", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &models.UpstreamError{Platform: models.PlatformYoutube, Step: "metadata", StatusCode: resp.StatusCode}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &models.UpstreamError{Platform: models.PlatformYoutube, Step: "metadata", StatusCode: resp.StatusCode, Err: errors.New("no upload url returned")}
	}
	return location, nil
}

func (s *youtubeService) applyExtras(ctx context.Context, client *http.Client, videoID string, post *models.YouTubePost) {
	if post.Thumbnail == "" && post.Playlist == "" {
		return
	}

	svc, err := s.apiService(ctx, client)
	if err != nil {
		slog.Warn("youtube client unavailable", "video_id", videoID, "error", err)
		return
	}

	if post.Thumbnail != "" {
		thumb, err := downloadMedia(ctx, s.client, post.Thumbnail)
		if err != nil {
			slog.Warn("thumbnail download failed", "video_id", videoID, "error", err)
		} else {
			_, err = svc.Thumbnails.Set(videoID).Media(thumb).Context(ctx).Do()
			thumb.Close()
			if err != nil {
				slog.Warn("thumbnail upload failed", "video_id", videoID, "error", err)
			}
		}
	}

	if post.Playlist != "" {
		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: post.Playlist,
				ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
			},
		}
		if _, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			slog.Warn("playlist insert failed", "video_id", videoID, "playlist", post.Playlist, "error", err)
		}
	}
}

func (s *youtubeService) ValidateCredentials(ctx context.Context, userID string) bool {
	creds, err := s.creds.get(ctx, userID, models.PlatformYoutube)
	if err != nil {
		return false
	}

	svc, err := s.apiService(ctx, s.authClient(ctx, creds))
	if err != nil {
		return false
	}

	if _, err := svc.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do(); err != nil {
		slog.Info("youtube credentials rejected", "user_id", userID, "error", err)
		return false
	}
	return true
}

func (s *youtubeService) RefreshToken(ctx context.Context, stored *models.Credentials) error {
	creds, err := s.creds.decrypt(stored)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	tokenSource := s.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return &models.UpstreamError{Platform: models.PlatformYoutube, Step: "refresh_token", Err: err}
	}

	encryptedAccessToken, err := s.creds.encrypt(token.AccessToken)
	if err != nil {
		return err
	}

	update := &models.Credentials{AccessToken: encryptedAccessToken}
	if !token.Expiry.IsZero() {
		update.TokenExpiresAt = &token.Expiry
	}
	if token.RefreshToken != "" && token.RefreshToken != creds.RefreshToken {
		if update.RefreshToken, err = s.creds.encrypt(token.RefreshToken); err != nil {
			return err
		}
	}

	return s.cr.SetToken(ctx, stored.UserID, models.PlatformYoutube, stored.AccessToken, update)
}
