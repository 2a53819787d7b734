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
	"path"
	"strings"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"golang.org/x/sync/errgroup"
)

type InstagramService interface {
	Publish(ctx context.Context, userID string, post *models.InstagramPost) (*models.PublishResult, error)
	ValidateCredentials(ctx context.Context, userID string) bool
	RefreshToken(ctx context.Context, stored *models.Credentials) error
}

type instagramService struct {
	cfg    config.Config
	client *http.Client
	creds  credentialSource
	cr     repository.CredentialsRepository
}

func NewInstagramService(cfg config.Config, client *http.Client, cr repository.CredentialsRepository) InstagramService {
	return &instagramService{
		cfg:    cfg,
		client: client,
		creds:  newCredentialSource(cr, cfg.SecretKey),
		cr:     cr,
	}
}

// Publish creates one media container per item, then publishes the first
// container.
func (s *instagramService) Publish(ctx context.Context, userID string, post *models.InstagramPost) (*models.PublishResult, error) {
	creds, err := s.creds.get(ctx, userID, models.PlatformInstagram)
	if err != nil {
		return nil, err
	}
	if len(post.Media) == 0 {
		return nil, models.NewValidationError("content.data.media", "is required")
	}

	caption := composeCaption(post.Caption, post.Hashtags)
	containerIDs := make([]string, len(post.Media))

	g, gctx := errgroup.WithContext(ctx)
	for i, mediaURL := range post.Media {
		g.Go(func() error {
			id, err := s.createContainer(gctx, creds, post, mediaURL, caption)
			if err != nil {
				return err
			}
			containerIDs[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mediaID, err := s.publishContainer(ctx, creds, containerIDs[0])
	if err != nil {
		return nil, err
	}

	slog.Info("instagram media published", "user_id", userID, "media_id", mediaID)
	return &models.PublishResult{Platform: models.PlatformInstagram, ExternalID: mediaID}, nil
}

func (s *instagramService) createContainer(ctx context.Context, creds *models.Credentials, post *models.InstagramPost, mediaURL, caption string) (string, error) {
	payload := transfer.InstagramContainerRequest{
		Caption:     caption,
		LocationID:  post.Location,
		AccessToken: creds.AccessToken,
	}

	switch {
	case post.Type == models.InstagramReel:
		payload.MediaType = "REELS"
		payload.VideoURL = mediaURL
	case isVideoURL(mediaURL):
		payload.MediaType = "VIDEO"
		payload.VideoURL = mediaURL
	default:
		payload.ImageURL = mediaURL
		for _, username := range post.UserTags {
			payload.UserTags = append(payload.UserTags, transfer.InstagramUserTag{Username: username, X: 0.5, Y: 0.5})
		}
	}

	endpoint := fmt.Sprintf("%s/%s/media", s.cfg.PlatformAPI.InstagramGraphURL, creds.AccountID)

	var result transfer.InstagramIDResponse
	if err := s.postJSON(ctx, endpoint, "media", payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &models.UpstreamError{Platform: models.PlatformInstagram, Step: "media", Err: errors.New("no media ID returned")}
	}
	return result.ID, nil
}

func (s *instagramService) publishContainer(ctx context.Context, creds *models.Credentials, creationID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", s.cfg.PlatformAPI.InstagramGraphURL, creds.AccountID)
	payload := transfer.InstagramPublishRequest{
		CreationID:  creationID,
		AccessToken: creds.AccessToken,
	}

	var result transfer.InstagramIDResponse
	if err := s.postJSON(ctx, endpoint, "media_publish", payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &models.UpstreamError{Platform: models.PlatformInstagram, Step: "media_publish", Err: errors.New("no media ID returned")}
	}
	return result.ID, nil
}

func (s *instagramService) postJSON(ctx context.Context, endpoint, step string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return callJSON(s.client, req, models.PlatformInstagram, step, out)
}

func (s *instagramService) ValidateCredentials(ctx context.Context, userID string) bool {
	creds, err := s.creds.get(ctx, userID, models.PlatformInstagram)
	if err != nil {
		return false
	}

	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.PlatformAPI.InstagramGraphURL+"/me?"+params.Encode(), nil)
	if err != nil {
		return false
	}

	if err := callJSON(s.client, req, models.PlatformInstagram, "me", nil); err != nil {
		slog.Info("instagram credentials rejected", "user_id", userID, "error", err)
		return false
	}
	return true
}

// RefreshToken extends a long lived token. stored holds encrypted secrets.
func (s *instagramService) RefreshToken(ctx context.Context, stored *models.Credentials) error {
	creds, err := s.creds.decrypt(stored)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", creds.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.PlatformAPI.InstagramRefreshURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	var result transfer.InstagramRefreshResponse
	if err := callJSON(s.client, req, models.PlatformInstagram, "refresh_access_token", &result); err != nil {
		return err
	}

	encryptedAccessToken, err := s.creds.encrypt(result.AccessToken)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(time.Second * time.Duration(result.ExpiresIn))
	return s.cr.SetToken(ctx, stored.UserID, models.PlatformInstagram, stored.AccessToken, &models.Credentials{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: &expiresAt,
	})
}

func isVideoURL(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".mp4", ".mov", ".m4v":
		return true
	}
	return false
}
