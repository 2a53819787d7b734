package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

const (
	tiktokSingleUploadLimit = 64 << 20
	tiktokChunkSize         = 10 << 20
)

type TiktokService interface {
	Publish(ctx context.Context, userID string, post *models.TikTokPost) (*models.PublishResult, error)
	ValidateCredentials(ctx context.Context, userID string) bool
	RefreshToken(ctx context.Context, stored *models.Credentials) error
}

type tiktokService struct {
	cfg    config.Config
	client *http.Client
	creds  credentialSource
	cr     repository.CredentialsRepository
}

func NewTiktokService(cfg config.Config, client *http.Client, cr repository.CredentialsRepository) TiktokService {
	return &tiktokService{
		cfg:    cfg,
		client: client,
		creds:  newCredentialSource(cr, cfg.SecretKey),
		cr:     cr,
	}
}

// Publish initialises a file upload and then PUTs the video bytes to the
// upload URL TikTok hands back.
func (s *tiktokService) Publish(ctx context.Context, userID string, post *models.TikTokPost) (*models.PublishResult, error) {
	creds, err := s.creds.get(ctx, userID, models.PlatformTiktok)
	if err != nil {
		return nil, err
	}

	video, err := downloadMedia(ctx, s.client, post.VideoFile)
	if err != nil {
		return nil, &models.UpstreamError{Platform: models.PlatformTiktok, Step: "download", Err: err}
	}
	defer video.Close()

	chunkSize, chunkCount := tiktokChunks(video.Size)
	initReq := transfer.VideoUploadRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 composeCaption(post.Description, post.Hashtags),
			PrivacyLevel:          tiktokPrivacyLevel(post.Visibility),
			DisableDuet:           !boolValue(post.AllowDuet),
			DisableComment:        !boolValue(post.AllowComments),
			DisableStitch:         !boolValue(post.AllowStitch),
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       video.Size,
			ChunkSize:       chunkSize,
			TotalChunkCount: chunkCount,
		},
	}

	data, err := s.initUpload(ctx, creds.AccessToken, initReq)
	if err != nil {
		return nil, err
	}

	if err := s.uploadChunks(ctx, data.UploadURL, video, chunkSize, chunkCount); err != nil {
		return nil, err
	}

	slog.Info("tiktok video uploaded", "user_id", userID, "publish_id", data.PublishID)
	return &models.PublishResult{Platform: models.PlatformTiktok, ExternalID: data.PublishID}, nil
}

func (s *tiktokService) initUpload(ctx context.Context, accessToken string, initReq transfer.VideoUploadRequest) (*transfer.TiktokPublishData, error) {
	jsonData, err := json.Marshal(initReq)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PlatformAPI.TiktokAPIURL+"/post/publish/video/init/", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	var result transfer.TikTokUploadResponse
	if err := callJSON(s.client, req, models.PlatformTiktok, "init", &result); err != nil {
		return nil, err
	}
	if !result.Error.OK() {
		return nil, &models.UpstreamError{Platform: models.PlatformTiktok, Step: "init", StatusCode: http.StatusOK, Body: result.Error.Code + ": " + result.Error.Message}
	}
	if result.Data.UploadURL == "" {
		return nil, &models.UpstreamError{Platform: models.PlatformTiktok, Step: "init", Err: errors.New("no upload url returned")}
	}
	return &result.Data, nil
}

func (s *tiktokService) uploadChunks(ctx context.Context, uploadURL string, video *mediaFile, chunkSize, chunkCount int64) error {
	for i := int64(0); i < chunkCount; i++ {
		start := i * chunkSize
		end := start + chunkSize - 1
		if i == chunkCount-1 {
			end = video.Size - 1
		}
		length := end - start + 1

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, io.NewSectionReader(video, start, length))
		if err != nil {
			return err
		}
		req.ContentLength = length
		req.Header.Set("Content-Type", video.ContentType)
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, video.Size))

		if err := callJSON(s.client, req, models.PlatformTiktok, "upload", nil); err != nil {
			return err
		}
	}
	return nil
}

// tiktokChunks follows the upload rules: files up to 64MB go in one chunk,
// larger ones in 10MB chunks with the remainder folded into the last.
func tiktokChunks(size int64) (chunkSize, count int64) {
	if size <= tiktokSingleUploadLimit {
		return size, 1
	}
	return tiktokChunkSize, size / tiktokChunkSize
}

func tiktokPrivacyLevel(visibility string) string {
	switch visibility {
	case "friends":
		return "MUTUAL_FOLLOW_FRIENDS"
	case "private":
		return "SELF_ONLY"
	default:
		return "PUBLIC_TO_EVERYONE"
	}
}

func (s *tiktokService) ValidateCredentials(ctx context.Context, userID string) bool {
	creds, err := s.creds.get(ctx, userID, models.PlatformTiktok)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.PlatformAPI.TiktokAPIURL+"/user/info/?fields=open_id", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	var result transfer.TikTokResponse
	if err := callJSON(s.client, req, models.PlatformTiktok, "user_info", &result); err != nil {
		slog.Info("tiktok credentials rejected", "user_id", userID, "error", err)
		return false
	}
	return result.Error.OK()
}

func (s *tiktokService) RefreshToken(ctx context.Context, stored *models.Credentials) error {
	creds, err := s.creds.decrypt(stored)
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PlatformAPI.TiktokAPIURL+"/oauth/token/", strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResponse transfer.TiktokTokenResponse
	if err := callJSON(s.client, req, models.PlatformTiktok, "refresh_token", &tokenResponse); err != nil {
		return err
	}
	if tokenResponse.AccessToken == "" {
		return &models.UpstreamError{Platform: models.PlatformTiktok, Step: "refresh_token", Err: errors.New("empty access token")}
	}

	encryptedAccessToken, err := s.creds.encrypt(tokenResponse.AccessToken)
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := s.creds.encrypt(tokenResponse.RefreshToken)
	if err != nil {
		return err
	}

	expiresAt := GetExpiresAt(tokenResponse.ExpiresIn)
	return s.cr.SetToken(ctx, stored.UserID, models.PlatformTiktok, stored.AccessToken, &models.Credentials{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: &expiresAt,
	})
}
