package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

const (
	mb = int64(1) << 20
	gb = int64(1) << 30
)

type mediaRule struct {
	extensions map[string]struct{}
	maxSize    int64
}

var (
	imageTypes = map[string]struct{}{"jpg": {}, "png": {}}
	videoTypes = map[string]struct{}{"mp4": {}, "mov": {}}
)

// Upload limits per platform and kind of media.
var mediaRules = map[models.Platform]map[models.MediaKind]mediaRule{
	models.PlatformInstagram: {
		models.MediaKindImage: {imageTypes, 30 * mb},
		models.MediaKindVideo: {videoTypes, 100 * mb},
		models.MediaKindReel:  {videoTypes, 250 * mb},
	},
	models.PlatformYoutube: {
		models.MediaKindVideo:     {videoTypes, 128 * gb},
		models.MediaKindThumbnail: {imageTypes, 2 * mb},
	},
	models.PlatformTiktok: {
		models.MediaKindVideo: {videoTypes, 512 * mb},
	},
}

type MediaService interface {
	Upload(ctx context.Context, userID string, platform models.Platform, kind models.MediaKind, file *multipart.FileHeader) (*models.MediaAsset, error)
	List(ctx context.Context, userID string) ([]*models.MediaAsset, error)
	Remove(ctx context.Context, userID, assetID string) error
}

type mediaService struct {
	ma      repository.MediaAssetRepository
	storage ObjectStorage
}

func NewMediaService(ma repository.MediaAssetRepository, storage ObjectStorage) MediaService {
	return &mediaService{
		ma:      ma,
		storage: storage,
	}
}

func (s *mediaService) Upload(ctx context.Context, userID string, platform models.Platform, kind models.MediaKind, file *multipart.FileHeader) (*models.MediaAsset, error) {
	rules, ok := mediaRules[platform]
	if !ok {
		return nil, models.NewValidationError("platform", "platform must be one of instagram, youtube, tiktok")
	}
	rule, ok := rules[kind]
	if !ok {
		return nil, models.NewValidationError("kind", fmt.Sprintf("%s does not accept %s uploads", platform, kind))
	}
	if file == nil {
		return nil, models.NewValidationError("file", "is required")
	}
	if file.Size > rule.maxSize {
		return nil, models.NewValidationError("file", fmt.Sprintf("exceeds the %d MB limit", rule.maxSize/mb))
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	fileBytes, err := io.ReadAll(io.LimitReader(f, rule.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}
	if int64(len(fileBytes)) > rule.maxSize {
		return nil, models.NewValidationError("file", fmt.Sprintf("exceeds the %d MB limit", rule.maxSize/mb))
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return nil, models.NewValidationError("file", "unsupported file type")
	}
	if _, ok := rule.extensions[fileType.Extension]; !ok {
		return nil, models.NewValidationError("file", fmt.Sprintf("file type %s is not allowed for %s", fileType.Extension, kind))
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if err := s.storage.Upload(ctx, id, fileBytes, fileType.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	asset := &models.MediaAsset{
		ID:       id,
		UserID:   userID,
		Platform: platform,
		Kind:     kind,
		FileType: fileType.MIME.Value,
		FileSize: int64(len(fileBytes)),
		FileURL:  s.storage.PublicURL(id),
	}
	if err := s.ma.Create(ctx, asset); err != nil {
		if derr := s.storage.Delete(ctx, id); derr != nil {
			slog.Warn("orphaned media object", "key", id, "error", derr)
		}
		return nil, &models.StoreError{Op: "save media asset", Err: err}
	}

	slog.Info("media uploaded", "user_id", userID, "asset_id", id, "platform", platform, "kind", kind, "size", asset.FileSize)
	return asset, nil
}

func (s *mediaService) List(ctx context.Context, userID string) ([]*models.MediaAsset, error) {
	return s.ma.ListByUserID(ctx, userID)
}

func (s *mediaService) Remove(ctx context.Context, userID, assetID string) error {
	if err := s.ma.Remove(ctx, assetID, userID); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, assetID); err != nil {
		slog.Warn("could not delete media object", "key", assetID, "error", err)
	}
	return nil
}
