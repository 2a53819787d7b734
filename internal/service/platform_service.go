package service

import (
	"context"
	"log/slog"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type PlatformService interface {
	SaveCredentials(ctx context.Context, userID string, platform models.Platform, in *transfer.CredentialsInput) error
	List(ctx context.Context, userID string) ([]*transfer.ConnectedPlatform, error)
	Delete(ctx context.Context, userID string, platform models.Platform) error
	Validate(ctx context.Context, userID string, platform models.Platform) (bool, error)
}

type platformService struct {
	creds credentialSource
	cr    repository.CredentialsRepository
	pub   PublisherService
}

func NewPlatformService(cfg config.Config, cr repository.CredentialsRepository, pub PublisherService) PlatformService {
	return &platformService{
		creds: newCredentialSource(cr, cfg.SecretKey),
		cr:    cr,
		pub:   pub,
	}
}

func checkPlatform(platform models.Platform) error {
	if !platform.Valid() {
		return models.NewValidationError("platform", "platform must be one of instagram, youtube, tiktok")
	}
	return nil
}

// SaveCredentials stores the secrets for a platform, encrypted at rest.
func (s *platformService) SaveCredentials(ctx context.Context, userID string, platform models.Platform, in *transfer.CredentialsInput) error {
	if err := checkPlatform(platform); err != nil {
		return err
	}
	if in == nil || in.AccountID == "" {
		return models.NewValidationError("account_id", "is required")
	}
	if in.AccessToken == "" {
		return models.NewValidationError("access_token", "is required")
	}

	creds := &models.Credentials{
		UserID:         userID,
		Platform:       platform,
		AccountID:      in.AccountID,
		TokenExpiresAt: in.TokenExpiresAt,
	}

	var err error
	if creds.AccessToken, err = s.creds.encrypt(in.AccessToken); err != nil {
		return err
	}
	if creds.RefreshToken, err = s.creds.encrypt(in.RefreshToken); err != nil {
		return err
	}
	if creds.APIKey, err = s.creds.encrypt(in.APIKey); err != nil {
		return err
	}

	if err := s.cr.Upsert(ctx, creds); err != nil {
		return err
	}

	slog.Info("platform credentials saved", "user_id", userID, "platform", platform)
	return nil
}

func (s *platformService) List(ctx context.Context, userID string) ([]*transfer.ConnectedPlatform, error) {
	creds, err := s.cr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	connected := make([]*transfer.ConnectedPlatform, 0, len(creds))
	for _, c := range creds {
		connected = append(connected, &transfer.ConnectedPlatform{
			Platform:       c.Platform,
			AccountID:      c.AccountID,
			TokenExpiresAt: c.TokenExpiresAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return connected, nil
}

func (s *platformService) Delete(ctx context.Context, userID string, platform models.Platform) error {
	if err := checkPlatform(platform); err != nil {
		return err
	}
	return s.cr.Remove(ctx, userID, platform)
}

func (s *platformService) Validate(ctx context.Context, userID string, platform models.Platform) (bool, error) {
	if err := checkPlatform(platform); err != nil {
		return false, err
	}
	return s.pub.ValidateCredentials(ctx, userID, platform), nil
}
