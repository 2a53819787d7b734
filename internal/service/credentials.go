package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

// credentialSource fetches stored credentials and returns them decrypted.
type credentialSource struct {
	repo repository.CredentialsRepository
	key  []byte
}

func newCredentialSource(repo repository.CredentialsRepository, secretKey string) credentialSource {
	return credentialSource{repo: repo, key: []byte(secretKey)}
}

func (s credentialSource) get(ctx context.Context, userID string, platform models.Platform) (*models.Credentials, error) {
	stored, err := s.repo.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return s.decrypt(stored)
}

func (s credentialSource) decrypt(stored *models.Credentials) (*models.Credentials, error) {
	c := *stored
	for _, field := range []*string{&c.AccessToken, &c.RefreshToken, &c.APIKey} {
		if *field == "" {
			continue
		}
		plain, err := utils.Decrypt(*field, s.key)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s credentials: %w", stored.Platform, err)
		}
		*field = plain
	}
	return &c, nil
}

func (s credentialSource) encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	return utils.Encrypt([]byte(plain), s.key)
}
