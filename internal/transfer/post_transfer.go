package transfer

import (
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type PostCreation struct {
	Platform    models.Platform `json:"platform"`
	ScheduledAt string          `json:"scheduled_at"`
	Content     models.Content  `json:"content"`
}

type PostUpdate struct {
	ScheduledAt *string            `json:"scheduled_at,omitempty"`
	Status      *models.PostStatus `json:"status,omitempty"`
	Content     *models.Content    `json:"content,omitempty"`
}

type PublishAttempt struct {
	Attempt    int       `json:"attempt"`
	Success    bool      `json:"success"`
	ExternalID string    `json:"external_id,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type CredentialsInput struct {
	AccountID      string     `json:"account_id"`
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token"`
	APIKey         string     `json:"api_key"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

type ConnectedPlatform struct {
	Platform       models.Platform `json:"platform"`
	AccountID      string          `json:"account_id"`
	TokenExpiresAt *time.Time      `json:"token_expires_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}
