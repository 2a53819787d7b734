package models

import (
	"time"
)

// Credentials are the per user, per platform secrets used by publishers.
// Token fields hold ciphertext while stored and plaintext once decrypted
// by the service layer.
type Credentials struct {
	UserID         string     `db:"user_id" json:"user_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	AccountID      string     `db:"account_id" json:"account_id"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	APIKey         string     `db:"api_key" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
