package models

import "time"

// PostingHistory is one publish attempt of a post.
type PostingHistory struct {
	ID           string    `db:"id" json:"id"`
	PostID       string    `db:"post_id" json:"post_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Platform     Platform  `db:"platform" json:"platform"`
	Attempt      int       `db:"attempt" json:"attempt"`
	Success      bool      `db:"success" json:"success"`
	ExternalID   string    `db:"external_id" json:"external_id,omitempty"`
	ErrorCode    string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage string    `db:"error_message" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
