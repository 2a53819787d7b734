package models

import (
	"time"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYoutube   Platform = "youtube"
	PlatformTiktok    Platform = "tiktok"
)

var Platforms = []Platform{PlatformInstagram, PlatformYoutube, PlatformTiktok}

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformYoutube, PlatformTiktok:
		return true
	}
	return false
}

type PostStatus string

const (
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusProcessing PostStatus = "processing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusScheduled:  {PostStatusProcessing, PostStatusCancelled},
	PostStatusProcessing: {PostStatusPublished, PostStatusFailed},
	PostStatusFailed:     {PostStatusProcessing, PostStatusScheduled, PostStatusCancelled},
}

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusScheduled, PostStatusProcessing, PostStatusPublished, PostStatusFailed, PostStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
// Published and cancelled posts are terminal.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	for _, allowed := range postTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ScheduledPost struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Platform    Platform   `db:"platform" json:"platform"`
	ScheduledAt time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Status      PostStatus `db:"status" json:"status"`
	Content     Content    `db:"content" json:"content"`
	Attempts    int        `db:"attempts" json:"attempts"`
	LastError   string     `db:"last_error" json:"last_error,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// StaleProcessingAfter is how long a post may stay processing before the
// attempt is treated as interrupted and the post can be recovered.
const StaleProcessingAfter = time.Hour

// ProcessingStale reports whether p has been processing since before
// now minus StaleProcessingAfter.
func (p *ScheduledPost) ProcessingStale(now time.Time) bool {
	return p.Status == PostStatusProcessing && p.UpdatedAt.Before(now.Add(-StaleProcessingAfter))
}

// Validate checks the post shape before it is persisted. The content tag
// must agree with the outer platform.
func (p *ScheduledPost) Validate() error {
	if p.UserID == "" {
		return NewValidationError("user_id", "user id is required")
	}
	if !p.Platform.Valid() {
		return NewValidationError("platform", "platform must be one of instagram, youtube, tiktok")
	}
	if p.ScheduledAt.IsZero() {
		return NewValidationError("scheduled_at", "scheduled time is required")
	}
	if p.Status != "" && !p.Status.Valid() {
		return NewValidationError("status", "unknown status "+string(p.Status))
	}
	if p.Content.Data == nil {
		return NewValidationError("content", "content is required")
	}
	if p.Content.Platform != p.Platform {
		return NewValidationError("content.platform", "content platform does not match post platform")
	}
	return p.Content.Validate()
}

// PostPatch carries a partial update. Nil fields are left untouched.
type PostPatch struct {
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty"`
	Status      *PostStatus `json:"status,omitempty"`
	Content     *Content    `json:"content,omitempty"`
}

type PublishResult struct {
	Platform   Platform `json:"platform"`
	ExternalID string   `json:"external_id"`
}

type MediaAsset struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Platform  Platform  `db:"platform" json:"platform"`
	Kind      MediaKind `db:"kind" json:"kind"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type MediaKind string

const (
	MediaKindImage     MediaKind = "image"
	MediaKindVideo     MediaKind = "video"
	MediaKindReel      MediaKind = "reel"
	MediaKindThumbnail MediaKind = "thumbnail"
)
