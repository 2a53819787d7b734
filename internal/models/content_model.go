package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PlatformContent is implemented only by the per-platform payloads in this
// package, so a type switch over it is exhaustive.
type PlatformContent interface {
	contentPlatform() Platform
}

type InstagramPostType string

const (
	InstagramFeed InstagramPostType = "feed"
	InstagramReel InstagramPostType = "reel"
)

type InstagramPost struct {
	Type         InstagramPostType `json:"type" validate:"required,oneof=feed reel"`
	Media        []string          `json:"media" validate:"required,min=1,max=10,dive,url"`
	Caption      string            `json:"caption" validate:"max=2200"`
	Hashtags     []string          `json:"hashtags"`
	Location     string            `json:"location,omitempty"`
	UserTags     []string          `json:"user_tags,omitempty"`
	FirstComment string            `json:"first_comment,omitempty"`
	HideLikes    bool              `json:"hide_likes,omitempty"`
	HideComments bool              `json:"hide_comments,omitempty"`
}

func (*InstagramPost) contentPlatform() Platform { return PlatformInstagram }

type YouTubePost struct {
	Title         string   `json:"title" validate:"required,max=100"`
	Description   string   `json:"description" validate:"max=5000"`
	Tags          []string `json:"tags" validate:"max=500"`
	VideoFile     string   `json:"video_file" validate:"required,url"`
	Thumbnail     string   `json:"thumbnail,omitempty" validate:"omitempty,url"`
	Playlist      string   `json:"playlist,omitempty"`
	PrivacyStatus string   `json:"privacy_status" validate:"required,oneof=private unlisted public"`
	Category      string   `json:"category,omitempty"`
	Language      string   `json:"language,omitempty"`
	MadeForKids   bool     `json:"made_for_kids,omitempty"`
	License       string   `json:"license,omitempty" validate:"omitempty,oneof=youtube creativeCommon"`
	AllowComments *bool    `json:"allow_comments,omitempty"`
	AllowRatings  *bool    `json:"allow_ratings,omitempty"`
}

func (*YouTubePost) contentPlatform() Platform { return PlatformYoutube }

type TikTokPost struct {
	VideoFile       string   `json:"video_file" validate:"required,url"`
	Description     string   `json:"description" validate:"max=2200"`
	Hashtags        []string `json:"hashtags"`
	AllowComments   *bool    `json:"allow_comments,omitempty"`
	AllowDuet       *bool    `json:"allow_duet,omitempty"`
	AllowStitch     *bool    `json:"allow_stitch,omitempty"`
	Visibility      string   `json:"visibility,omitempty" validate:"omitempty,oneof=public friends private"`
	DisableDownload bool     `json:"disable_download,omitempty"`
	BackgroundMusic string   `json:"background_music,omitempty"`
	AllowReactions  *bool    `json:"allow_reactions,omitempty"`
}

func (*TikTokPost) contentPlatform() Platform { return PlatformTiktok }

// Content is the platform-tagged payload of a post.
type Content struct {
	Platform Platform
	Data     PlatformContent
}

func NewContent(data PlatformContent) Content {
	return Content{Platform: data.contentPlatform(), Data: data}
}

type contentEnvelope struct {
	Platform Platform        `json:"platform"`
	Data     json.RawMessage `json:"data"`
}

func (c Content) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contentEnvelope{Platform: c.Platform, Data: data})
}

func (c *Content) UnmarshalJSON(b []byte) error {
	var env contentEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var data PlatformContent
	switch env.Platform {
	case PlatformInstagram:
		data = &InstagramPost{}
	case PlatformYoutube:
		data = &YouTubePost{}
	case PlatformTiktok:
		data = &TikTokPost{}
	default:
		return NewValidationError("content.platform", fmt.Sprintf("unsupported platform %q", env.Platform))
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return NewValidationError("content.data", "content data is required")
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("decode %s content: %w", env.Platform, err)
	}

	c.Platform = env.Platform
	c.Data = data
	return nil
}

// Validate applies the platform schema to the payload.
func (c Content) Validate() error {
	if c.Data == nil {
		return NewValidationError("content.data", "content data is required")
	}
	if c.Data.contentPlatform() != c.Platform {
		return NewValidationError("content.platform", "content tag does not match its payload")
	}

	if err := validate.Struct(c.Data); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	if ig, ok := c.Data.(*InstagramPost); ok && ig.Type == InstagramReel && len(ig.Media) != 1 {
		return NewValidationError("content.data.media", "a reel takes exactly one video")
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := "content.data." + fe.Field()
	switch fe.Tag() {
	case "required":
		return NewValidationError(field, "is required")
	case "max":
		return NewValidationError(field, "must be at most "+fe.Param()+" long")
	case "min":
		return NewValidationError(field, "must have at least "+fe.Param()+" item")
	case "url":
		return NewValidationError(field, "must be a valid URL")
	case "oneof":
		return NewValidationError(field, "must be one of: "+fe.Param())
	}
	return NewValidationError(field, "failed "+fe.Tag()+" check")
}
