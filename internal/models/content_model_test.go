package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_UnmarshalJSON(t *testing.T) {
	raw := `{"platform":"instagram","data":{"type":"feed","media":["https://x/img.jpg"],"caption":"hi","hashtags":[]}}`

	var c Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, PlatformInstagram, c.Platform)
	ig, ok := c.Data.(*InstagramPost)
	require.True(t, ok)
	assert.Equal(t, InstagramFeed, ig.Type)
	assert.Equal(t, []string{"https://x/img.jpg"}, ig.Media)
	assert.NoError(t, c.Validate())
}

func TestContent_MarshalJSON(t *testing.T) {
	c := NewContent(&TikTokPost{VideoFile: "https://cdn.example.com/v.mp4", Description: "clip"})

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &env))
	assert.JSONEq(t, `"tiktok"`, string(env["platform"]))
	assert.Contains(t, string(env["data"]), `"video_file":"https://cdn.example.com/v.mp4"`)
}

func TestContent_UnmarshalJSON_UnknownPlatform(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"platform":"myspace","data":{}}`), &c)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestContent_UnmarshalJSON_MissingData(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"platform":"youtube"}`), &c)
	assert.True(t, IsValidationError(err))
}

func TestContent_Validate(t *testing.T) {
	tests := []struct {
		name  string
		data  PlatformContent
		field string
	}{
		{
			name:  "instagram without media",
			data:  &InstagramPost{Type: InstagramFeed},
			field: "content.data.media",
		},
		{
			name:  "instagram bad media url",
			data:  &InstagramPost{Type: InstagramFeed, Media: []string{"not a url"}},
			field: "content.data.media[0]",
		},
		{
			name:  "instagram reel with two items",
			data:  &InstagramPost{Type: InstagramReel, Media: []string{"https://x/a.mp4", "https://x/b.mp4"}},
			field: "content.data.media",
		},
		{
			name:  "youtube missing title",
			data:  &YouTubePost{VideoFile: "https://x/v.mp4", PrivacyStatus: "public"},
			field: "content.data.title",
		},
		{
			name:  "youtube bad privacy",
			data:  &YouTubePost{Title: "t", VideoFile: "https://x/v.mp4", PrivacyStatus: "secret"},
			field: "content.data.privacy_status",
		},
		{
			name:  "tiktok bad visibility",
			data:  &TikTokPost{VideoFile: "https://x/v.mp4", Visibility: "everyone"},
			field: "content.data.visibility",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.ErrorAs(t, NewContent(tt.data).Validate(), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestContent_Validate_TagMismatch(t *testing.T) {
	c := Content{Platform: PlatformYoutube, Data: &TikTokPost{VideoFile: "https://x/v.mp4"}}

	var ve *ValidationError
	require.ErrorAs(t, c.Validate(), &ve)
	assert.Equal(t, "content.platform", ve.Field)
}
