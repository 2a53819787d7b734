package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
)

func GetExpiresAt(expiresIn int) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// NewHTTPClient builds the client shared by all platform calls. With the
// default HTTP_RETRY_MAX of 0 every request is attempted exactly once.
func NewHTTPClient(cfg config.Config) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.HTTPRetryMax
	rc.HTTPClient.Timeout = cfg.HTTPTimeout
	rc.Logger = slog.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc.StandardClient()
}

// callJSON sends req and decodes a 2xx JSON answer into out. Anything else
// becomes an UpstreamError tagged with the platform and step.
func callJSON(client *http.Client, req *http.Request, platform models.Platform, step string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return &models.UpstreamError{Platform: platform, Step: step, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &models.UpstreamError{Platform: platform, Step: step, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &models.UpstreamError{Platform: platform, Step: step, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return &models.UpstreamError{Platform: platform, Step: step, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// mediaFile is a downloaded media item spooled to a temp file.
type mediaFile struct {
	*os.File
	Size        int64
	ContentType string
}

func (m *mediaFile) Close() error {
	name := m.Name()
	err := m.File.Close()
	os.Remove(name)
	return err
}

func downloadMedia(ctx context.Context, client *http.Client, mediaURL string) (*mediaFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status downloading media: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "media-*")
	if err != nil {
		return nil, fmt.Errorf("error creating temporary file: %w", err)
	}
	m := &mediaFile{File: tempFile, ContentType: resp.Header.Get("Content-Type")}

	m.Size, err = io.Copy(tempFile, resp.Body)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("error saving media to temporary file: %w", err)
	}
	if m.Size == 0 {
		m.Close()
		return nil, fmt.Errorf("media file at %s is empty", mediaURL)
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		m.Close()
		return nil, err
	}

	if m.ContentType == "" || m.ContentType == "application/octet-stream" {
		m.ContentType = "video/mp4"
	}
	return m, nil
}

// composeCaption appends hashtags that are not already in the text.
func composeCaption(text string, hashtags []string) string {
	parts := []string{}
	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}

	var tags []string
	for _, h := range hashtags {
		h = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(h), "#"))
		if h == "" || strings.Contains(text, "#"+h) {
			continue
		}
		tags = append(tags, "#"+h)
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n\n")
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
