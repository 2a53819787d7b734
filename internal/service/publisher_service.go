package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

type PublisherService interface {
	PublishPost(ctx context.Context, post *models.ScheduledPost) error
	ValidateCredentials(ctx context.Context, userID string, platform models.Platform) bool
}

type publisherService struct {
	pr repository.PostRepository
	ph repository.PostingHistoryRepository
	ig InstagramService
	yt YoutubeService
	tt TiktokService

	now func() time.Time
}

func NewPublisherService(
	pr repository.PostRepository,
	ph repository.PostingHistoryRepository,
	ig InstagramService,
	yt YoutubeService,
	tt TiktokService) PublisherService {
	return &publisherService{
		pr:  pr,
		ph:  ph,
		ig:  ig,
		yt:  yt,
		tt:  tt,
		now: time.Now,
	}
}

// PublishPost claims the post, hands it to its platform publisher and
// records the outcome. A failed claim aborts before any platform call.
// Every other failure leaves the post failed and is returned as a
// *models.PublishError. A post left processing by an interrupted attempt
// is released to failed first once it is stale.
func (s *publisherService) PublishPost(ctx context.Context, post *models.ScheduledPost) error {
	logger := slog.With("post_id", post.ID, "platform", post.Platform)

	from := post.Status
	if post.ProcessingStale(s.now()) {
		if err := releaseStale(ctx, s.pr, post, s.now()); err != nil {
			logger.Info("stale post release failed", "event", "release_failed", "error", err)
			return err
		}
		from = models.PostStatusFailed
	}

	if err := s.pr.TransitionStatus(ctx, post.ID, from, models.PostStatusProcessing, ""); err != nil {
		logger.Info("post claim failed", "event", "claim_failed", "from", from, "error", err)
		return err
	}
	attempt := post.Attempts + 1

	result, err := s.dispatch(ctx, post)
	if err == nil {
		err = s.pr.TransitionStatus(ctx, post.ID, models.PostStatusProcessing, models.PostStatusPublished, "")
	}

	if err != nil {
		code := models.ErrorCode(err)
		if ferr := s.pr.TransitionStatus(ctx, post.ID, models.PostStatusProcessing, models.PostStatusFailed, models.UserMessage(code)); ferr != nil {
			logger.Error("could not mark post failed", "event", "mark_failed_error", "error", ferr)
		}
		logger.Error("post publish failed", "event", "publish_failed", "attempt", attempt, "code", code, "error", err)

		s.record(ctx, post, attempt, nil, err)
		return &models.PublishError{PostID: post.ID, Platform: post.Platform, Err: err}
	}

	logger.Info("post published", "event", "published", "attempt", attempt, "external_id", result.ExternalID)
	s.record(ctx, post, attempt, result, nil)
	return nil
}

func (s *publisherService) dispatch(ctx context.Context, post *models.ScheduledPost) (*models.PublishResult, error) {
	if post.Content.Platform != post.Platform {
		return nil, models.NewValidationError("content.platform", "content platform does not match post platform")
	}

	switch data := post.Content.Data.(type) {
	case *models.InstagramPost:
		return s.ig.Publish(ctx, post.UserID, data)
	case *models.YouTubePost:
		return s.yt.Publish(ctx, post.UserID, data)
	case *models.TikTokPost:
		return s.tt.Publish(ctx, post.UserID, data)
	}
	return nil, fmt.Errorf("no publisher for content of type %T", post.Content.Data)
}

func (s *publisherService) record(ctx context.Context, post *models.ScheduledPost, attempt int, result *models.PublishResult, publishErr error) {
	ph := &models.PostingHistory{
		PostID:   post.ID,
		UserID:   post.UserID,
		Platform: post.Platform,
		Attempt:  attempt,
		Success:  publishErr == nil,
	}
	if result != nil {
		ph.ExternalID = result.ExternalID
	}
	if publishErr != nil {
		ph.ErrorCode = models.ErrorCode(publishErr)
		ph.ErrorMessage = publishErr.Error()
	}

	if _, err := s.ph.Create(ctx, ph); err != nil {
		slog.Error("error saving posting history", "post_id", post.ID, "error", err)
	}
}

func (s *publisherService) ValidateCredentials(ctx context.Context, userID string, platform models.Platform) bool {
	switch platform {
	case models.PlatformInstagram:
		return s.ig.ValidateCredentials(ctx, userID)
	case models.PlatformYoutube:
		return s.yt.ValidateCredentials(ctx, userID)
	case models.PlatformTiktok:
		return s.tt.ValidateCredentials(ctx, userID)
	}
	return false
}

// releaseStale moves a post stuck in processing to failed so it can be
// retried, edited or removed.
func releaseStale(ctx context.Context, pr repository.PostRepository, post *models.ScheduledPost, now time.Time) error {
	err := pr.ReleaseStale(ctx, post.ID, now.Add(-models.StaleProcessingAfter), models.UserMessage(models.ErrorCodeInternal))
	if err != nil {
		return err
	}
	slog.Info("stale post released", "event", "stale_released", "post_id", post.ID, "processing_since", post.UpdatedAt)
	return nil
}
