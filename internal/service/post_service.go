package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.ScheduledPost, error)
	UpdatePost(ctx context.Context, userID, postID string, pu *transfer.PostUpdate) (*models.ScheduledPost, error)
	PostInfo(ctx context.Context, userID, postID string) (*models.ScheduledPost, error)
	List(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	Upcoming(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	Attempts(ctx context.Context, userID, postID string) ([]*transfer.PublishAttempt, error)
	Remove(ctx context.Context, userID, postID string) error
}

type postService struct {
	pr  repository.PostRepository
	ph  repository.PostingHistoryRepository
	now func() time.Time
}

func NewPostService(pr repository.PostRepository, ph repository.PostingHistoryRepository) PostService {
	return &postService{
		pr:  pr,
		ph:  ph,
		now: time.Now,
	}
}

func (s *postService) parseScheduledAt(value string) (time.Time, error) {
	scheduledAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, models.NewValidationError("scheduled_at", "must be an RFC 3339 timestamp")
	}
	if !scheduledAt.After(s.now()) {
		return time.Time{}, models.NewValidationError("scheduled_at", "must be in the future")
	}
	return scheduledAt, nil
}

func (s *postService) CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.ScheduledPost, error) {
	if pc == nil {
		return nil, models.NewValidationError("body", "post data is required")
	}

	scheduledAt, err := s.parseScheduledAt(pc.ScheduledAt)
	if err != nil {
		return nil, err
	}

	post := &models.ScheduledPost{
		UserID:      userID,
		Platform:    pc.Platform,
		ScheduledAt: scheduledAt,
		Status:      models.PostStatusScheduled,
		Content:     pc.Content,
	}

	created, err := s.pr.Create(ctx, post)
	if err != nil {
		return nil, err
	}

	slog.Info("post scheduled", "event", "post_created", "post_id", created.ID, "platform", created.Platform, "scheduled_at", created.ScheduledAt)
	return created, nil
}

// UpdatePost applies a user edit. Users may cancel a post, put a failed
// post back on the schedule, or change the time or content of a post that
// has not been published. A post stuck processing past
// models.StaleProcessingAfter is treated as failed.
func (s *postService) UpdatePost(ctx context.Context, userID, postID string, pu *transfer.PostUpdate) (*models.ScheduledPost, error) {
	post, err := s.PostInfo(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if post, err = s.recoverStale(ctx, post); err != nil {
		return nil, err
	}
	if pu == nil {
		return post, nil
	}

	patch := &models.PostPatch{Content: pu.Content}
	if pu.ScheduledAt != nil {
		scheduledAt, err := s.parseScheduledAt(*pu.ScheduledAt)
		if err != nil {
			return nil, err
		}
		patch.ScheduledAt = &scheduledAt
	}
	if pu.Content != nil && pu.Content.Platform != post.Platform {
		return nil, models.NewValidationError("content.platform", "the platform of a post cannot change")
	}

	editable := post.Status == models.PostStatusScheduled || post.Status == models.PostStatusFailed
	if (patch.ScheduledAt != nil || patch.Content != nil) && !editable {
		return nil, models.ErrInvalidTransition
	}

	if pu.Status != nil && *pu.Status != post.Status {
		if *pu.Status != models.PostStatusCancelled && *pu.Status != models.PostStatusScheduled {
			return nil, models.ErrInvalidTransition
		}
		if *pu.Status == models.PostStatusScheduled {
			scheduledAt := post.ScheduledAt
			if patch.ScheduledAt != nil {
				scheduledAt = *patch.ScheduledAt
			}
			if !scheduledAt.After(s.now()) {
				return nil, models.NewValidationError("scheduled_at", "choose a time in the future to schedule this post again")
			}
		}
		if err := s.pr.TransitionStatus(ctx, post.ID, post.Status, *pu.Status, ""); err != nil {
			return nil, err
		}
	}

	if patch.ScheduledAt == nil && patch.Content == nil {
		return s.pr.GetByID(ctx, post.ID)
	}
	return s.pr.Update(ctx, post.ID, patch)
}

// PostInfo returns the post if it belongs to userID.
func (s *postService) PostInfo(ctx context.Context, userID, postID string) (*models.ScheduledPost, error) {
	if userID == "" {
		err := errors.New("user is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	return s.pr.GetByUserID(ctx, userID)
}

func (s *postService) Upcoming(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	return s.pr.GetUpcoming(ctx, userID, s.now())
}

func (s *postService) Attempts(ctx context.Context, userID, postID string) ([]*transfer.PublishAttempt, error) {
	if _, err := s.PostInfo(ctx, userID, postID); err != nil {
		return nil, err
	}

	history, err := s.ph.GetByPostID(ctx, postID)
	if err != nil {
		return nil, &models.StoreError{Op: "list attempts", Err: err}
	}

	attempts := make([]*transfer.PublishAttempt, 0, len(history))
	for _, h := range history {
		a := &transfer.PublishAttempt{
			Attempt:    h.Attempt,
			Success:    h.Success,
			ExternalID: h.ExternalID,
			ErrorCode:  h.ErrorCode,
			CreatedAt:  h.CreatedAt,
		}
		if !h.Success {
			a.Message = models.UserMessage(h.ErrorCode)
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID string) error {
	post, err := s.PostInfo(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post, err = s.recoverStale(ctx, post); err != nil {
		return err
	}
	if post.Status == models.PostStatusProcessing {
		return models.ErrInvalidTransition
	}
	return s.pr.Delete(ctx, post.ID)
}

func (s *postService) recoverStale(ctx context.Context, post *models.ScheduledPost) (*models.ScheduledPost, error) {
	if !post.ProcessingStale(s.now()) {
		return post, nil
	}
	if err := releaseStale(ctx, s.pr, post, s.now()); err != nil {
		return nil, err
	}
	return s.pr.GetByID(ctx, post.ID)
}
