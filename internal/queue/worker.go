package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/models"
)

func (j *Queue) HandleRetryPostTask(ctx context.Context, task *asynq.Task) error {
	var payload RetryPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: decode payload: %v", asynq.SkipRetry, err)
	}
	if payload.PostID == "" {
		return fmt.Errorf("%w: post id is missing", asynq.SkipRetry)
	}

	err := j.retrier.RetryFailedPost(ctx, payload.PostID)
	if err == nil {
		return nil
	}

	slog.Error("queued retry failed", "event", "retry_failed", "post_id", payload.PostID, "error", err)

	var publishErr *models.PublishError
	if errors.As(err, &publishErr) ||
		errors.Is(err, models.ErrPostNotFound) ||
		errors.Is(err, models.ErrStatusConflict) ||
		errors.Is(err, models.ErrInvalidTransition) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}

func (j *Queue) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeRetryPost, j.HandleRetryPostTask)
	return mux
}
