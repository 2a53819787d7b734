package queue

import (
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// EnqueueRetry queues a retry for the post. The task itself is never
// redelivered: one enqueue is one publish attempt.
func EnqueueRetry(asynqClient *asynq.Client, payload RetryPostPayload) (string, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypeRetryPost, taskPayload, asynq.MaxRetry(0))

	info, err := asynqClient.Enqueue(task)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("retry queued", "event", "retry_queued", "post_id", payload.PostID, "task_id", info.ID)
	return info.ID, nil
}
