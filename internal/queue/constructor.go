package queue

import "context"

// PostRetrier runs the publish sequence again for a post.
type PostRetrier interface {
	RetryFailedPost(ctx context.Context, postID string) error
}

type Queue struct {
	retrier PostRetrier
}

func NewQueue(retrier PostRetrier) *Queue {
	return &Queue{retrier: retrier}
}

const TaskTypeRetryPost = "post:retry"

type RetryPostPayload struct {
	PostID string `json:"post_id"`
}
