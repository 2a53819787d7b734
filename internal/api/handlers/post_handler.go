package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type FailedPostRetrier interface {
	GetFailedPosts(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	RetryFailedPost(ctx context.Context, postID string) error
}

type PostHandler struct {
	s           service.PostService
	scheduler   FailedPostRetrier
	AsynqClient *asynq.Client
}

// NewPostHandler builds the post routes. With a nil asynqClient retries run
// inline in the request.
func NewPostHandler(service service.PostService, scheduler FailedPostRetrier, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: service, scheduler: scheduler, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		if models.IsValidationError(err) {
			return respondError(c, err)
		}
		return badRequest(c, "Unable to parse request body")
	}

	post, err := h.s.CreatePost(c.Context(), GetUserID(c), &pc)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpcomingPosts(c *fiber.Ctx) error {
	posts, err := h.s.Upcoming(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) FailedPosts(c *fiber.Ctx) error {
	posts, err := h.scheduler.GetFailedPosts(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.PostInfo(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		if models.IsValidationError(err) {
			return respondError(c, err)
		}
		return badRequest(c, "Unable to parse request body")
	}

	post, err := h.s.UpdatePost(c.Context(), GetUserID(c), c.Params("id"), &pu)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) PostAttempts(c *fiber.Ctx) error {
	attempts, err := h.s.Attempts(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(attempts)
}

// RetryPost publishes a failed post again, through the queue when one is
// configured. A post stuck processing past models.StaleProcessingAfter is
// retried too.
func (h *PostHandler) RetryPost(c *fiber.Ctx) error {
	post, err := h.s.PostInfo(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if post.Status != models.PostStatusFailed && !post.ProcessingStale(time.Now()) {
		return respondError(c, models.ErrInvalidTransition)
	}

	if h.AsynqClient != nil {
		taskID, err := queue.EnqueueRetry(h.AsynqClient, queue.RetryPostPayload{PostID: post.ID})
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(transfer.ErrorResponse{
				Error: "Error scheduling retry",
				Code:  models.ErrorCodeInternal,
			})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Retry queued",
			"task_id": taskID,
		})
	}

	if err := h.scheduler.RetryFailedPost(c.Context(), post.ID); err != nil {
		return respondError(c, err)
	}

	post, err = h.s.PostInfo(c.Context(), GetUserID(c), post.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}
