package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

var errorStatus = map[string]int{
	models.ErrorCodeValidation:   fiber.StatusBadRequest,
	models.ErrorCodeCredentials:  fiber.StatusBadRequest,
	models.ErrorCodeNotFound:     fiber.StatusNotFound,
	models.ErrorCodeConflict:     fiber.StatusConflict,
	models.ErrorCodeUpstream:     fiber.StatusBadGateway,
	models.ErrorCodeUnauthorized: fiber.StatusUnauthorized,
	models.ErrorCodeStore:        fiber.StatusInternalServerError,
	models.ErrorCodeInternal:     fiber.StatusInternalServerError,
}

// respondError writes err as a JSON error body. Only validation messages are
// passed through; every other kind is replaced by its user message.
func respondError(c *fiber.Ctx, err error) error {
	code := models.ErrorCode(err)
	status, ok := errorStatus[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	resp := transfer.ErrorResponse{Error: models.UserMessage(code), Code: code}

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		resp.Error = ve.Message
		resp.Field = ve.Field
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
	} else {
		slog.Info("request rejected", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(transfer.ErrorResponse{
		Error: message,
		Code:  models.ErrorCodeValidation,
	})
}
