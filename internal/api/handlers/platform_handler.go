package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type PlatformHandler struct {
	ps service.PlatformService
}

func NewPlatformHandler(ps service.PlatformService) *PlatformHandler {
	return &PlatformHandler{ps: ps}
}

func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	platforms, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(platforms)
}

func (h *PlatformHandler) SaveCredentials(c *fiber.Ctx) error {
	var in transfer.CredentialsInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Unable to parse request body")
	}

	platform := models.Platform(c.Params("platform"))
	if err := h.ps.SaveCredentials(c.Context(), GetUserID(c), platform, &in); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Credentials saved",
	})
}

func (h *PlatformHandler) DeletePlatform(c *fiber.Ctx) error {
	platform := models.Platform(c.Params("platform"))
	if err := h.ps.Delete(c.Context(), GetUserID(c), platform); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PlatformHandler) ValidatePlatform(c *fiber.Ctx) error {
	platform := models.Platform(c.Params("platform"))
	valid, err := h.ps.Validate(c.Context(), GetUserID(c), platform)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"platform": platform,
		"valid":    valid,
	})
}
