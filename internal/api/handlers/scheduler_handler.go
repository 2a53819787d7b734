package handlers

import (
	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/postpilot/internal/jobs"
)

type SchedulerHandler struct {
	scheduler *job.PostScheduler
}

func NewSchedulerHandler(scheduler *job.PostScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

func (h *SchedulerHandler) status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"running": h.scheduler.IsRunning(),
	})
}

func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	return h.status(c)
}

func (h *SchedulerHandler) Start(c *fiber.Ctx) error {
	if err := h.scheduler.Start(); err != nil {
		return respondError(c, err)
	}
	return h.status(c)
}

func (h *SchedulerHandler) Stop(c *fiber.Ctx) error {
	h.scheduler.Stop()
	return h.status(c)
}
