package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/repository"
	"github.com/dailyquill/dailyquill/internal/scheduler"
	"github.com/dailyquill/dailyquill/internal/transfer"
)

type SettingsHandler struct {
	settings  repository.SettingsRepository
	registrar scheduler.TriggerRegistrar
	runDaily  func()
}

func NewSettingsHandler(settings repository.SettingsRepository, registrar scheduler.TriggerRegistrar, runDaily func()) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		registrar: registrar,
		runDaily:  runDaily,
	}
}

func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to read settings",
		})
	}
	if settings == nil {
		settings = &models.Settings{PostingHour: 9, PostingMinute: 0}
	}

	return c.JSON(settings)
}

// UpdateSettings persists the new posting time and reinstalls the
// daily trigger, so exactly one entry stays active.
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var body transfer.SettingsUpdate
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.registrar.Install(body.PostingHour, body.PostingMinute, h.runDaily); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.settings.UpdatePostingTime(c.Context(), body.PostingHour, body.PostingMinute); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to update settings",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
