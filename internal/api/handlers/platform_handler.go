package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dailyquill/dailyquill/internal/connector"
	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/oauth"
	"github.com/dailyquill/dailyquill/internal/repository"
	"github.com/dailyquill/dailyquill/internal/secrets"
	"github.com/dailyquill/dailyquill/internal/transfer"
)

type PlatformHandler struct {
	orchestrator *oauth.Orchestrator
	keys         *secrets.Keyring
	connectors   map[models.PlatformID]connector.Connector
	settings     repository.SettingsRepository
}

func NewPlatformHandler(
	orchestrator *oauth.Orchestrator,
	keys *secrets.Keyring,
	connectors map[models.PlatformID]connector.Connector,
	settings repository.SettingsRepository,
) *PlatformHandler {
	return &PlatformHandler{
		orchestrator: orchestrator,
		keys:         keys,
		connectors:   connectors,
		settings:     settings,
	}
}

func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	enabled := map[models.PlatformID]bool{}
	for _, p := range models.Platforms {
		enabled[p.ID] = true
	}
	if settings, err := h.settings.ListPlatformSettings(c.Context()); err == nil {
		for _, s := range settings {
			enabled[s.Platform] = s.Enabled
		}
	}

	var out []transfer.PlatformInfo
	for _, p := range models.Platforms {
		info := transfer.PlatformInfo{
			ID:          string(p.ID),
			DisplayName: p.DisplayName,
			Auth:        string(p.Auth),
			Enabled:     enabled[p.ID],
		}
		if conn, ok := h.connectors[p.ID]; ok {
			info.Configured = conn.IsConfigured(c.Context())
		}
		out = append(out, info)
	}

	return c.JSON(out)
}

func (h *PlatformHandler) SaveCredential(c *fiber.Ctx) error {
	platform, ok := platformFromParam(c)
	if !ok {
		return unknownPlatform(c)
	}

	var body transfer.CredentialRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	cred := &models.Credential{
		Platform:     platform.ID,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		AccessToken:  body.AccessToken,
		AccessSecret: body.AccessSecret,
	}
	if err := h.keys.SaveCredential(c.Context(), cred); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to save credential",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// Connect starts the browser flow and returns the URL the user must
// open. The exchange completes on the local callback listener.
func (h *PlatformHandler) Connect(c *fiber.Ctx) error {
	platform, ok := platformFromParam(c)
	if !ok {
		return unknownPlatform(c)
	}

	authURL, results, err := h.orchestrator.StartFlow(c.Context(), platform.ID)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, oauth.ErrFlowInProgress) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	go func() {
		result := <-results
		if result.Err != nil {
			slog.Info("authorization flow failed", "platform", platform.ID, "error", result.Err.Error())
			return
		}
		slog.Info("platform connected", "platform", platform.ID)
	}()

	return c.JSON(fiber.Map{"auth_url": authURL})
}

func (h *PlatformHandler) SetManualToken(c *fiber.Ctx) error {
	platform, ok := platformFromParam(c)
	if !ok {
		return unknownPlatform(c)
	}

	var body transfer.ManualTokenRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	expiresAt := time.Now().Add(60 * 24 * time.Hour)
	if body.ExpiresInDays > 0 {
		expiresAt = time.Now().Add(time.Duration(body.ExpiresInDays) * 24 * time.Hour)
	}

	if err := h.orchestrator.SetManualToken(c.Context(), platform.ID, body.AccessToken, expiresAt); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PlatformHandler) Disconnect(c *fiber.Ctx) error {
	platform, ok := platformFromParam(c)
	if !ok {
		return unknownPlatform(c)
	}

	if err := h.orchestrator.Disconnect(c.Context(), platform.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect platform",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PlatformHandler) ToggleEnabled(c *fiber.Ctx) error {
	platform, ok := platformFromParam(c)
	if !ok {
		return unknownPlatform(c)
	}

	var body transfer.ToggleRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.settings.SetPlatformEnabled(c.Context(), platform.ID, body.Enabled); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to update platform",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func platformFromParam(c *fiber.Ctx) (models.Platform, bool) {
	return models.PlatformByID(models.PlatformID(c.Params("platform")))
}

func unknownPlatform(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Unknown platform",
	})
}
