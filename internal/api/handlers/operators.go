package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
)

type setPresenceRequest struct {
	Status string `json:"status"`
}

func (h *HandlerSet) setPresence(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid operator id")
	}

	var req setPresenceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	status := domain.PresenceStatus(req.Status)
	if status != domain.PresenceOnline && status != domain.PresenceOffline {
		return fiber.NewError(http.StatusBadRequest, "status must be online or offline")
	}

	if err := h.presence.SetStatus(ctx.Context(), id, status); err != nil {
		return translateError(err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}
