package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	inboundsvc "github.com/acme/whatsapp-campaign-center/internal/service/inbound"
)

type inboundMessageRequest struct {
	Phone    string    `json:"phone"`
	PushName string    `json:"push_name"`
	LineID   uuid.UUID `json:"line_id"`
	Body     string    `json:"body"`
}

func (h *HandlerSet) inboundMessage(ctx *fiber.Ctx) error {
	var req inboundMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	contact, err := h.inbound.Record(ctx.Context(), inboundsvc.RecordInput{
		Phone:    req.Phone,
		PushName: req.PushName,
		LineID:   req.LineID,
		Body:     req.Body,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"contact_id": contact.ID,
		"phone":      contact.Phone,
	})
}

func (h *HandlerSet) markCPC(ctx *fiber.Ctx) error {
	phone := ctx.Params("phone")
	if phone == "" {
		return fiber.NewError(http.StatusBadRequest, "phone is required")
	}

	if err := h.inbound.MarkCPC(ctx.Context(), phone); err != nil {
		return translateError(err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}
