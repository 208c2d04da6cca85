package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	campaignsvc "github.com/acme/whatsapp-campaign-center/internal/service/campaign"
)

type createCampaignRequest struct {
	Name       string     `json:"name"`
	SegmentID  *uuid.UUID `json:"segment_id"`
	Speed      string     `json:"speed"`
	EndTime    string     `json:"end_time"`
	TemplateID *uuid.UUID `json:"template_id"`
	Message    string     `json:"message"`
}

type campaignResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	SegmentID  *uuid.UUID `json:"segment_id,omitempty"`
	Speed      string     `json:"speed"`
	EndTime    *string    `json:"end_time,omitempty"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type listCampaignsResponse struct {
	Campaigns []campaignResponse `json:"campaigns"`
}

type uploadContactsRequest struct {
	Contacts   []contactRowRequest `json:"contacts"`
	Message    string              `json:"message"`
	TemplateID *uuid.UUID          `json:"template_id"`
}

type contactRowRequest struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	CPF      string `json:"cpf"`
	Contract string `json:"contract"`
}

type uploadContactsResponse struct {
	campaignsvc.PlanSummary
	CSVErrors []string `json:"csv_errors,omitempty"`
}

type campaignStatsResponse struct {
	TotalContacts int64  `json:"total_contacts"`
	Sent          int64  `json:"sent"`
	Failed        int64  `json:"failed"`
	Pending       int64  `json:"pending"`
	Responses     int64  `json:"responses"`
	SuccessRate   string `json:"success_rate"`
	ResponseRate  string `json:"response_rate"`
}

type deliveryResponse struct {
	ID           uuid.UUID  `json:"id"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	LineID       uuid.UUID  `json:"line_id"`
	OperatorID   uuid.UUID  `json:"operator_id"`
	Round        int        `json:"round"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	LastError    *string    `json:"last_error,omitempty"`
	TemplateID   *uuid.UUID `json:"template_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type listDeliveriesResponse struct {
	Deliveries []deliveryResponse `json:"deliveries"`
}

func (h *HandlerSet) createCampaign(ctx *fiber.Ctx) error {
	var req createCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := campaignsvc.CreateDefinitionInput{
		Name:       req.Name,
		SegmentID:  req.SegmentID,
		Speed:      domain.Speed(req.Speed),
		TemplateID: req.TemplateID,
		Message:    req.Message,
	}
	if req.EndTime != "" {
		tod, err := domain.ParseTimeOfDay(req.EndTime)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		input.EndTime = &tod
	}

	def, err := h.campaigns.CreateDefinition(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toCampaignResponse(def))
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	var afterID *uuid.UUID
	if afterStr := ctx.Query("after_id"); afterStr != "" {
		if id, err := uuid.Parse(afterStr); err == nil {
			afterID = &id
		}
	}

	defs, err := h.campaigns.ListDefinitions(ctx.Context(), afterID, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listCampaignsResponse{Campaigns: make([]campaignResponse, 0, len(defs))}
	for _, def := range defs {
		resp.Campaigns = append(resp.Campaigns, toCampaignResponse(def))
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	def, err := h.campaigns.GetDefinition(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toCampaignResponse(def))
}

// uploadContacts accepts either a multipart CSV (field "file") or a JSON
// batch, and schedules the whole batch in one plan.
func (h *HandlerSet) uploadContacts(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	input := campaignsvc.UploadInput{}
	var csvErrors []string

	if file, ferr := ctx.FormFile("file"); ferr == nil {
		f, err := file.Open()
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "unreadable file upload")
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "unreadable file upload")
		}

		rows, lineErrors, err := campaignsvc.ParseContactCSV(data)
		if err != nil {
			return translateError(err)
		}
		input.Rows = rows
		input.Message = ctx.FormValue("message")
		csvErrors = lineErrors
	} else {
		var req uploadContactsRequest
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		input.Message = req.Message
		input.TemplateID = req.TemplateID
		input.Rows = make([]campaignsvc.ContactRow, 0, len(req.Contacts))
		for _, c := range req.Contacts {
			input.Rows = append(input.Rows, campaignsvc.ContactRow{
				Phone:    c.Phone,
				Name:     c.Name,
				CPF:      c.CPF,
				Contract: c.Contract,
			})
		}
	}

	summary, err := h.campaigns.UploadContacts(ctx.Context(), id, input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusAccepted).JSON(uploadContactsResponse{
		PlanSummary: *summary,
		CSVErrors:   csvErrors,
	})
}

func (h *HandlerSet) campaignStats(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	def, err := h.campaigns.GetDefinition(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	stats, err := h.campaigns.Stats(ctx.Context(), def.Name)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(campaignStatsResponse{
		TotalContacts: stats.TotalContacts,
		Sent:          stats.Sent,
		Failed:        stats.Failed,
		Pending:       stats.Pending,
		Responses:     stats.Responses,
		SuccessRate:   stats.SuccessRate,
		ResponseRate:  stats.ResponseRate,
	})
}

func (h *HandlerSet) listDeliveries(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	def, err := h.campaigns.GetDefinition(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	deliveries, err := h.campaigns.ListDeliveries(ctx.Context(), def.Name, limit, offset)
	if err != nil {
		return translateError(err)
	}

	resp := listDeliveriesResponse{Deliveries: make([]deliveryResponse, 0, len(deliveries))}
	for _, d := range deliveries {
		resp.Deliveries = append(resp.Deliveries, deliveryResponse{
			ID:           d.ID,
			ContactName:  d.ContactName,
			ContactPhone: d.ContactPhone,
			LineID:       d.LineID,
			OperatorID:   d.OperatorID,
			Round:        d.Round,
			Status:       string(d.Status),
			AttemptCount: d.AttemptCount,
			LastError:    d.LastError,
			TemplateID:   d.TemplateID,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func toCampaignResponse(def *domain.CampaignDefinition) campaignResponse {
	resp := campaignResponse{
		ID:         def.ID,
		Name:       def.Name,
		SegmentID:  def.SegmentID,
		Speed:      string(def.Policy.Speed),
		TemplateID: def.TemplateID,
		Message:    def.Message,
		CreatedAt:  def.CreatedAt,
		UpdatedAt:  def.UpdatedAt,
	}
	if def.Policy.EndTime != nil {
		formatted := def.Policy.EndTime.String()
		resp.EndTime = &formatted
	}
	return resp
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}
