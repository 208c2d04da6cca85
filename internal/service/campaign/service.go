package campaign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acme/whatsapp-campaign-center/internal/config"
	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/phone"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
	"github.com/acme/whatsapp-campaign-center/internal/repository"
	"github.com/acme/whatsapp-campaign-center/internal/roster"
	"github.com/acme/whatsapp-campaign-center/internal/scheduler"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

// RosterResolver yields the schedulable slot pool for a segment.
type RosterResolver interface {
	Resolve(ctx context.Context, segmentID *uuid.UUID) (*roster.Roster, error)
}

// JobDispatcher enqueues delivery jobs.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job queue.DeliveryJob) error
}

// Service orchestrates campaign definitions, contact uploads and statistics.
type Service struct {
	campaigns     repository.CampaignRepository
	contacts      repository.ContactRepository
	deliveries    repository.DeliveryRepository
	conversations repository.ConversationStore
	resolver      RosterResolver
	dispatcher    JobDispatcher
	dispatch      config.DispatchConfig
	clock         func() time.Time
}

// NewService constructs a campaign service.
func NewService(
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	deliveries repository.DeliveryRepository,
	conversations repository.ConversationStore,
	resolver RosterResolver,
	dispatcher JobDispatcher,
	dispatch config.DispatchConfig,
) *Service {
	return &Service{
		campaigns:     campaigns,
		contacts:      contacts,
		deliveries:    deliveries,
		conversations: conversations,
		resolver:      resolver,
		dispatcher:    dispatcher,
		dispatch:      normalizeDispatch(dispatch),
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateDefinitionInput captures campaign creation parameters.
type CreateDefinitionInput struct {
	Name       string
	SegmentID  *uuid.UUID
	Speed      domain.Speed
	EndTime    *domain.TimeOfDay
	TemplateID *uuid.UUID
	Message    string
}

// CreateDefinition provisions a reusable campaign definition.
func (s *Service) CreateDefinition(ctx context.Context, input CreateDefinitionInput) (*domain.CampaignDefinition, error) {
	if err := validateDefinitionInput(input); err != nil {
		return nil, err
	}

	now := s.clock()
	def := &domain.CampaignDefinition{
		ID:        uuid.New(),
		Name:      input.Name,
		SegmentID: input.SegmentID,
		Policy: domain.SendPolicy{
			Speed:   normalizeSpeed(input.Speed),
			EndTime: input.EndTime,
		},
		TemplateID: input.TemplateID,
		Message:    input.Message,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.campaigns.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("campaign service: create definition: %w", err)
	}
	return def, nil
}

// GetDefinition retrieves a definition by id.
func (s *Service) GetDefinition(ctx context.Context, id uuid.UUID) (*domain.CampaignDefinition, error) {
	return s.campaigns.Get(ctx, id)
}

// ListDefinitions returns definitions.
func (s *Service) ListDefinitions(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.CampaignDefinition, error) {
	return s.campaigns.List(ctx, afterID, limit)
}

// ListDeliveries returns delivery rows of a campaign, ordered by round.
func (s *Service) ListDeliveries(ctx context.Context, campaignName string, limit, offset int) ([]domain.Delivery, error) {
	return s.deliveries.ListByCampaign(ctx, campaignName, limit, offset)
}

// ContactRow is one uploaded contact before canonicalization.
type ContactRow struct {
	Phone    string
	Name     string
	CPF      string
	Contract string
}

// UploadInput carries an upload batch. Message and TemplateID, when set,
// override the definition defaults for this batch only.
type UploadInput struct {
	Rows       []ContactRow
	Message    string
	TemplateID *uuid.UUID
}

// FailedContact records one row that could not be scheduled.
type FailedContact struct {
	Phone  string `json:"phone"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// PlanSummary reports the outcome of an upload: what was scheduled, on how
// many lines, and which rows failed.
type PlanSummary struct {
	CampaignName        string          `json:"campaign_name"`
	TotalContacts       int             `json:"total_contacts"`
	Queued              int             `json:"queued"`
	Operators           int             `json:"operators"`
	Lines               int             `json:"lines"`
	Rounds              int             `json:"rounds"`
	IntervalMinutes     float64         `json:"interval_minutes"`
	EndTime             string          `json:"end_time"`
	EstimatedCompletion string          `json:"estimated_completion"`
	FailedContacts      []FailedContact `json:"failed_contacts"`
}

// UploadContacts schedules a batch of contacts for a campaign. The whole
// batch shares one round-robin plan over the currently available lines.
// Row-level failures are collected into the summary and never abort the
// batch; only an empty roster rejects the upload outright.
func (s *Service) UploadContacts(ctx context.Context, campaignID uuid.UUID, input UploadInput) (*PlanSummary, error) {
	tracer := otel.Tracer("wacc.campaign")
	ctx, span := tracer.Start(ctx, "campaign.upload", trace.WithAttributes(
		attribute.String("campaign.id", campaignID.String()),
		attribute.Int("contacts", len(input.Rows)),
	))
	defer span.End()

	def, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(input.Rows) == 0 {
		return nil, fmt.Errorf("%w: no contacts in upload", apperrors.ErrValidation)
	}

	pool, err := s.resolver.Resolve(ctx, def.SegmentID)
	if err != nil {
		return nil, err
	}

	summary := &PlanSummary{
		CampaignName:   def.Name,
		TotalContacts:  len(input.Rows),
		Operators:      len(pool.Operators),
		Lines:          len(pool.Slots),
		FailedContacts: []FailedContact{},
	}

	// Canonicalize up front so the plan is built over schedulable rows only.
	// Duplicate phones within one batch keep the first occurrence.
	valid := make([]ContactRow, 0, len(input.Rows))
	seen := make(map[string]bool, len(input.Rows))
	for _, row := range input.Rows {
		canonical := phone.Canonical(row.Phone)
		if canonical == "" {
			summary.FailedContacts = append(summary.FailedContacts, FailedContact{
				Phone: row.Phone, Name: row.Name, Reason: "invalid phone",
			})
			continue
		}
		if seen[canonical] {
			summary.FailedContacts = append(summary.FailedContacts, FailedContact{
				Phone: canonical, Name: row.Name, Reason: "duplicate phone in batch",
			})
			continue
		}
		seen[canonical] = true
		row.Phone = canonical
		valid = append(valid, row)
	}

	now := s.clock()
	plan := scheduler.Build(len(valid), pool.Slots, def.Policy, now)

	summary.Rounds = plan.Rounds
	summary.IntervalMinutes = math.Round(plan.IntervalMinutes()*100) / 100
	summary.EndTime = plan.EndTime.Format(time.RFC3339)
	summary.EstimatedCompletion = plan.EstimatedCompletion.Format(time.RFC3339)

	message := def.Message
	if input.Message != "" {
		message = input.Message
	}
	templateID := def.TemplateID
	if input.TemplateID != nil {
		templateID = input.TemplateID
	}

	for _, a := range plan.Assignments {
		row := valid[a.ContactIndex]
		if err := s.commitAssignment(ctx, def, row, a, message, templateID, now); err != nil {
			summary.FailedContacts = append(summary.FailedContacts, FailedContact{
				Phone: row.Phone, Name: row.Name, Reason: err.Error(),
			})
			continue
		}
		summary.Queued++
	}

	return summary, nil
}

// commitAssignment persists one planned contact and enqueues its job.
func (s *Service) commitAssignment(
	ctx context.Context,
	def *domain.CampaignDefinition,
	row ContactRow,
	a scheduler.Assignment,
	message string,
	templateID *uuid.UUID,
	now time.Time,
) error {
	patch := domain.ContactPatch{
		Name:      row.Name,
		CPF:       optional(row.CPF),
		Contract:  optional(row.Contract),
		SegmentID: def.SegmentID,
	}
	contact, err := s.contacts.Upsert(ctx, row.Phone, patch)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}

	delivery := &domain.Delivery{
		ID:           uuid.New(),
		CampaignName: def.Name,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		LineID:       a.LineID,
		OperatorID:   a.OperatorID,
		Round:        a.Round,
		Message:      message,
		TemplateID:   templateID,
		Status:       domain.DeliveryStatusPending,
		AttemptCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deliveries.Create(ctx, delivery); err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}

	job := queue.DeliveryJob{
		DeliveryID:   delivery.ID,
		CampaignName: def.Name,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		LineID:       a.LineID,
		OperatorID:   a.OperatorID,
		Round:        a.Round,
		Message:      message,
		TemplateID:   templateID,
		FireAt:       now.Add(a.Delay),
		Attempt:      1,
		MaxAttempts:  s.dispatch.MaxAttempts,
		RetryBaseMs:  s.dispatch.BaseDelay.Milliseconds(),
		RetryMaxMs:   s.dispatch.MaxDelay.Milliseconds(),
		RetryJitter:  s.dispatch.Jitter,
		EnqueuedAt:   now,
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		reason := err.Error()
		if serr := s.deliveries.SetStatus(ctx, delivery.ID, domain.DeliveryStatusFailed, 0, &reason); serr != nil {
			return fmt.Errorf("enqueue job: %w (and mark failed: %v)", err, serr)
		}
		return fmt.Errorf("enqueue job: %w", err)
	}

	return nil
}

// Stats aggregates delivery outcomes and reply detection for one campaign.
func (s *Service) Stats(ctx context.Context, campaignName string) (*domain.CampaignStats, error) {
	total, sent, failed, err := s.deliveries.Counts(ctx, campaignName)
	if err != nil {
		return nil, fmt.Errorf("campaign service: count deliveries: %w", err)
	}

	stats := &domain.CampaignStats{
		TotalContacts: total,
		Sent:          sent,
		Failed:        failed,
		Pending:       total - sent - failed,
		SuccessRate:   "0",
		ResponseRate:  "0",
	}
	if total == 0 {
		return stats, nil
	}

	responses, err := s.countResponses(ctx, campaignName)
	if err != nil {
		return nil, err
	}
	stats.Responses = responses

	stats.SuccessRate = fmt.Sprintf("%.2f", float64(sent)/float64(total)*100)
	stats.ResponseRate = fmt.Sprintf("%.2f", float64(responses)/float64(total)*100)
	return stats, nil
}

// countResponses counts contacts with at least one inbound message since the
// campaign started. Inbound traffic is not tagged with a campaign, so any
// reply after the first delivery row counts. A response to another campaign
// running in the same window inflates the number; accepted approximation.
func (s *Service) countResponses(ctx context.Context, campaignName string) (int64, error) {
	since, err := s.deliveries.EarliestCreatedAt(ctx, campaignName)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("campaign service: earliest delivery: %w", err)
	}

	phones, err := s.deliveries.Phones(ctx, campaignName)
	if err != nil {
		return 0, fmt.Errorf("campaign service: list phones: %w", err)
	}

	var responses int64
	for _, p := range phones {
		replied, err := s.conversations.HasInboundSince(ctx, p, since)
		if err != nil {
			return 0, fmt.Errorf("campaign service: inbound lookup for %s: %w", p, err)
		}
		if replied {
			responses++
		}
	}
	return responses, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalizeSpeed(speed domain.Speed) domain.Speed {
	if speed == "" {
		return domain.SpeedMedium
	}
	return speed
}

func normalizeDispatch(cfg config.DispatchConfig) config.DispatchConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Minute
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

func validateDefinitionInput(input CreateDefinitionInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: campaign name is required", apperrors.ErrValidation)
	}
	if input.Message == "" && input.TemplateID == nil {
		return fmt.Errorf("%w: message or template is required", apperrors.ErrValidation)
	}
	switch input.Speed {
	case "", domain.SpeedFast, domain.SpeedMedium, domain.SpeedSlow:
	default:
		return fmt.Errorf("%w: unknown speed %q", apperrors.ErrValidation, input.Speed)
	}
	return nil
}
