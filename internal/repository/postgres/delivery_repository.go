package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/repository"
)

// DeliveryRepository persists per-contact outbound-message records.
type DeliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository constructs the repository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create inserts a delivery record.
func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	q := `INSERT INTO campaign_deliveries (
		id, campaign_name, contact_name, contact_phone, line_id, operator_id, round,
		message, template_id, status, attempt_count, last_error, created_at, updated_at
	) VALUES (
		:id, :campaign_name, :contact_name, :contact_phone, :line_id, :operator_id, :round,
		:message, :template_id, :status, :attempt_count, :last_error, :created_at, :updated_at
	)`

	params := map[string]any{
		"id":            d.ID,
		"campaign_name": d.CampaignName,
		"contact_name":  d.ContactName,
		"contact_phone": d.ContactPhone,
		"line_id":       d.LineID,
		"operator_id":   d.OperatorID,
		"round":         d.Round,
		"message":       d.Message,
		"template_id":   d.TemplateID,
		"status":        d.Status,
		"attempt_count": d.AttemptCount,
		"last_error":    d.LastError,
		"created_at":    d.CreatedAt,
		"updated_at":    d.UpdatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("delivery repo: insert: %w", err)
	}
	return nil
}

// SetStatus records the outcome of a delivery attempt.
func (r *DeliveryRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, attemptCount int, lastError *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaign_deliveries
		SET status = $1, attempt_count = $2, last_error = $3, updated_at = $4
		WHERE id = $5`,
		status, attemptCount, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("delivery repo: set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delivery repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByCampaign lists delivery rows for a campaign in round order.
func (r *DeliveryRepository) ListByCampaign(ctx context.Context, campaignName string, limit int, offset int) ([]domain.Delivery, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT id, campaign_name, contact_name, contact_phone, line_id, operator_id, round,
		message, template_id, status, attempt_count, last_error, created_at, updated_at
		FROM campaign_deliveries
		WHERE campaign_name = $1
		ORDER BY round ASC, created_at ASC
		LIMIT $2 OFFSET $3`, campaignName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("delivery repo: list: %w", err)
	}
	defer rows.Close()

	var results []domain.Delivery
	for rows.Next() {
		var rec deliveryRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("delivery repo: scan: %w", err)
		}
		results = append(results, rec.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery repo: rows err: %w", err)
	}
	return results, nil
}

// Counts aggregates row totals by status for a campaign.
func (r *DeliveryRepository) Counts(ctx context.Context, campaignName string) (total, sent, failed int64, err error) {
	row := r.db.QueryRowxContext(ctx, `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'sent') AS sent,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM campaign_deliveries WHERE campaign_name = $1`, campaignName)

	if err := row.Scan(&total, &sent, &failed); err != nil {
		return 0, 0, 0, fmt.Errorf("delivery repo: counts: %w", err)
	}
	return total, sent, failed, nil
}

// Phones returns the distinct contact phones among a campaign's rows.
func (r *DeliveryRepository) Phones(ctx context.Context, campaignName string) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT DISTINCT contact_phone FROM campaign_deliveries WHERE campaign_name = $1`, campaignName)
	if err != nil {
		return nil, fmt.Errorf("delivery repo: phones: %w", err)
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("delivery repo: scan phone: %w", err)
		}
		phones = append(phones, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery repo: rows err: %w", err)
	}
	return phones, nil
}

// EarliestCreatedAt returns the timestamp of the first delivery row.
func (r *DeliveryRepository) EarliestCreatedAt(ctx context.Context, campaignName string) (time.Time, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT MIN(created_at) FROM campaign_deliveries WHERE campaign_name = $1`, campaignName)

	var earliest sql.NullTime
	if err := row.Scan(&earliest); err != nil {
		return time.Time{}, fmt.Errorf("delivery repo: earliest: %w", err)
	}
	if !earliest.Valid {
		return time.Time{}, repository.ErrNotFound
	}
	return earliest.Time, nil
}

type deliveryRecord struct {
	ID           uuid.UUID      `db:"id"`
	CampaignName string         `db:"campaign_name"`
	ContactName  string         `db:"contact_name"`
	ContactPhone string         `db:"contact_phone"`
	LineID       uuid.UUID      `db:"line_id"`
	OperatorID   uuid.UUID      `db:"operator_id"`
	Round        int            `db:"round"`
	Message      sql.NullString `db:"message"`
	TemplateID   *uuid.UUID     `db:"template_id"`
	Status       string         `db:"status"`
	AttemptCount int            `db:"attempt_count"`
	LastError    sql.NullString `db:"last_error"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r deliveryRecord) toDomain() domain.Delivery {
	d := domain.Delivery{
		ID:           r.ID,
		CampaignName: r.CampaignName,
		ContactName:  r.ContactName,
		ContactPhone: r.ContactPhone,
		LineID:       r.LineID,
		OperatorID:   r.OperatorID,
		Round:        r.Round,
		Message:      r.Message.String,
		TemplateID:   r.TemplateID,
		Status:       domain.DeliveryStatus(r.Status),
		AttemptCount: r.AttemptCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastError.Valid {
		v := r.LastError.String
		d.LastError = &v
	}
	return d
}
