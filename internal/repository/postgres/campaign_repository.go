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

// CampaignRepository persists campaign definitions.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs a new repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign definition.
func (r *CampaignRepository) Create(ctx context.Context, def *domain.CampaignDefinition) error {
	q := `INSERT INTO campaign_definitions (
		id, name, segment_id, speed, deadline_minute, template_id, message, created_at, updated_at
	) VALUES (
		:id, :name, :segment_id, :speed, :deadline_minute, :template_id, :message, :created_at, :updated_at
	)`

	var deadlineMinute *int
	if def.Policy.EndTime != nil {
		m := def.Policy.EndTime.Hour*60 + def.Policy.EndTime.Minute
		deadlineMinute = &m
	}

	params := map[string]any{
		"id":              def.ID,
		"name":            def.Name,
		"segment_id":      def.SegmentID,
		"speed":           string(def.Policy.Speed),
		"deadline_minute": deadlineMinute,
		"template_id":     def.TemplateID,
		"message":         def.Message,
		"created_at":      def.CreatedAt,
		"updated_at":      def.UpdatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("campaign repo: insert: %w", err)
	}
	return nil
}

// Get fetches a campaign definition by id.
func (r *CampaignRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CampaignDefinition, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

// GetByName fetches a campaign definition by its unique name.
func (r *CampaignRepository) GetByName(ctx context.Context, name string) (*domain.CampaignDefinition, error) {
	return r.getWhere(ctx, `name = $1`, name)
}

func (r *CampaignRepository) getWhere(ctx context.Context, where string, arg any) (*domain.CampaignDefinition, error) {
	row := r.db.QueryRowxContext(ctx, selectDefinitionQuery+` WHERE `+where, arg)

	var rec definitionRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign repo: get: %w", err)
	}

	def := rec.toDomain()
	return &def, nil
}

// List returns campaign definitions with keyset pagination.
func (r *CampaignRepository) List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.CampaignDefinition, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sqlx.Rows
	var err error
	if afterID != nil {
		rows, err = r.db.QueryxContext(ctx, selectDefinitionQuery+` WHERE id > $1 ORDER BY id ASC LIMIT $2`, *afterID, limit)
	} else {
		rows, err = r.db.QueryxContext(ctx, selectDefinitionQuery+` ORDER BY id ASC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("campaign repo: list: %w", err)
	}
	defer rows.Close()

	var results []*domain.CampaignDefinition
	for rows.Next() {
		var rec definitionRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("campaign repo: scan: %w", err)
		}
		def := rec.toDomain()
		results = append(results, &def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaign repo: rows err: %w", err)
	}
	return results, nil
}

const selectDefinitionQuery = `SELECT id, name, segment_id, speed, deadline_minute, template_id, message, created_at, updated_at
	FROM campaign_definitions`

type definitionRecord struct {
	ID             uuid.UUID      `db:"id"`
	Name           string         `db:"name"`
	SegmentID      *uuid.UUID     `db:"segment_id"`
	Speed          string         `db:"speed"`
	DeadlineMinute sql.NullInt64  `db:"deadline_minute"`
	TemplateID     *uuid.UUID     `db:"template_id"`
	Message        sql.NullString `db:"message"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r definitionRecord) toDomain() domain.CampaignDefinition {
	def := domain.CampaignDefinition{
		ID:         r.ID,
		Name:       r.Name,
		SegmentID:  r.SegmentID,
		Policy:     domain.SendPolicy{Speed: domain.Speed(r.Speed)},
		TemplateID: r.TemplateID,
		Message:    r.Message.String,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.DeadlineMinute.Valid {
		m := int(r.DeadlineMinute.Int64)
		def.Policy.EndTime = &domain.TimeOfDay{Hour: m / 60, Minute: m % 60}
	}
	return def
}
