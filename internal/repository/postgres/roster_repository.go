package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
)

// RosterRepository reads operator-role users with their linked lines.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListOperators returns operators (optionally filtered by segment) with every
// linked line attached, in stable creation order. Line status filtering is
// the resolver's concern, not the query's.
func (r *RosterRepository) ListOperators(ctx context.Context, segmentID *uuid.UUID) ([]domain.Operator, error) {
	query := `SELECT u.id AS user_id, u.name AS user_name, u.segment_id,
		l.id AS line_id, l.phone AS line_phone, l.status AS line_status
		FROM users u
		LEFT JOIN line_operators lo ON lo.user_id = u.id
		LEFT JOIN lines l ON l.id = lo.line_id
		WHERE u.role = 'operator'`
	args := []any{}
	if segmentID != nil {
		query += ` AND u.segment_id = $1`
		args = append(args, *segmentID)
	}
	query += ` ORDER BY u.created_at ASC, lo.created_at ASC`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("roster repo: list operators: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*domain.Operator)
	order := make([]uuid.UUID, 0)

	for rows.Next() {
		var rec rosterRow
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("roster repo: scan: %w", err)
		}

		op, ok := byID[rec.UserID]
		if !ok {
			op = &domain.Operator{
				ID:        rec.UserID,
				Name:      rec.UserName,
				SegmentID: rec.SegmentID,
			}
			byID[rec.UserID] = op
			order = append(order, rec.UserID)
		}

		if rec.LineID != nil {
			op.Lines = append(op.Lines, domain.Line{
				ID:     *rec.LineID,
				Phone:  rec.LinePhone.String,
				Status: domain.LineStatus(rec.LineStatus.String),
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roster repo: rows err: %w", err)
	}

	operators := make([]domain.Operator, 0, len(order))
	for _, id := range order {
		operators = append(operators, *byID[id])
	}
	return operators, nil
}

type rosterRow struct {
	UserID     uuid.UUID      `db:"user_id"`
	UserName   string         `db:"user_name"`
	SegmentID  *uuid.UUID     `db:"segment_id"`
	LineID     *uuid.UUID     `db:"line_id"`
	LinePhone  sql.NullString `db:"line_phone"`
	LineStatus sql.NullString `db:"line_status"`
}
