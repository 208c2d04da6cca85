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

// ContactRepository implements repository.ContactRepository using PostgreSQL.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs a new repository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Upsert creates or merges a contact keyed by canonical phone. The row is
// locked for the duration of the merge so concurrent sightings of the same
// phone serialize instead of clobbering each other.
func (r *ContactRepository) Upsert(ctx context.Context, phone string, patch domain.ContactPatch) (*domain.Contact, error) {
	var result *domain.Contact

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		row := tx.QueryRowxContext(ctx, selectContactQuery+` WHERE phone = $1 FOR UPDATE`, phone)

		var rec contactRecord
		switch err := row.StructScan(&rec); err {
		case nil:
			contact := rec.toDomain()
			if contact.Merge(patch) {
				contact.UpdatedAt = time.Now().UTC()
				if err := updateContact(ctx, tx, &contact); err != nil {
					return err
				}
			}
			result = &contact
			return nil
		case sql.ErrNoRows:
			now := time.Now().UTC()
			contact := domain.Contact{
				ID:        uuid.New(),
				Phone:     phone,
				Name:      patch.Name,
				CPF:       patch.CPF,
				Contract:  patch.Contract,
				SegmentID: patch.SegmentID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := insertContact(ctx, tx, &contact); err != nil {
				return err
			}
			result = &contact
			return nil
		default:
			return fmt.Errorf("contact repo: select for update: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByPhone fetches a contact by canonical phone.
func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	row := r.db.QueryRowxContext(ctx, selectContactQuery+` WHERE phone = $1`, phone)

	var rec contactRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("contact repo: get by phone: %w", err)
	}

	contact := rec.toDomain()
	return &contact, nil
}

// SetCPC flips the contacted-correct-person flag.
func (r *ContactRepository) SetCPC(ctx context.Context, phone string, cpc bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contacts SET cpc = $1, cpc_at = $2, updated_at = $3 WHERE phone = $4`,
		cpc, at, time.Now().UTC(), phone)
	if err != nil {
		return fmt.Errorf("contact repo: set cpc: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("contact repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const selectContactQuery = `SELECT id, phone, name, cpf, contract_ref, segment_id, cpc, cpc_at, name_locked, created_at, updated_at
	FROM contacts`

func insertContact(ctx context.Context, tx *sqlx.Tx, c *domain.Contact) error {
	q := `INSERT INTO contacts (
		id, phone, name, cpf, contract_ref, segment_id, cpc, cpc_at, name_locked, created_at, updated_at
	) VALUES (
		:id, :phone, :name, :cpf, :contract_ref, :segment_id, :cpc, :cpc_at, :name_locked, :created_at, :updated_at
	)`
	if _, err := tx.NamedExecContext(ctx, q, contactParams(c)); err != nil {
		return fmt.Errorf("contact repo: insert: %w", err)
	}
	return nil
}

func updateContact(ctx context.Context, tx *sqlx.Tx, c *domain.Contact) error {
	q := `UPDATE contacts SET
		name = :name,
		cpf = :cpf,
		contract_ref = :contract_ref,
		segment_id = :segment_id,
		cpc = :cpc,
		cpc_at = :cpc_at,
		name_locked = :name_locked,
		updated_at = :updated_at
	 WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, q, contactParams(c)); err != nil {
		return fmt.Errorf("contact repo: update: %w", err)
	}
	return nil
}

func contactParams(c *domain.Contact) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"phone":        c.Phone,
		"name":         c.Name,
		"cpf":          c.CPF,
		"contract_ref": c.Contract,
		"segment_id":   c.SegmentID,
		"cpc":          c.CPC,
		"cpc_at":       c.CPCAt,
		"name_locked":  c.NameLocked,
		"created_at":   c.CreatedAt,
		"updated_at":   c.UpdatedAt,
	}
}

type contactRecord struct {
	ID         uuid.UUID      `db:"id"`
	Phone      string         `db:"phone"`
	Name       sql.NullString `db:"name"`
	CPF        sql.NullString `db:"cpf"`
	Contract   sql.NullString `db:"contract_ref"`
	SegmentID  *uuid.UUID     `db:"segment_id"`
	CPC        bool           `db:"cpc"`
	CPCAt      sql.NullTime   `db:"cpc_at"`
	NameLocked bool           `db:"name_locked"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r contactRecord) toDomain() domain.Contact {
	contact := domain.Contact{
		ID:         r.ID,
		Phone:      r.Phone,
		Name:       r.Name.String,
		SegmentID:  r.SegmentID,
		CPC:        r.CPC,
		NameLocked: r.NameLocked,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.CPF.Valid {
		v := r.CPF.String
		contact.CPF = &v
	}
	if r.Contract.Valid {
		v := r.Contract.String
		contact.Contract = &v
	}
	if r.CPCAt.Valid {
		t := r.CPCAt.Time
		contact.CPCAt = &t
	}
	return contact
}
