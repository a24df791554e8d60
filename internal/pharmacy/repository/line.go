package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/careops/careops-backend/pkg/database"
	"github.com/careops/careops-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// InventoryLine is one medication's stock at one location. At most one
// active line exists per (location, medication, batch); an empty batch
// number means unbatched stock.
type InventoryLine struct {
	ID             string     `db:"id" json:"id"`
	LocationID     string     `db:"location_id" json:"location_id"`
	MedicationID   string     `db:"medication_id" json:"medication_id"`
	MedicationName string     `db:"medication_name" json:"medication_name,omitempty"`
	BatchNumber    string     `db:"batch_number" json:"batch_number,omitempty"`
	Quantity       int        `db:"quantity" json:"quantity"`
	Unit           string     `db:"unit" json:"unit"`
	UnitPriceCents int        `db:"unit_price_cents" json:"unit_price_cents"`
	ExpiryDate     *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// LineDelta describes a signed quantity change against one line. Unit,
// price and expiry are only used when a credit has to create the line.
type LineDelta struct {
	LocationID     string
	MedicationID   string
	BatchNumber    string
	Delta          int
	Unit           string
	UnitPriceCents int
	ExpiryDate     *time.Time
}

// LineRepository handles inventory line persistence
type LineRepository struct {
	db *database.DB
}

// NewLineRepository creates a new line repository
func NewLineRepository(db *database.DB) *LineRepository {
	return &LineRepository{db: db}
}

const lineColumns = `
	id, location_id, medication_id, batch_number, quantity, unit,
	unit_price_cents, expiry_date, is_active, created_at, updated_at
`

// GetByID gets a line by ID
func (r *LineRepository) GetByID(ctx context.Context, id string) (*InventoryLine, error) {
	var line InventoryLine
	query := `SELECT ` + lineColumns + ` FROM inventory_lines WHERE id = $1`
	if err := r.db.GetContext(ctx, &line, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventory line")
		}
		return nil, err
	}
	return &line, nil
}

// Get gets the active line for a (location, medication, batch) triple
func (r *LineRepository) Get(ctx context.Context, locationID, medicationID, batchNumber string) (*InventoryLine, error) {
	var line InventoryLine
	query := `
		SELECT ` + lineColumns + `
		FROM inventory_lines
		WHERE location_id = $1 AND medication_id = $2 AND batch_number = $3 AND is_active = true
	`
	if err := r.db.GetContext(ctx, &line, query, locationID, medicationID, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventory line")
		}
		return nil, err
	}
	return &line, nil
}

// ListByLocation lists active lines for a location with pagination,
// ordered by medication name.
func (r *LineRepository) ListByLocation(ctx context.Context, locationID string, page, perPage int) ([]*InventoryLine, int64, error) {
	var total int64
	countQuery := `
		SELECT COUNT(*) FROM inventory_lines
		WHERE location_id = $1 AND is_active = true
	`
	if err := r.db.GetContext(ctx, &total, countQuery, locationID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var lines []*InventoryLine
	query := `
		SELECT l.id, l.location_id, l.medication_id, m.name AS medication_name,
		       l.batch_number, l.quantity, l.unit, l.unit_price_cents,
		       l.expiry_date, l.is_active, l.created_at, l.updated_at
		FROM inventory_lines l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.location_id = $1 AND l.is_active = true
		ORDER BY m.name, l.batch_number
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &lines, query, locationID, perPage, offset); err != nil {
		return nil, 0, err
	}

	return lines, total, nil
}

// ApplyDelta applies a signed quantity delta against the matching active
// line as one atomic statement. The non-negative invariant is enforced by
// the store, not by a read-then-write pair: two concurrent debits can
// never both pass a stale sufficiency check.
func (r *LineRepository) ApplyDelta(ctx context.Context, d LineDelta) (*InventoryLine, error) {
	return applyDelta(ctx, r.db, d)
}

// ApplyDeltaTx is ApplyDelta inside an existing transaction.
func (r *LineRepository) ApplyDeltaTx(ctx context.Context, tx *sqlx.Tx, d LineDelta) (*InventoryLine, error) {
	return applyDelta(ctx, tx, d)
}

func applyDelta(ctx context.Context, q sqlx.ExtContext, d LineDelta) (*InventoryLine, error) {
	if d.Delta >= 0 {
		return creditLine(ctx, q, d)
	}
	return debitLine(ctx, q, d)
}

// creditLine credits an existing active line, or creates it when absent.
// The partial unique index on (location, medication, batch) backs the
// ON CONFLICT arbiter.
func creditLine(ctx context.Context, q sqlx.ExtContext, d LineDelta) (*InventoryLine, error) {
	var line InventoryLine
	query := `
		INSERT INTO inventory_lines (
			id, location_id, medication_id, batch_number, quantity, unit,
			unit_price_cents, expiry_date, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		ON CONFLICT (location_id, medication_id, batch_number) WHERE is_active
		DO UPDATE SET quantity = inventory_lines.quantity + EXCLUDED.quantity,
		              updated_at = NOW()
		RETURNING ` + lineColumns + `
	`
	row := q.QueryRowxContext(ctx, query,
		uuid.New().String(), d.LocationID, d.MedicationID, d.BatchNumber,
		d.Delta, d.Unit, d.UnitPriceCents, d.ExpiryDate,
	)
	if err := row.StructScan(&line); err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, err
	}
	return &line, nil
}

// debitLine decrements the line, guarded so the result can never go
// negative. Zero rows means either the line is missing or the guard
// failed; a follow-up read distinguishes the two.
func debitLine(ctx context.Context, q sqlx.ExtContext, d LineDelta) (*InventoryLine, error) {
	var line InventoryLine
	query := `
		UPDATE inventory_lines
		SET quantity = quantity + $4, updated_at = NOW()
		WHERE location_id = $1 AND medication_id = $2 AND batch_number = $3
		  AND is_active = true AND quantity + $4 >= 0
		RETURNING ` + lineColumns + `
	`
	err := q.QueryRowxContext(ctx, query,
		d.LocationID, d.MedicationID, d.BatchNumber, d.Delta,
	).StructScan(&line)
	if err == nil {
		return &line, nil
	}
	if err != sql.ErrNoRows {
		if mapped := database.MapPQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, err
	}

	var available int
	checkQuery := `
		SELECT quantity FROM inventory_lines
		WHERE location_id = $1 AND medication_id = $2 AND batch_number = $3 AND is_active = true
	`
	err = sqlx.GetContext(ctx, q, &available, checkQuery, d.LocationID, d.MedicationID, d.BatchNumber)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("inventory line")
	}
	if err != nil {
		return nil, err
	}
	return nil, errors.InsufficientStock(d.MedicationID, -d.Delta, available)
}

// Deactivate soft deletes a line. The quantity is kept for the audit trail.
func (r *LineRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE inventory_lines SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active = true`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("inventory line")
	}

	return nil
}

// TotalQuantity sums active stock of a medication/batch across all
// locations. Conservation checks and dashboards use this.
func (r *LineRepository) TotalQuantity(ctx context.Context, medicationID, batchNumber string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(quantity) FROM inventory_lines
		WHERE medication_id = $1 AND batch_number = $2 AND is_active = true
	`
	if err := r.db.GetContext(ctx, &total, query, medicationID, batchNumber); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}
