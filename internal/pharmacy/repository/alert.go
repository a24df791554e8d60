package repository

import (
	"context"
	"time"

	"github.com/careops/careops-backend/pkg/database"
)

// AlertRepository serves derived, read-only views over inventory lines.
// It never mutates the ledger.
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertLineColumns = `
	l.id, l.location_id, l.medication_id, m.name AS medication_name,
	l.batch_number, l.quantity, l.unit, l.unit_price_cents, l.expiry_date,
	l.is_active, l.created_at, l.updated_at
`

// LowStock lists active lines at or below the threshold, lowest first.
// An empty locationID spans all locations.
func (r *AlertRepository) LowStock(ctx context.Context, locationID string, threshold int) ([]*InventoryLine, error) {
	var lines []*InventoryLine
	query := `
		SELECT ` + alertLineColumns + `
		FROM inventory_lines l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.is_active AND l.quantity <= $1
		  AND ($2 = '' OR l.location_id::text = $2)
		ORDER BY l.quantity, m.name
	`
	if err := r.db.SelectContext(ctx, &lines, query, threshold, locationID); err != nil {
		return nil, err
	}
	return lines, nil
}

// Expiring lists active lines whose expiry falls within the next daysAhead days.
func (r *AlertRepository) Expiring(ctx context.Context, locationID string, daysAhead int) ([]*InventoryLine, error) {
	var lines []*InventoryLine
	cutoff := time.Now().AddDate(0, 0, daysAhead)
	query := `
		SELECT ` + alertLineColumns + `
		FROM inventory_lines l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.is_active AND l.expiry_date IS NOT NULL AND l.expiry_date <= $1
		  AND ($2 = '' OR l.location_id::text = $2)
		ORDER BY l.expiry_date, m.name
	`
	if err := r.db.SelectContext(ctx, &lines, query, cutoff, locationID); err != nil {
		return nil, err
	}
	return lines, nil
}

// Expired lists active lines whose expiry has already passed.
func (r *AlertRepository) Expired(ctx context.Context, locationID string) ([]*InventoryLine, error) {
	var lines []*InventoryLine
	query := `
		SELECT ` + alertLineColumns + `
		FROM inventory_lines l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.is_active AND l.expiry_date IS NOT NULL AND l.expiry_date < NOW()
		  AND ($1 = '' OR l.location_id::text = $1)
		ORDER BY l.expiry_date, m.name
	`
	if err := r.db.SelectContext(ctx, &lines, query, locationID); err != nil {
		return nil, err
	}
	return lines, nil
}
