package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/careops/careops-backend/pkg/database"
	"github.com/careops/careops-backend/pkg/errors"
)

// Medication is reference data. The pharmacy service reads it but does
// not own its lifecycle.
type Medication struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	GenericName *string   `db:"generic_name" json:"generic_name,omitempty"`
	Form        *string   `db:"form" json:"form,omitempty"`
	Strength    *string   `db:"strength" json:"strength,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Location is a pharmacy site that holds stock.
type Location struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MedicationRepository reads medication reference data
type MedicationRepository struct {
	db *database.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// GetByID gets a medication by ID
func (r *MedicationRepository) GetByID(ctx context.Context, id string) (*Medication, error) {
	var m Medication
	query := `
		SELECT id, name, generic_name, form, strength, is_active, created_at, updated_at
		FROM medications WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medication")
		}
		return nil, err
	}
	return &m, nil
}

// List lists active medications by name
func (r *MedicationRepository) List(ctx context.Context, page, perPage int) ([]*Medication, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM medications WHERE is_active`); err != nil {
		return nil, 0, err
	}

	var medications []*Medication
	query := `
		SELECT id, name, generic_name, form, strength, is_active, created_at, updated_at
		FROM medications
		WHERE is_active
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &medications, query, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return medications, total, nil
}

// LocationRepository reads pharmacy location reference data
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// GetByID gets a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*Location, error) {
	var l Location
	query := `
		SELECT id, name, address, is_active, created_at, updated_at
		FROM pharmacy_locations WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &l, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("location")
		}
		return nil, err
	}
	return &l, nil
}

// List lists active locations by name
func (r *LocationRepository) List(ctx context.Context) ([]*Location, error) {
	var locations []*Location
	query := `
		SELECT id, name, address, is_active, created_at, updated_at
		FROM pharmacy_locations
		WHERE is_active
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, err
	}
	return locations, nil
}
