package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MedicationFixture represents test medication reference data
type MedicationFixture struct {
	ID          string
	Name        string
	GenericName string
	Form        string
	Strength    string
	IsActive    bool
}

// LocationFixture represents test pharmacy location data
type LocationFixture struct {
	ID       string
	Name     string
	Address  string
	IsActive bool
}

// LineFixture represents test inventory line data
type LineFixture struct {
	ID             string
	LocationID     string
	MedicationID   string
	BatchNumber    string
	Quantity       int
	Unit           string
	UnitPriceCents int
	ExpiryDate     *time.Time
	IsActive       bool
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medication creates a medication fixture with defaults
func (f *FixtureFactory) Medication(opts ...func(*MedicationFixture)) MedicationFixture {
	seq := f.nextSeq()

	med := MedicationFixture{
		ID:          uuid.New().String(),
		Name:        fmt.Sprintf("Medication %d", seq),
		GenericName: fmt.Sprintf("generic-%d", seq),
		Form:        "tablet",
		Strength:    "500mg",
		IsActive:    true,
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicationName sets the medication name
func WithMedicationName(name string) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.Name = name
	}
}

// Location creates a pharmacy location fixture with defaults
func (f *FixtureFactory) Location(opts ...func(*LocationFixture)) LocationFixture {
	seq := f.nextSeq()

	loc := LocationFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Pharmacy %d", seq),
		Address:  fmt.Sprintf("%d Main Street", seq),
		IsActive: true,
	}

	for _, opt := range opts {
		opt(&loc)
	}

	return loc
}

// WithLocationName sets the location name
func WithLocationName(name string) func(*LocationFixture) {
	return func(l *LocationFixture) {
		l.Name = name
	}
}

// Line creates an inventory line fixture for the given location and medication
func (f *FixtureFactory) Line(locationID, medicationID string, opts ...func(*LineFixture)) LineFixture {
	line := LineFixture{
		ID:             uuid.New().String(),
		LocationID:     locationID,
		MedicationID:   medicationID,
		BatchNumber:    "",
		Quantity:       100,
		Unit:           "tablets",
		UnitPriceCents: 250,
		IsActive:       true,
	}

	for _, opt := range opts {
		opt(&line)
	}

	return line
}

// WithQuantity sets the line quantity
func WithQuantity(qty int) func(*LineFixture) {
	return func(l *LineFixture) {
		l.Quantity = qty
	}
}

// WithBatch sets the batch number and expiry date
func WithBatch(batch string, expiry time.Time) func(*LineFixture) {
	return func(l *LineFixture) {
		l.BatchNumber = batch
		l.ExpiryDate = &expiry
	}
}
