package testutil

import (
	"testing"
)

// SeedLocation inserts a pharmacy location fixture into the test database.
func (s *IntegrationSuite) SeedLocation(t *testing.T, loc LocationFixture) LocationFixture {
	t.Helper()
	_, err := s.RawDB.Exec(
		`INSERT INTO pharmacy_locations (id, name, address, is_active) VALUES ($1, $2, $3, $4)`,
		loc.ID, loc.Name, loc.Address, loc.IsActive,
	)
	if err != nil {
		t.Fatalf("failed to seed location: %v", err)
	}
	return loc
}

// SeedMedication inserts a medication fixture into the test database.
func (s *IntegrationSuite) SeedMedication(t *testing.T, med MedicationFixture) MedicationFixture {
	t.Helper()
	_, err := s.RawDB.Exec(
		`INSERT INTO medications (id, name, generic_name, form, strength, is_active) VALUES ($1, $2, $3, $4, $5, $6)`,
		med.ID, med.Name, med.GenericName, med.Form, med.Strength, med.IsActive,
	)
	if err != nil {
		t.Fatalf("failed to seed medication: %v", err)
	}
	return med
}

// SeedLine inserts an inventory line fixture into the test database.
func (s *IntegrationSuite) SeedLine(t *testing.T, line LineFixture) LineFixture {
	t.Helper()
	_, err := s.RawDB.Exec(
		`INSERT INTO inventory_lines (id, location_id, medication_id, batch_number, quantity, unit, unit_price_cents, expiry_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		line.ID, line.LocationID, line.MedicationID, line.BatchNumber, line.Quantity,
		line.Unit, line.UnitPriceCents, line.ExpiryDate, line.IsActive,
	)
	if err != nil {
		t.Fatalf("failed to seed inventory line: %v", err)
	}
	return line
}
