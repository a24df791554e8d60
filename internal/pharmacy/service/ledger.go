package service

import (
	"context"
	"time"

	"github.com/careops/careops-backend/internal/pharmacy/events"
	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/pkg/actor"
	"github.com/careops/careops-backend/pkg/logger"
	"github.com/careops/careops-backend/pkg/messaging"
)

// DefaultLowStockThreshold is used for the low stock event emitted on
// adjustments. Query endpoints take the threshold from the caller.
const DefaultLowStockThreshold = 10

// AdjustStockRequest applies a signed quantity change to one inventory line.
type AdjustStockRequest struct {
	LocationID     string     `json:"location_id" validate:"required,uuid"`
	MedicationID   string     `json:"medication_id" validate:"required,uuid"`
	BatchNumber    string     `json:"batch_number"`
	Delta          int        `json:"delta" validate:"required"`
	Unit           string     `json:"unit" validate:"required"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"gte=0"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	Reason         string     `json:"reason"`
}

// LedgerService owns inventory line mutations and reads
type LedgerService struct {
	lines       *repository.LineRepository
	medications *repository.MedicationRepository
	locations   *repository.LocationRepository
	publisher   *events.Publisher
	logger      *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	lines *repository.LineRepository,
	medications *repository.MedicationRepository,
	locations *repository.LocationRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		lines:       lines,
		medications: medications,
		locations:   locations,
		publisher:   publisher,
		logger:      log.WithComponent("ledger-service"),
	}
}

// AdjustStock applies a signed delta to a line. A positive delta creates
// the line if it does not exist yet; a negative delta that would push the
// quantity below zero is rejected atomically at the database.
func (s *LedgerService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*repository.InventoryLine, error) {
	if _, err := s.locations.GetByID(ctx, req.LocationID); err != nil {
		return nil, err
	}
	if _, err := s.medications.GetByID(ctx, req.MedicationID); err != nil {
		return nil, err
	}

	line, err := s.lines.ApplyDelta(ctx, repository.LineDelta{
		LocationID:     req.LocationID,
		MedicationID:   req.MedicationID,
		BatchNumber:    req.BatchNumber,
		Delta:          req.Delta,
		Unit:           req.Unit,
		UnitPriceCents: req.UnitPriceCents,
		ExpiryDate:     req.ExpiryDate,
	})
	if err != nil {
		return nil, err
	}

	performedBy := ""
	if a := actor.FromContext(ctx); a != nil {
		performedBy = a.ID
	}

	s.logger.Info().
		Str("line_id", line.ID).
		Str("location_id", line.LocationID).
		Str("medication_id", line.MedicationID).
		Int("delta", req.Delta).
		Int("new_quantity", line.Quantity).
		Msg("stock adjusted")

	s.publisher.StockAdjusted(ctx, messaging.StockAdjustedEvent{
		LineID:       line.ID,
		LocationID:   line.LocationID,
		MedicationID: line.MedicationID,
		Delta:        req.Delta,
		NewQuantity:  line.Quantity,
		PerformedBy:  performedBy,
		Reason:       req.Reason,
	})

	if line.Quantity <= DefaultLowStockThreshold {
		s.publisher.LowStock(ctx, messaging.LowStockEvent{
			LineID:       line.ID,
			LocationID:   line.LocationID,
			MedicationID: line.MedicationID,
			Quantity:     line.Quantity,
			Threshold:    DefaultLowStockThreshold,
		})
	}

	return line, nil
}

// GetLine gets an inventory line by ID
func (s *LedgerService) GetLine(ctx context.Context, id string) (*repository.InventoryLine, error) {
	return s.lines.GetByID(ctx, id)
}

// ListByLocation lists a location's active lines with pagination
func (s *LedgerService) ListByLocation(ctx context.Context, locationID string, page, perPage int) ([]*repository.InventoryLine, int64, error) {
	if _, err := s.locations.GetByID(ctx, locationID); err != nil {
		return nil, 0, err
	}
	return s.lines.ListByLocation(ctx, locationID, page, perPage)
}

// DeactivateLine soft deletes a line. The stored quantity is kept for
// audit; the line simply stops matching active queries.
func (s *LedgerService) DeactivateLine(ctx context.Context, id string) error {
	line, err := s.lines.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.lines.Deactivate(ctx, line.ID); err != nil {
		return err
	}

	s.logger.Info().Str("line_id", line.ID).Msg("inventory line deactivated")
	return nil
}

// ListLocations lists active pharmacy locations
func (s *LedgerService) ListLocations(ctx context.Context) ([]*repository.Location, error) {
	return s.locations.List(ctx)
}

// ListMedications lists active medications with pagination
func (s *LedgerService) ListMedications(ctx context.Context, page, perPage int) ([]*repository.Medication, int64, error) {
	return s.medications.List(ctx, page, perPage)
}
