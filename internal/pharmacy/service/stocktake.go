package service

import (
	"context"
	"time"

	"github.com/careops/careops-backend/internal/pharmacy/events"
	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/pkg/actor"
	"github.com/careops/careops-backend/pkg/errors"
	"github.com/careops/careops-backend/pkg/logger"
	"github.com/careops/careops-backend/pkg/messaging"
)

// CreateStockTakeRequest opens a new count session in DRAFT state.
type CreateStockTakeRequest struct {
	LocationID    string    `json:"location_id" validate:"required,uuid"`
	StockTakeDate time.Time `json:"stock_take_date" validate:"required"`
	Type          string    `json:"type" validate:"required,oneof=FULL PARTIAL SPOT_CHECK AUDIT"`
	Reason        string    `json:"reason" validate:"required"`
	Notes         *string   `json:"notes"`
}

// StockTakeItemInput is one counted line submitted to a session.
type StockTakeItemInput struct {
	MedicationID     string     `json:"medication_id" validate:"required,uuid"`
	ExpectedQuantity int        `json:"expected_quantity" validate:"gte=0"`
	ActualQuantity   int        `json:"actual_quantity" validate:"gte=0"`
	Unit             string     `json:"unit" validate:"required"`
	BatchNumber      string     `json:"batch_number"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	Notes            *string    `json:"notes"`
}

// AddStockTakeItemsRequest appends counted items to a session.
type AddStockTakeItemsRequest struct {
	Items []StockTakeItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateStockTakeStatusRequest drives the session state machine.
type UpdateStockTakeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=IN_PROGRESS COMPLETED CANCELLED"`
}

// ReviewStockTakeRequest records an explicit second-pass review.
type ReviewStockTakeRequest struct {
	Notes *string `json:"notes"`
}

// StockTakeService drives physical count sessions and reconciliation
type StockTakeService struct {
	stockTakes *repository.StockTakeRepository
	locations  *repository.LocationRepository
	publisher  *events.Publisher
	logger     *logger.Logger
}

// NewStockTakeService creates a new stock take service
func NewStockTakeService(
	stockTakes *repository.StockTakeRepository,
	locations *repository.LocationRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *StockTakeService {
	return &StockTakeService{
		stockTakes: stockTakes,
		locations:  locations,
		publisher:  publisher,
		logger:     log.WithComponent("stocktake-service"),
	}
}

// Create opens a new stock take in DRAFT state
func (s *StockTakeService) Create(ctx context.Context, req CreateStockTakeRequest) (*repository.StockTake, error) {
	if _, err := s.locations.GetByID(ctx, req.LocationID); err != nil {
		return nil, err
	}

	st := &repository.StockTake{
		LocationID:    req.LocationID,
		StockTakeDate: req.StockTakeDate,
		Type:          req.Type,
		ConductedBy:   actor.MustFromContext(ctx).ID,
		Reason:        req.Reason,
		Notes:         req.Notes,
	}
	if err := s.stockTakes.Create(ctx, st); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_take_id", st.ID).
		Str("location_id", st.LocationID).
		Str("type", st.Type).
		Msg("stock take created")

	return st, nil
}

// AddItems appends counted items, promoting DRAFT to IN_PROGRESS. The
// variance of every item and the session total are recomputed server
// side; whatever the caller sends for them is ignored.
func (s *StockTakeService) AddItems(ctx context.Context, id string, req AddStockTakeItemsRequest) (*repository.StockTake, error) {
	items := make([]*repository.StockTakeItem, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, &repository.StockTakeItem{
			MedicationID:     in.MedicationID,
			ExpectedQuantity: in.ExpectedQuantity,
			ActualQuantity:   in.ActualQuantity,
			Unit:             in.Unit,
			BatchNumber:      in.BatchNumber,
			ExpiryDate:       in.ExpiryDate,
			Notes:            in.Notes,
		})
	}

	st, err := s.stockTakes.AddItems(ctx, id, items)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_take_id", st.ID).
		Int("items_added", len(items)).
		Int("total_variance", st.TotalVariance).
		Msg("stock take items recorded")

	return st, nil
}

// UpdateStatus drives the session state machine. On completion, if the
// caller is not the conductor, they are recorded as the reviewer in the
// same step: a second pair of eyes closing someone else's count is a
// review.
func (s *StockTakeService) UpdateStatus(ctx context.Context, id string, req UpdateStockTakeStatusRequest) (*repository.StockTake, error) {
	caller := actor.MustFromContext(ctx).ID

	switch req.Status {
	case repository.StockTakeCompleted:
		existing, err := s.stockTakes.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		var reviewedBy *string
		if caller != existing.ConductedBy {
			reviewedBy = &caller
		}

		st, err := s.stockTakes.Complete(ctx, id, reviewedBy)
		if err != nil {
			return nil, err
		}

		s.logger.Info().
			Str("stock_take_id", st.ID).
			Int("total_variance", st.TotalVariance).
			Msg("stock take completed")

		event := messaging.StockTakeCompletedEvent{
			StockTakeID:   st.ID,
			LocationID:    st.LocationID,
			TotalVariance: st.TotalVariance,
			ItemCount:     len(st.Items),
			ConductedBy:   st.ConductedBy,
		}
		if st.ReviewedBy != nil {
			event.ReviewedBy = *st.ReviewedBy
		}
		s.publisher.StockTakeCompleted(ctx, event)

		return st, nil

	case repository.StockTakeCancelled:
		st, err := s.stockTakes.Cancel(ctx, id)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("stock_take_id", st.ID).Msg("stock take cancelled")
		return st, nil

	case repository.StockTakeInProgress:
		// IN_PROGRESS is reached by recording items, not by a bare
		// status update.
		return nil, errors.Validation(map[string]string{
			"status": "sessions move to IN_PROGRESS by adding items",
		})

	default:
		return nil, errors.Validation(map[string]string{
			"status": "unknown status " + req.Status,
		})
	}
}

// Review records an explicit second-pass review on a COMPLETED session.
// The reviewer must not be the person who conducted the count.
func (s *StockTakeService) Review(ctx context.Context, id string, req ReviewStockTakeRequest) (*repository.StockTake, error) {
	caller := actor.MustFromContext(ctx).ID

	existing, err := s.stockTakes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller == existing.ConductedBy {
		return nil, errors.Forbidden("a stock take cannot be reviewed by the person who conducted it")
	}

	st, err := s.stockTakes.Review(ctx, id, caller, req.Notes)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_take_id", st.ID).
		Str("reviewed_by", caller).
		Msg("stock take reviewed")

	s.publisher.StockTakeReviewed(ctx, messaging.StockTakeReviewedEvent{
		StockTakeID: st.ID,
		ReviewedBy:  caller,
	})

	return st, nil
}

// Get gets a stock take with its items
func (s *StockTakeService) Get(ctx context.Context, id string) (*repository.StockTake, error) {
	return s.stockTakes.GetByID(ctx, id)
}

// ListByLocation lists a location's stock takes
func (s *StockTakeService) ListByLocation(ctx context.Context, locationID, status string, page, perPage int) ([]*repository.StockTake, int64, error) {
	return s.stockTakes.ListByLocation(ctx, locationID, status, page, perPage)
}

// Stats aggregates session counts and variances for a location
func (s *StockTakeService) Stats(ctx context.Context, locationID string) (*repository.StockTakeStats, error) {
	return s.stockTakes.Stats(ctx, locationID)
}

// VarianceReport aggregates per-medication variances over the last
// windowDays days of completed sessions.
func (s *StockTakeService) VarianceReport(ctx context.Context, locationID string, windowDays int) ([]*repository.MedicationVariance, error) {
	since := time.Now().AddDate(0, 0, -windowDays)
	return s.stockTakes.VarianceReport(ctx, locationID, since)
}
