package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/careops/careops-backend/internal/pharmacy/events"
	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/pkg/actor"
	"github.com/careops/careops-backend/pkg/database"
	"github.com/careops/careops-backend/pkg/errors"
	"github.com/careops/careops-backend/pkg/logger"
	"github.com/careops/careops-backend/pkg/messaging"
	"github.com/jmoiron/sqlx"
)

// RequestTransferRequest creates a new transfer in PENDING state.
type RequestTransferRequest struct {
	FromLocationID string     `json:"from_location_id" validate:"required,uuid"`
	ToLocationID   string     `json:"to_location_id" validate:"required,uuid,nefield=FromLocationID"`
	MedicationID   string     `json:"medication_id" validate:"required,uuid"`
	Quantity       int        `json:"quantity" validate:"required,gt=0"`
	Unit           string     `json:"unit" validate:"required"`
	BatchNumber    string     `json:"batch_number"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	TransferType   string     `json:"transfer_type" validate:"required,oneof=INTER_LOCATION STOCK_ADJUSTMENT DONATION RETURN"`
	Reason         string     `json:"reason" validate:"required"`
	Notes          *string    `json:"notes"`
}

// ApproveTransferRequest moves a PENDING transfer to IN_TRANSIT.
type ApproveTransferRequest struct {
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

// CompleteTransferRequest finalizes an IN_TRANSIT transfer.
type CompleteTransferRequest struct {
	ActualCostCents *int `json:"actual_cost_cents" validate:"omitempty,gte=0"`
}

// CancelTransferRequest cancels a PENDING or IN_TRANSIT transfer.
type CancelTransferRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// TransferService drives the transfer state machine
type TransferService struct {
	db        *database.DB
	transfers *repository.TransferRepository
	lines     *repository.LineRepository
	locations *repository.LocationRepository
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	db *database.DB,
	transfers *repository.TransferRepository,
	lines *repository.LineRepository,
	locations *repository.LocationRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *TransferService {
	return &TransferService{
		db:        db,
		transfers: transfers,
		lines:     lines,
		locations: locations,
		publisher: publisher,
		logger:    log.WithComponent("transfer-service"),
	}
}

// Request validates the transfer and creates it in PENDING state. The
// stock check here is advisory only; the authoritative non-negative
// check happens at completion, when stock actually moves.
func (s *TransferService) Request(ctx context.Context, req RequestTransferRequest) (*repository.Transfer, error) {
	if req.FromLocationID == req.ToLocationID {
		return nil, errors.Validation(map[string]string{
			"to_location_id": "source and destination locations must differ",
		})
	}
	if _, err := s.locations.GetByID(ctx, req.FromLocationID); err != nil {
		return nil, err
	}
	if _, err := s.locations.GetByID(ctx, req.ToLocationID); err != nil {
		return nil, err
	}

	line, err := s.lines.Get(ctx, req.FromLocationID, req.MedicationID, req.BatchNumber)
	if err != nil {
		return nil, err
	}
	if line.Quantity < req.Quantity {
		return nil, errors.InsufficientStock(req.MedicationID, req.Quantity, line.Quantity)
	}

	requestedBy := actor.MustFromContext(ctx).ID
	transfer := &repository.Transfer{
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		MedicationID:   req.MedicationID,
		Quantity:       req.Quantity,
		Unit:           req.Unit,
		BatchNumber:    req.BatchNumber,
		ExpiryDate:     req.ExpiryDate,
		TransferType:   req.TransferType,
		RequestedBy:    requestedBy,
		Reason:         req.Reason,
		Notes:          req.Notes,
		TrackingNumber: generateTrackingNumber(),
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("tracking_number", transfer.TrackingNumber).
		Msg("transfer requested")

	s.publisher.TransferRequested(ctx, messaging.TransferRequestedEvent{
		TransferID:     transfer.ID,
		TrackingNumber: transfer.TrackingNumber,
		FromLocationID: transfer.FromLocationID,
		ToLocationID:   transfer.ToLocationID,
		MedicationID:   transfer.MedicationID,
		Quantity:       transfer.Quantity,
		RequestedBy:    transfer.RequestedBy,
	})

	return transfer, nil
}

// Approve moves a PENDING transfer to IN_TRANSIT
func (s *TransferService) Approve(ctx context.Context, id string, req ApproveTransferRequest) (*repository.Transfer, error) {
	approver := actor.MustFromContext(ctx).ID

	transfer, err := s.transfers.Approve(ctx, id, approver, req.EstimatedDelivery)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("approved_by", approver).
		Msg("transfer approved")

	s.publisher.TransferApproved(ctx, messaging.TransferApprovedEvent{
		TransferID:     transfer.ID,
		TrackingNumber: transfer.TrackingNumber,
		ApprovedBy:     approver,
		EstimatedAt:    transfer.EstimatedDelivery,
	})

	return transfer, nil
}

// Complete moves an IN_TRANSIT transfer to COMPLETED and moves the stock.
// The status transition, the debit at the source, and the credit at the
// destination commit in one transaction; serialization failures are
// retried. Completing an already COMPLETED transfer returns the stored
// record unchanged.
func (s *TransferService) Complete(ctx context.Context, id string, req CompleteTransferRequest) (*repository.Transfer, error) {
	completer := actor.MustFromContext(ctx).ID

	var result *repository.Transfer
	var alreadyCompleted bool

	err := database.WithRetry(ctx, database.DefaultRetryAttempts, func(ctx context.Context) error {
		result = nil
		alreadyCompleted = false

		return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			transfer, err := s.transfers.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if transfer.Status == repository.TransferCompleted {
				result = transfer
				alreadyCompleted = true
				return nil
			}

			completed, err := s.transfers.CompleteTx(ctx, tx, id, completer, req.ActualCostCents)
			if err != nil {
				return err
			}

			source, err := s.lines.ApplyDeltaTx(ctx, tx, repository.LineDelta{
				LocationID:   completed.FromLocationID,
				MedicationID: completed.MedicationID,
				BatchNumber:  completed.BatchNumber,
				Delta:        -completed.Quantity,
				Unit:         completed.Unit,
				ExpiryDate:   completed.ExpiryDate,
			})
			if err != nil {
				return err
			}

			// The destination line inherits unit, price and expiry from
			// the source line as it stands at completion time.
			if _, err := s.lines.ApplyDeltaTx(ctx, tx, repository.LineDelta{
				LocationID:     completed.ToLocationID,
				MedicationID:   completed.MedicationID,
				BatchNumber:    completed.BatchNumber,
				Delta:          completed.Quantity,
				Unit:           source.Unit,
				UnitPriceCents: source.UnitPriceCents,
				ExpiryDate:     source.ExpiryDate,
			}); err != nil {
				return err
			}

			result = completed
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if alreadyCompleted {
		return result, nil
	}

	s.logger.Info().
		Str("transfer_id", result.ID).
		Str("completed_by", completer).
		Int("quantity", result.Quantity).
		Msg("transfer completed")

	s.publisher.TransferCompleted(ctx, messaging.TransferCompletedEvent{
		TransferID:     result.ID,
		TrackingNumber: result.TrackingNumber,
		FromLocationID: result.FromLocationID,
		ToLocationID:   result.ToLocationID,
		MedicationID:   result.MedicationID,
		Quantity:       result.Quantity,
		CompletedBy:    completer,
	})

	return result, nil
}

// Cancel moves a PENDING or IN_TRANSIT transfer to CANCELLED. No stock
// moves, since quantities only move at completion.
func (s *TransferService) Cancel(ctx context.Context, id string, req CancelTransferRequest) (*repository.Transfer, error) {
	transfer, err := s.transfers.Cancel(ctx, id, req.Reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", transfer.ID).
		Str("reason", req.Reason).
		Msg("transfer cancelled")

	s.publisher.TransferCancelled(ctx, messaging.TransferCancelledEvent{
		TransferID:     transfer.ID,
		TrackingNumber: transfer.TrackingNumber,
		Reason:         req.Reason,
	})

	return transfer, nil
}

// Get gets a transfer by ID
func (s *TransferService) Get(ctx context.Context, id string) (*repository.Transfer, error) {
	return s.transfers.GetByID(ctx, id)
}

// List lists transfers matching the filter
func (s *TransferService) List(ctx context.Context, filter repository.TransferFilter, page, perPage int) ([]*repository.Transfer, int64, error) {
	return s.transfers.List(ctx, filter, page, perPage)
}

// ListPendingApprovals lists PENDING transfers in request order
func (s *TransferService) ListPendingApprovals(ctx context.Context, page, perPage int) ([]*repository.Transfer, int64, error) {
	return s.transfers.ListPendingApprovals(ctx, page, perPage)
}

const trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateTrackingNumber builds a TRF-<timestamp>-<suffix> identifier.
// The random suffix keeps two requests in the same second distinct; the
// unique constraint on the column is the real guarantee.
func generateTrackingNumber() string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	for i, b := range suffix {
		suffix[i] = trackingAlphabet[int(b)%len(trackingAlphabet)]
	}
	return fmt.Sprintf("TRF-%d-%s", time.Now().Unix(), suffix)
}
