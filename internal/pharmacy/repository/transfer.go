package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/careops/careops-backend/pkg/database"
	"github.com/careops/careops-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Transfer statuses
const (
	TransferPending   = "PENDING"
	TransferInTransit = "IN_TRANSIT"
	TransferCompleted = "COMPLETED"
	TransferCancelled = "CANCELLED"
)

// Transfer types
const (
	TransferTypeInterLocation   = "INTER_LOCATION"
	TransferTypeStockAdjustment = "STOCK_ADJUSTMENT"
	TransferTypeDonation        = "DONATION"
	TransferTypeReturn          = "RETURN"
)

// Transfer is a request to move stock between two locations. Once
// COMPLETED or CANCELLED the record is immutable.
type Transfer struct {
	ID                string     `db:"id" json:"id"`
	FromLocationID    string     `db:"from_location_id" json:"from_location_id"`
	ToLocationID      string     `db:"to_location_id" json:"to_location_id"`
	MedicationID      string     `db:"medication_id" json:"medication_id"`
	Quantity          int        `db:"quantity" json:"quantity"`
	Unit              string     `db:"unit" json:"unit"`
	BatchNumber       string     `db:"batch_number" json:"batch_number,omitempty"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	TransferType      string     `db:"transfer_type" json:"transfer_type"`
	Status            string     `db:"status" json:"status"`
	RequestedBy       string     `db:"requested_by" json:"requested_by"`
	ApprovedBy        *string    `db:"approved_by" json:"approved_by,omitempty"`
	CompletedBy       *string    `db:"completed_by" json:"completed_by,omitempty"`
	Reason            string     `db:"reason" json:"reason"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	CancelReason      *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	TrackingNumber    string     `db:"tracking_number" json:"tracking_number"`
	RequestedAt       time.Time  `db:"requested_at" json:"requested_at"`
	ApprovedAt        *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	EstimatedDelivery *time.Time `db:"estimated_delivery" json:"estimated_delivery,omitempty"`
	ActualCostCents   *int       `db:"actual_cost_cents" json:"actual_cost_cents,omitempty"`
}

// TransferFilter narrows transfer list queries.
type TransferFilter struct {
	LocationID string // matches either end of the transfer
	Status     string
}

// TransferRepository handles transfer persistence
type TransferRepository struct {
	db *database.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `
	id, from_location_id, to_location_id, medication_id, quantity, unit,
	batch_number, expiry_date, transfer_type, status, requested_by,
	approved_by, completed_by, reason, notes, cancel_reason, tracking_number,
	requested_at, approved_at, completed_at, cancelled_at, estimated_delivery,
	actual_cost_cents
`

// Create creates a new transfer in PENDING state
func (r *TransferRepository) Create(ctx context.Context, t *Transfer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Status = TransferPending

	query := `
		INSERT INTO transfers (
			id, from_location_id, to_location_id, medication_id, quantity, unit,
			batch_number, expiry_date, transfer_type, status, requested_by,
			reason, notes, tracking_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING requested_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		t.ID, t.FromLocationID, t.ToLocationID, t.MedicationID, t.Quantity, t.Unit,
		t.BatchNumber, t.ExpiryDate, t.TransferType, t.Status, t.RequestedBy,
		t.Reason, t.Notes, t.TrackingNumber,
	).Scan(&t.RequestedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a transfer by ID
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*Transfer, error) {
	var t Transfer
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}
	return &t, nil
}

// GetByIDTx gets a transfer by ID inside a transaction, locking the row
// for the duration of the transaction.
func (r *TransferRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*Transfer, error) {
	var t Transfer
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}
	return &t, nil
}

// Approve moves a PENDING transfer to IN_TRANSIT. The status predicate
// makes the update a compare-and-swap: of two concurrent approvals
// exactly one matches a PENDING row.
func (r *TransferRepository) Approve(ctx context.Context, id, approver string, estimatedDelivery *time.Time) (*Transfer, error) {
	var t Transfer
	query := `
		UPDATE transfers
		SET status = $3, approved_by = $2, approved_at = NOW(), estimated_delivery = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + transferColumns + `
	`
	err := r.db.QueryRowxContext(ctx, query, id, approver, TransferInTransit, estimatedDelivery, TransferPending).StructScan(&t)
	if err == nil {
		return &t, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return nil, r.transitionConflict(ctx, id, TransferInTransit)
}

// CompleteTx moves an IN_TRANSIT transfer to COMPLETED inside the
// transaction that also mutates both inventory lines.
func (r *TransferRepository) CompleteTx(ctx context.Context, tx *sqlx.Tx, id, completer string, actualCostCents *int) (*Transfer, error) {
	var t Transfer
	query := `
		UPDATE transfers
		SET status = $3, completed_by = $2, completed_at = NOW(), actual_cost_cents = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + transferColumns + `
	`
	err := tx.QueryRowxContext(ctx, query, id, completer, TransferCompleted, actualCostCents, TransferInTransit).StructScan(&t)
	if err == nil {
		return &t, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return nil, r.transitionConflict(ctx, id, TransferCompleted)
}

// Cancel moves a PENDING or IN_TRANSIT transfer to CANCELLED.
func (r *TransferRepository) Cancel(ctx context.Context, id, reason string) (*Transfer, error) {
	var t Transfer
	query := `
		UPDATE transfers
		SET status = $3, cancel_reason = $2, cancelled_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING ` + transferColumns + `
	`
	err := r.db.QueryRowxContext(ctx, query, id, reason, TransferCancelled, TransferPending, TransferInTransit).StructScan(&t)
	if err == nil {
		return &t, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return nil, r.transitionConflict(ctx, id, TransferCancelled)
}

// transitionConflict reports why a compare-and-swap update matched no row.
func (r *TransferRepository) transitionConflict(ctx context.Context, id, target string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.InvalidStateTransition("transfer", existing.Status, target)
}

// List lists transfers matching the filter, newest first, with pagination
func (r *TransferRepository) List(ctx context.Context, filter TransferFilter, page, perPage int) ([]*Transfer, int64, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		where += ` AND (from_location_id = $1 OR to_location_id = $1)`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += ` AND status = $` + itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transfers`+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := `SELECT ` + transferColumns + ` FROM transfers` + where +
		` ORDER BY requested_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	var transfers []*Transfer
	if err := r.db.SelectContext(ctx, &transfers, query, args...); err != nil {
		return nil, 0, err
	}

	return transfers, total, nil
}

// ListPendingApprovals lists PENDING transfers oldest first, so approvers
// work the queue in request order.
func (r *TransferRepository) ListPendingApprovals(ctx context.Context, page, perPage int) ([]*Transfer, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transfers WHERE status = $1`, TransferPending); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var transfers []*Transfer
	query := `
		SELECT ` + transferColumns + ` FROM transfers
		WHERE status = $1
		ORDER BY requested_at
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &transfers, query, TransferPending, perPage, offset); err != nil {
		return nil, 0, err
	}

	return transfers, total, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
