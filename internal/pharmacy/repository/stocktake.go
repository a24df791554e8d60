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

// Stock take statuses
const (
	StockTakeDraft      = "DRAFT"
	StockTakeInProgress = "IN_PROGRESS"
	StockTakeCompleted  = "COMPLETED"
	StockTakeCancelled  = "CANCELLED"
)

// Stock take types
const (
	StockTakeFull      = "FULL"
	StockTakePartial   = "PARTIAL"
	StockTakeSpotCheck = "SPOT_CHECK"
	StockTakeAudit     = "AUDIT"
)

// StockTake is a physical count session at a single location.
type StockTake struct {
	ID                 string     `db:"id" json:"id"`
	LocationID         string     `db:"location_id" json:"location_id"`
	StockTakeDate      time.Time  `db:"stock_take_date" json:"stock_take_date"`
	Type               string     `db:"type" json:"type"`
	Status             string     `db:"status" json:"status"`
	ConductedBy        string     `db:"conducted_by" json:"conducted_by"`
	ReviewedBy         *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	TotalVariance      int        `db:"total_variance" json:"total_variance"`
	VarianceValueCents int64      `db:"variance_value_cents" json:"variance_value_cents"`
	Reason             string     `db:"reason" json:"reason"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	StartedAt          time.Time  `db:"started_at" json:"started_at"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ReviewedAt         *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`

	Items []*StockTakeItem `db:"-" json:"items,omitempty"`
}

// StockTakeItem records one counted medication line within a session.
// Items are append-only once recorded.
type StockTakeItem struct {
	ID               string     `db:"id" json:"id"`
	StockTakeID      string     `db:"stock_take_id" json:"stock_take_id"`
	MedicationID     string     `db:"medication_id" json:"medication_id"`
	ExpectedQuantity int        `db:"expected_quantity" json:"expected_quantity"`
	ActualQuantity   int        `db:"actual_quantity" json:"actual_quantity"`
	Variance         int        `db:"variance" json:"variance"`
	Unit             string     `db:"unit" json:"unit"`
	BatchNumber      string     `db:"batch_number" json:"batch_number,omitempty"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// StockTakeStats aggregates stock take sessions for a location.
type StockTakeStats struct {
	TotalCount         int64 `db:"total_count" json:"total_count"`
	DraftCount         int64 `db:"draft_count" json:"draft_count"`
	InProgressCount    int64 `db:"in_progress_count" json:"in_progress_count"`
	CompletedCount     int64 `db:"completed_count" json:"completed_count"`
	CancelledCount     int64 `db:"cancelled_count" json:"cancelled_count"`
	TotalVariance      int64 `db:"total_variance" json:"total_variance"`
	VarianceValueCents int64 `db:"variance_value_cents" json:"variance_value_cents"`
}

// MedicationVariance is a per-medication variance aggregate across
// completed stock takes.
type MedicationVariance struct {
	MedicationID   string `db:"medication_id" json:"medication_id"`
	MedicationName string `db:"medication_name" json:"medication_name"`
	TimesCounted   int64  `db:"times_counted" json:"times_counted"`
	TotalVariance  int64  `db:"total_variance" json:"total_variance"`
	NetVariance    int64  `db:"net_variance" json:"net_variance"`
}

// StockTakeRepository handles stock take persistence
type StockTakeRepository struct {
	db *database.DB
}

// NewStockTakeRepository creates a new stock take repository
func NewStockTakeRepository(db *database.DB) *StockTakeRepository {
	return &StockTakeRepository{db: db}
}

const stockTakeColumns = `
	id, location_id, stock_take_date, type, status, conducted_by, reviewed_by,
	total_variance, variance_value_cents, reason, notes, started_at,
	completed_at, reviewed_at
`

// Create creates a new stock take in DRAFT state
func (r *StockTakeRepository) Create(ctx context.Context, st *StockTake) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	st.Status = StockTakeDraft

	query := `
		INSERT INTO stock_takes (id, location_id, stock_take_date, type, status, conducted_by, reason, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING started_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		st.ID, st.LocationID, st.StockTakeDate, st.Type, st.Status, st.ConductedBy, st.Reason, st.Notes,
	).Scan(&st.StartedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a stock take with its items
func (r *StockTakeRepository) GetByID(ctx context.Context, id string) (*StockTake, error) {
	var st StockTake
	query := `SELECT ` + stockTakeColumns + ` FROM stock_takes WHERE id = $1`
	if err := r.db.GetContext(ctx, &st, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock take")
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Items = items
	return &st, nil
}

func (r *StockTakeRepository) listItems(ctx context.Context, stockTakeID string) ([]*StockTakeItem, error) {
	var items []*StockTakeItem
	query := `
		SELECT id, stock_take_id, medication_id, expected_quantity, actual_quantity,
		       variance, unit, batch_number, expiry_date, notes, created_at
		FROM stock_take_items
		WHERE stock_take_id = $1
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &items, query, stockTakeID); err != nil {
		return nil, err
	}
	return items, nil
}

// AddItems appends counted items to a DRAFT or IN_PROGRESS session,
// promoting DRAFT to IN_PROGRESS, then recomputes the session's total
// variance from all recorded items. All of it happens in one transaction.
func (r *StockTakeRepository) AddItems(ctx context.Context, id string, items []*StockTakeItem) (*StockTake, error) {
	var st StockTake
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		promote := `
			UPDATE stock_takes
			SET status = $2
			WHERE id = $1 AND status IN ($3, $4)
		`
		res, err := tx.ExecContext(ctx, promote, id, StockTakeInProgress, StockTakeDraft, StockTakeInProgress)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.transitionConflict(ctx, id, StockTakeInProgress)
		}

		insert := `
			INSERT INTO stock_take_items (
				id, stock_take_id, medication_id, expected_quantity,
				actual_quantity, variance, unit, batch_number, expiry_date, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at
		`
		for _, item := range items {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			item.StockTakeID = id
			item.Variance = item.ActualQuantity - item.ExpectedQuantity
			err := tx.QueryRowxContext(ctx, insert,
				item.ID, item.StockTakeID, item.MedicationID, item.ExpectedQuantity,
				item.ActualQuantity, item.Variance, item.Unit, item.BatchNumber,
				item.ExpiryDate, item.Notes,
			).Scan(&item.CreatedAt)
			if err != nil {
				if mapped := database.MapPQError(err); mapped != nil {
					return mapped
				}
				return err
			}
		}

		// Recompute from the items table rather than incrementing, so the
		// stored total is always the sum over everything recorded.
		// TODO: price variance once unit prices are snapshotted per item.
		// Until then variance_value_cents stays at zero.
		recompute := `
			UPDATE stock_takes
			SET total_variance = (
				SELECT COALESCE(SUM(ABS(variance)), 0)
				FROM stock_take_items WHERE stock_take_id = $1
			)
			WHERE id = $1
			RETURNING ` + stockTakeColumns + `
		`
		return tx.QueryRowxContext(ctx, recompute, id).StructScan(&st)
	})
	if err != nil {
		return nil, err
	}

	st.Items, err = r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Complete moves a DRAFT or IN_PROGRESS stock take to COMPLETED,
// recording the reviewer when one is supplied. A DRAFT take may be
// completed directly, with zero items and zero variance.
func (r *StockTakeRepository) Complete(ctx context.Context, id string, reviewedBy *string) (*StockTake, error) {
	var st StockTake
	query := `
		UPDATE stock_takes
		SET status = $2,
		    reviewed_by = $3,
		    completed_at = NOW(),
		    reviewed_at = CASE WHEN $3::uuid IS NULL THEN NULL ELSE NOW() END
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING ` + stockTakeColumns + `
	`
	err := r.db.QueryRowxContext(ctx, query, id, StockTakeCompleted, reviewedBy, StockTakeDraft, StockTakeInProgress).StructScan(&st)
	if err == nil {
		st.Items, err = r.listItems(ctx, id)
		if err != nil {
			return nil, err
		}
		return &st, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return nil, r.transitionConflict(ctx, id, StockTakeCompleted)
}

// Cancel moves a DRAFT or IN_PROGRESS stock take to CANCELLED.
func (r *StockTakeRepository) Cancel(ctx context.Context, id string) (*StockTake, error) {
	var st StockTake
	query := `
		UPDATE stock_takes
		SET status = $2
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING ` + stockTakeColumns + `
	`
	err := r.db.QueryRowxContext(ctx, query, id, StockTakeCancelled, StockTakeDraft, StockTakeInProgress).StructScan(&st)
	if err == nil {
		return &st, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return nil, r.transitionConflict(ctx, id, StockTakeCancelled)
}

// Review records a reviewer on a COMPLETED stock take that was completed
// without one. Reviewer notes, when supplied, replace the session notes.
func (r *StockTakeRepository) Review(ctx context.Context, id, reviewer string, notes *string) (*StockTake, error) {
	var st StockTake
	query := `
		UPDATE stock_takes
		SET reviewed_by = $2, reviewed_at = NOW(), notes = COALESCE($3, notes)
		WHERE id = $1 AND status = $4 AND reviewed_by IS NULL
		RETURNING ` + stockTakeColumns + `
	`
	err := r.db.QueryRowxContext(ctx, query, id, reviewer, notes, StockTakeCompleted).StructScan(&st)
	if err == nil {
		return &st, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	existing, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	if existing.Status != StockTakeCompleted {
		return nil, errors.InvalidStateTransition("stock take", existing.Status, StockTakeCompleted)
	}
	return nil, errors.Conflict("stock take has already been reviewed")
}

func (r *StockTakeRepository) transitionConflict(ctx context.Context, id, target string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.InvalidStateTransition("stock take", existing.Status, target)
}

// ListByLocation lists stock takes for a location, newest first
func (r *StockTakeRepository) ListByLocation(ctx context.Context, locationID, status string, page, perPage int) ([]*StockTake, int64, error) {
	where := ` WHERE location_id = $1`
	args := []interface{}{locationID}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $2`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_takes`+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := `SELECT ` + stockTakeColumns + ` FROM stock_takes` + where +
		` ORDER BY started_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	var stockTakes []*StockTake
	if err := r.db.SelectContext(ctx, &stockTakes, query, args...); err != nil {
		return nil, 0, err
	}
	return stockTakes, total, nil
}

// Stats aggregates stock take counts and variances for a location
func (r *StockTakeRepository) Stats(ctx context.Context, locationID string) (*StockTakeStats, error) {
	var stats StockTakeStats
	query := `
		SELECT
			COUNT(*) AS total_count,
			COUNT(*) FILTER (WHERE status = 'DRAFT') AS draft_count,
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS') AS in_progress_count,
			COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed_count,
			COUNT(*) FILTER (WHERE status = 'CANCELLED') AS cancelled_count,
			COALESCE(SUM(total_variance) FILTER (WHERE status = 'COMPLETED'), 0) AS total_variance,
			COALESCE(SUM(variance_value_cents) FILTER (WHERE status = 'COMPLETED'), 0) AS variance_value_cents
		FROM stock_takes
		WHERE location_id = $1
	`
	if err := r.db.GetContext(ctx, &stats, query, locationID); err != nil {
		return nil, err
	}
	return &stats, nil
}

// VarianceReport aggregates item variances per medication across the
// location's completed stock takes within the window.
func (r *StockTakeRepository) VarianceReport(ctx context.Context, locationID string, since time.Time) ([]*MedicationVariance, error) {
	var report []*MedicationVariance
	query := `
		SELECT
			i.medication_id,
			m.name AS medication_name,
			COUNT(*) AS times_counted,
			COALESCE(SUM(ABS(i.variance)), 0) AS total_variance,
			COALESCE(SUM(i.variance), 0) AS net_variance
		FROM stock_take_items i
		JOIN stock_takes s ON s.id = i.stock_take_id
		JOIN medications m ON m.id = i.medication_id
		WHERE s.location_id = $1
		  AND s.status = 'COMPLETED'
		  AND s.completed_at >= $2
		GROUP BY i.medication_id, m.name
		ORDER BY total_variance DESC, m.name
	`
	if err := r.db.SelectContext(ctx, &report, query, locationID, since); err != nil {
		return nil, err
	}
	return report, nil
}
