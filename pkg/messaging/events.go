package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// User events (consumed; published by the external user service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Transfer events
	EventTransferRequested = "pharmacy.transfer.requested"
	EventTransferApproved  = "pharmacy.transfer.approved"
	EventTransferCompleted = "pharmacy.transfer.completed"
	EventTransferCancelled = "pharmacy.transfer.cancelled"

	// Stock take events
	EventStockTakeCompleted = "pharmacy.stocktake.completed"
	EventStockTakeReviewed  = "pharmacy.stocktake.reviewed"

	// Ledger events
	EventStockAdjusted = "pharmacy.stock.adjusted"
	EventLowStock      = "pharmacy.alert.low_stock"
)

// Exchange names
const (
	ExchangeUserEvents     = "user.events"
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User events (consumed to keep display names current)

// UserCreatedEvent is published by the user service when a user is created
type UserCreatedEvent struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleName string `json:"role_name"`
}

// UserUpdatedEvent is published by the user service when a user is updated
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"` // Changed fields
}

// UserDeletedEvent is published by the user service when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}

// Transfer events

// TransferRequestedEvent is published when a stock transfer is requested
type TransferRequestedEvent struct {
	TransferID     string `json:"transfer_id"`
	TrackingNumber string `json:"tracking_number"`
	FromLocationID string `json:"from_location_id"`
	ToLocationID   string `json:"to_location_id"`
	MedicationID   string `json:"medication_id"`
	Quantity       int    `json:"quantity"`
	RequestedBy    string `json:"requested_by"`
}

// TransferApprovedEvent is published when a transfer moves to in-transit
type TransferApprovedEvent struct {
	TransferID     string     `json:"transfer_id"`
	TrackingNumber string     `json:"tracking_number"`
	ApprovedBy     string     `json:"approved_by"`
	EstimatedAt    *time.Time `json:"estimated_delivery,omitempty"`
}

// TransferCompletedEvent is published when stock has moved between locations
type TransferCompletedEvent struct {
	TransferID     string `json:"transfer_id"`
	TrackingNumber string `json:"tracking_number"`
	FromLocationID string `json:"from_location_id"`
	ToLocationID   string `json:"to_location_id"`
	MedicationID   string `json:"medication_id"`
	Quantity       int    `json:"quantity"`
	CompletedBy    string `json:"completed_by"`
}

// TransferCancelledEvent is published when a transfer is cancelled
type TransferCancelledEvent struct {
	TransferID     string `json:"transfer_id"`
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason"`
}

// Stock take events

// StockTakeCompletedEvent is published when a physical count is completed
type StockTakeCompletedEvent struct {
	StockTakeID   string `json:"stock_take_id"`
	LocationID    string `json:"location_id"`
	TotalVariance int    `json:"total_variance"`
	ItemCount     int    `json:"item_count"`
	ConductedBy   string `json:"conducted_by"`
	ReviewedBy    string `json:"reviewed_by,omitempty"`
}

// StockTakeReviewedEvent is published on explicit second-pass review
type StockTakeReviewedEvent struct {
	StockTakeID string `json:"stock_take_id"`
	ReviewedBy  string `json:"reviewed_by"`
}

// Ledger events

// StockAdjustedEvent is published when an inventory line quantity changes
type StockAdjustedEvent struct {
	LineID       string `json:"line_id"`
	LocationID   string `json:"location_id"`
	MedicationID string `json:"medication_id"`
	Delta        int    `json:"delta"`
	NewQuantity  int    `json:"new_quantity"`
	PerformedBy  string `json:"performed_by"`
	Reason       string `json:"reason,omitempty"`
}

// LowStockEvent is published when a line drops to or below its threshold
type LowStockEvent struct {
	LineID       string `json:"line_id"`
	LocationID   string `json:"location_id"`
	MedicationID string `json:"medication_id"`
	Quantity     int    `json:"quantity"`
	Threshold    int    `json:"threshold"`
}
