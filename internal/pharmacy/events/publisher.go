package events

import (
	"context"

	"github.com/careops/careops-backend/pkg/logger"
	"github.com/careops/careops-backend/pkg/messaging"
)

// Publisher emits pharmacy domain events. A nil inner publisher turns
// every emit into a no-op, so the service layer works without a broker
// in local development and in unit tests.
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a pharmacy event publisher
func NewPublisher(publisher *messaging.Publisher, log *logger.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		logger:    log.WithComponent("pharmacy-events"),
	}
}

// publish sends the event and logs failures without propagating them:
// a broker outage must not roll back a committed ledger mutation.
func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// TransferRequested emits pharmacy.transfer.requested
func (p *Publisher) TransferRequested(ctx context.Context, e messaging.TransferRequestedEvent) {
	p.publish(ctx, messaging.EventTransferRequested, e)
}

// TransferApproved emits pharmacy.transfer.approved
func (p *Publisher) TransferApproved(ctx context.Context, e messaging.TransferApprovedEvent) {
	p.publish(ctx, messaging.EventTransferApproved, e)
}

// TransferCompleted emits pharmacy.transfer.completed
func (p *Publisher) TransferCompleted(ctx context.Context, e messaging.TransferCompletedEvent) {
	p.publish(ctx, messaging.EventTransferCompleted, e)
}

// TransferCancelled emits pharmacy.transfer.cancelled
func (p *Publisher) TransferCancelled(ctx context.Context, e messaging.TransferCancelledEvent) {
	p.publish(ctx, messaging.EventTransferCancelled, e)
}

// StockTakeCompleted emits pharmacy.stocktake.completed
func (p *Publisher) StockTakeCompleted(ctx context.Context, e messaging.StockTakeCompletedEvent) {
	p.publish(ctx, messaging.EventStockTakeCompleted, e)
}

// StockTakeReviewed emits pharmacy.stocktake.reviewed
func (p *Publisher) StockTakeReviewed(ctx context.Context, e messaging.StockTakeReviewedEvent) {
	p.publish(ctx, messaging.EventStockTakeReviewed, e)
}

// StockAdjusted emits pharmacy.stock.adjusted
func (p *Publisher) StockAdjusted(ctx context.Context, e messaging.StockAdjustedEvent) {
	p.publish(ctx, messaging.EventStockAdjusted, e)
}

// LowStock emits pharmacy.alert.low_stock
func (p *Publisher) LowStock(ctx context.Context, e messaging.LowStockEvent) {
	p.publish(ctx, messaging.EventLowStock, e)
}
