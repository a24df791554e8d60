package service

import (
	"context"

	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/pkg/logger"
)

// DefaultExpiryWindowDays is the look-ahead for expiring stock queries
// when the caller does not supply one.
const DefaultExpiryWindowDays = 30

// AlertsSummary bundles the three derived views for one dashboard call.
type AlertsSummary struct {
	LowStock []*repository.InventoryLine `json:"low_stock"`
	Expiring []*repository.InventoryLine `json:"expiring"`
	Expired  []*repository.InventoryLine `json:"expired"`
}

// AlertService serves read-only derived views over the ledger
type AlertService struct {
	alerts *repository.AlertRepository
	logger *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alerts *repository.AlertRepository, log *logger.Logger) *AlertService {
	return &AlertService{
		alerts: alerts,
		logger: log.WithComponent("alert-service"),
	}
}

// LowStock lists active lines at or below the threshold, lowest first
func (s *AlertService) LowStock(ctx context.Context, locationID string, threshold int) ([]*repository.InventoryLine, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.alerts.LowStock(ctx, locationID, threshold)
}

// Expiring lists active lines expiring within daysAhead days
func (s *AlertService) Expiring(ctx context.Context, locationID string, daysAhead int) ([]*repository.InventoryLine, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultExpiryWindowDays
	}
	return s.alerts.Expiring(ctx, locationID, daysAhead)
}

// Expired lists active lines whose expiry has passed
func (s *AlertService) Expired(ctx context.Context, locationID string) ([]*repository.InventoryLine, error) {
	return s.alerts.Expired(ctx, locationID)
}

// Summary bundles low stock, expiring, and expired views
func (s *AlertService) Summary(ctx context.Context, locationID string) (*AlertsSummary, error) {
	lowStock, err := s.alerts.LowStock(ctx, locationID, DefaultLowStockThreshold)
	if err != nil {
		return nil, err
	}
	expiring, err := s.alerts.Expiring(ctx, locationID, DefaultExpiryWindowDays)
	if err != nil {
		return nil, err
	}
	expired, err := s.alerts.Expired(ctx, locationID)
	if err != nil {
		return nil, err
	}

	return &AlertsSummary{
		LowStock: lowStock,
		Expiring: expiring,
		Expired:  expired,
	}, nil
}
