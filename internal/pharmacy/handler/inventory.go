package handler

import (
	"net/http"

	"github.com/careops/careops-backend/internal/pharmacy/service"
	"github.com/careops/careops-backend/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// InventoryHandler serves inventory line and alert endpoints
type InventoryHandler struct {
	ledger *service.LedgerService
	alerts *service.AlertService
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(ledger *service.LedgerService, alerts *service.AlertService) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, alerts: alerts}
}

// Routes mounts the inventory routes
func (h *InventoryHandler) Routes(r chi.Router) {
	r.Get("/locations", h.ListLocations)
	r.Get("/medications", h.ListMedications)

	r.Route("/inventory", func(r chi.Router) {
		r.Post("/adjustments", h.AdjustStock)
		r.Get("/lines/{id}", h.GetLine)
		r.Delete("/lines/{id}", h.DeactivateLine)
		r.Get("/locations/{locationId}/lines", h.ListByLocation)

		r.Get("/low-stock", h.LowStock)
		r.Get("/expiring", h.Expiring)
		r.Get("/expired", h.Expired)
		r.Get("/alerts", h.AlertsSummary)
	})
}

// AdjustStock applies a signed quantity delta to an inventory line
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req service.AdjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	line, err := h.ledger.AdjustStock(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, line)
}

// GetLine returns a single inventory line
func (h *InventoryHandler) GetLine(w http.ResponseWriter, r *http.Request) {
	line, err := h.ledger.GetLine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, line)
}

// DeactivateLine soft deletes an inventory line
func (h *InventoryHandler) DeactivateLine(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeactivateLine(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ListByLocation lists a location's active lines
func (h *InventoryHandler) ListByLocation(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	lines, total, err := h.ledger.ListByLocation(r.Context(), chi.URLParam(r, "locationId"), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, lines, httputil.PaginationMeta(page, perPage, total))
}

// ListLocations lists active pharmacy locations
func (h *InventoryHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.ledger.ListLocations(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, locations)
}

// ListMedications lists active medications
func (h *InventoryHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	medications, total, err := h.ledger.ListMedications(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, medications, httputil.PaginationMeta(page, perPage, total))
}

// LowStock lists active lines at or below the threshold
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("locationId")
	threshold := httputil.QueryInt(r, "threshold", service.DefaultLowStockThreshold)

	lines, err := h.alerts.LowStock(r.Context(), locationID, threshold)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lines)
}

// Expiring lists active lines expiring within the window
func (h *InventoryHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("locationId")
	daysAhead := httputil.QueryInt(r, "daysAhead", service.DefaultExpiryWindowDays)

	lines, err := h.alerts.Expiring(r.Context(), locationID, daysAhead)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lines)
}

// Expired lists active lines whose expiry has passed
func (h *InventoryHandler) Expired(w http.ResponseWriter, r *http.Request) {
	lines, err := h.alerts.Expired(r.Context(), r.URL.Query().Get("locationId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lines)
}

// AlertsSummary bundles the low stock, expiring, and expired views
func (h *InventoryHandler) AlertsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.alerts.Summary(r.Context(), r.URL.Query().Get("locationId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}
