package handler

import (
	"net/http"

	"github.com/careops/careops-backend/internal/pharmacy/service"
	"github.com/careops/careops-backend/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// StockTakeHandler serves the stock take endpoints
type StockTakeHandler struct {
	stockTakes *service.StockTakeService
}

// NewStockTakeHandler creates a new stock take handler
func NewStockTakeHandler(stockTakes *service.StockTakeService) *StockTakeHandler {
	return &StockTakeHandler{stockTakes: stockTakes}
}

// Routes mounts the stock take routes
func (h *StockTakeHandler) Routes(r chi.Router) {
	r.Route("/stocktakes", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/items", h.AddItems)
		r.Put("/{id}/status", h.UpdateStatus)
		r.Put("/{id}/review", h.Review)
	})

	r.Route("/locations/{locationId}/stocktakes", func(r chi.Router) {
		r.Get("/", h.ListByLocation)
		r.Get("/stats", h.Stats)
		r.Get("/variance-report", h.VarianceReport)
	})
}

// Create opens a new stock take in DRAFT state
func (h *StockTakeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateStockTakeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.stockTakes.Create(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, st)
}

// Get returns a stock take with its items
func (h *StockTakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.stockTakes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, st)
}

// AddItems appends counted items to a session
func (h *StockTakeHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	var req service.AddStockTakeItemsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.stockTakes.AddItems(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

// UpdateStatus drives the stock take state machine
func (h *StockTakeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateStockTakeStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	st, err := h.stockTakes.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, st)
}

// Review records a second-pass review on a completed session. The body
// is optional; reviewer notes are the only field it carries.
func (h *StockTakeHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewStockTakeRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	st, err := h.stockTakes.Review(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, st)
}

// ListByLocation lists a location's stock takes
func (h *StockTakeHandler) ListByLocation(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	locationID := chi.URLParam(r, "locationId")
	status := r.URL.Query().Get("status")

	stockTakes, total, err := h.stockTakes.ListByLocation(r.Context(), locationID, status, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, stockTakes, httputil.PaginationMeta(page, perPage, total))
}

// Stats aggregates session counts and variances for a location
func (h *StockTakeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stockTakes.Stats(r.Context(), chi.URLParam(r, "locationId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, stats)
}

// VarianceReport aggregates per-medication variances for a location
func (h *StockTakeHandler) VarianceReport(w http.ResponseWriter, r *http.Request) {
	windowDays := httputil.QueryInt(r, "windowDays", 90)

	report, err := h.stockTakes.VarianceReport(r.Context(), chi.URLParam(r, "locationId"), windowDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, report)
}
