package handler

import (
	"net/http"

	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/internal/pharmacy/service"
	"github.com/careops/careops-backend/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// TransferHandler serves the transfer workflow endpoints
type TransferHandler struct {
	transfers *service.TransferService
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Routes mounts the transfer routes
func (h *TransferHandler) Routes(r chi.Router) {
	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", h.Request)
		r.Get("/", h.List)
		r.Get("/pending-approvals", h.PendingApprovals)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/approve", h.Approve)
		r.Put("/{id}/complete", h.Complete)
		r.Put("/{id}/cancel", h.Cancel)
	})
}

// Request creates a transfer in PENDING state
func (h *TransferHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req service.RequestTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer, err := h.transfers.Request(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, transfer)
}

// Get returns a single transfer
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.transfers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, transfer)
}

// List lists transfers filtered by location and status
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	filter := repository.TransferFilter{
		LocationID: r.URL.Query().Get("locationId"),
		Status:     r.URL.Query().Get("status"),
	}

	transfers, total, err := h.transfers.List(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transfers, httputil.PaginationMeta(page, perPage, total))
}

// PendingApprovals lists PENDING transfers in request order
func (h *TransferHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	transfers, total, err := h.transfers.ListPendingApprovals(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transfers, httputil.PaginationMeta(page, perPage, total))
}

// Approve moves a PENDING transfer to IN_TRANSIT
func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req service.ApproveTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer, err := h.transfers.Approve(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// Complete moves an IN_TRANSIT transfer to COMPLETED and moves the stock
func (h *TransferHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req service.CompleteTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer, err := h.transfers.Complete(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}

// Cancel moves a PENDING or IN_TRANSIT transfer to CANCELLED
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req service.CancelTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	transfer, err := h.transfers.Cancel(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfer)
}
