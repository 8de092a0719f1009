package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dealcart/deals-platform/services/catalog/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// ListDeals handles GET /admin/deals
func (h *Handlers) ListDeals(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	deals, err := h.dealService.ListDeals(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deals", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deals":  deals,
		"limit":  limit,
		"offset": offset,
	})
}

// CreateDeal handles POST /admin/deals
func (h *Handlers) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var deal domain.Deal
	if err := json.NewDecoder(r.Body).Decode(&deal); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	created, errs, err := h.dealService.CreateDeal(r.Context(), &deal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create deal", "INTERNAL_ERROR")
		return
	}
	if errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetDeal handles GET /admin/deals/{id}
func (h *Handlers) GetDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal id", "INVALID_INPUT")
		return
	}

	deal, err := h.dealService.GetDeal(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load deal", "INTERNAL_ERROR")
		return
	}
	if deal == nil {
		writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// UpdateDeal handles PATCH /admin/deals/{id}
func (h *Handlers) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal id", "INVALID_INPUT")
		return
	}

	var deal domain.Deal
	if err := json.NewDecoder(r.Body).Decode(&deal); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	updated, errs, err := h.dealService.UpdateDeal(r.Context(), id, &deal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update deal", "INTERNAL_ERROR")
		return
	}
	if errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteDeal handles DELETE /admin/deals/{id}
func (h *Handlers) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal id", "INVALID_INPUT")
		return
	}

	if err := h.dealService.DeleteDeal(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete deal", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deal deleted"})
}

// PublishDeal handles POST /admin/deals/{id}/publish
func (h *Handlers) PublishDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal id", "INVALID_INPUT")
		return
	}

	deal, errs, err := h.dealService.Publish(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to publish deal", "INTERNAL_ERROR")
		return
	}
	if errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if deal == nil {
		writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// UnpublishDeal handles POST /admin/deals/{id}/unpublish
func (h *Handlers) UnpublishDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal id", "INVALID_INPUT")
		return
	}

	deal, errs, err := h.dealService.Unpublish(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to unpublish deal", "INTERNAL_ERROR")
		return
	}
	if errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if deal == nil {
		writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// DealProgress handles GET /admin/deals/{id}/progress
func (h *Handlers) DealProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal id", "INVALID_INPUT")
		return
	}

	progress, err := h.dealService.Progress(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load deal progress", "INTERNAL_ERROR")
		return
	}
	if progress == nil {
		writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, progress)
}
