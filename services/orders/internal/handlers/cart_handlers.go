package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/dealcart/deals-platform/services/orders/internal/service"
)

type cartResponse struct {
	CartToken string        `json:"cart_token"`
	Order     *domain.Order `json:"order"`
	Total     float64       `json:"total"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	cartToken := r.Header.Get(cartTokenHeader)

	order, err := h.cartService.GetCart(r.Context(), cartToken)
	if err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			writeError(w, http.StatusNotFound, "Cart not found", "NOT_FOUND")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to load cart", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load cart", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{CartToken: cartToken, Order: order, Total: order.Total()})
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DealID int64 `json:"deal_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DealID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	cartToken := r.Header.Get(cartTokenHeader)
	userID := h.optionalUserID(r)

	order, cartToken, err := h.cartService.AddItem(r.Context(), cartToken, req.DealID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDealNotFound):
			writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		case errors.Is(err, service.ErrDealNotSellable):
			writeError(w, http.StatusConflict, "Deal is not open for purchase", "DEAL_NOT_SELLABLE")
		case errors.Is(err, service.ErrPurchaseCapReached):
			writeError(w, http.StatusConflict, "Purchase limit for this deal reached", "PURCHASE_CAP_REACHED")
		default:
			logger.ErrorContext(r.Context(), "Failed to add cart item", "error", err, "deal_id", req.DealID)
			writeError(w, http.StatusInternalServerError, "Failed to add item to cart", "INTERNAL_ERROR")
		}
		return
	}

	w.Header().Set(cartTokenHeader, cartToken)
	writeJSON(w, http.StatusOK, cartResponse{CartToken: cartToken, Order: order, Total: order.Total()})
}

func (h *Handlers) DecrementCartItem(w http.ResponseWriter, r *http.Request) {
	dealID, ok := parseID(chi.URLParam(r, "dealID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal ID", "INVALID_REQUEST")
		return
	}

	cartToken := r.Header.Get(cartTokenHeader)
	order, err := h.cartService.DecrementItem(r.Context(), cartToken, dealID)
	if err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			writeError(w, http.StatusNotFound, "Cart not found", "NOT_FOUND")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to decrement cart item", "error", err, "deal_id", dealID)
		writeError(w, http.StatusInternalServerError, "Failed to update cart", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{CartToken: cartToken, Order: order, Total: order.Total()})
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	dealID, ok := parseID(chi.URLParam(r, "dealID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal ID", "INVALID_REQUEST")
		return
	}

	cartToken := r.Header.Get(cartTokenHeader)
	order, err := h.cartService.RemoveItem(r.Context(), cartToken, dealID)
	if err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			writeError(w, http.StatusNotFound, "Cart not found", "NOT_FOUND")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to remove cart item", "error", err, "deal_id", dealID)
		writeError(w, http.StatusInternalServerError, "Failed to update cart", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{CartToken: cartToken, Order: order, Total: order.Total()})
}
