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

// Checkout opens a payment intent for the caller's cart.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	cartToken := r.Header.Get(cartTokenHeader)

	order, err := h.cartService.GetCart(r.Context(), cartToken)
	if err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			writeError(w, http.StatusNotFound, "Cart not found", "NOT_FOUND")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to load cart for checkout", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start checkout", "INTERNAL_ERROR")
		return
	}

	checkout, err := h.paymentService.CreateCheckout(r.Context(), order.ID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			writeError(w, http.StatusUnprocessableEntity, "Cart is empty", "EMPTY_CART")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to create checkout", "error", err, "order_id", order.ID)
		writeError(w, http.StatusInternalServerError, "Failed to start checkout", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusCreated, checkout)
}

// ConfirmPayment completes an order once its payment intent succeeded.
func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	order, err := h.paymentService.ConfirmPayment(r.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
		case errors.Is(err, service.ErrPaymentPending):
			writeError(w, http.StatusConflict, "Payment has not succeeded yet", "PAYMENT_PENDING")
		default:
			logger.ErrorContext(r.Context(), "Failed to confirm payment", "error", err, "order_id", req.OrderID)
			writeError(w, http.StatusInternalServerError, "Failed to confirm payment", "INTERNAL_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// RedeemCoupon marks a coupon code as used by the signed-in customer.
func (h *Handlers) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing session", "UNAUTHORIZED")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	coupon, err := h.orderService.RedeemCoupon(r.Context(), req.Code, claims.Sub)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to redeem coupon", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to redeem coupon", "INTERNAL_ERROR")
		return
	}
	if coupon == nil {
		writeError(w, http.StatusConflict, "Coupon is unknown or already redeemed", "COUPON_UNAVAILABLE")
		return
	}

	writeJSON(w, http.StatusOK, coupon)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown order status", "INVALID_REQUEST")
		return
	}

	orders, err := h.orderService.ListOrders(r.Context(), status, limit, offset)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list orders", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list orders", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_REQUEST")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load order", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to load order", "INTERNAL_ERROR")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) ListOrderCoupons(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_REQUEST")
		return
	}

	coupons, err := h.orderService.ListCoupons(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list coupons", "error", err, "order_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to list coupons", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"coupons": coupons})
}

func (h *Handlers) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_REQUEST")
		return
	}

	coupons, err := h.orderService.Deliver(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
			return
		}
		writeError(w, http.StatusConflict, err.Error(), "ILLEGAL_TRANSITION")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"coupons": coupons})
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order ID", "INVALID_REQUEST")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.orderService.Cancel(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found", "NOT_FOUND")
			return
		}
		writeError(w, http.StatusConflict, err.Error(), "ILLEGAL_TRANSITION")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) FinalizeDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid deal ID", "INVALID_REQUEST")
		return
	}

	result, err := h.orderService.FinalizeDeal(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDealNotFound):
			writeError(w, http.StatusNotFound, "Deal not found", "NOT_FOUND")
		case errors.Is(err, service.ErrDealNotClosed):
			writeError(w, http.StatusConflict, "Deal has not expired yet", "DEAL_STILL_OPEN")
		default:
			logger.ErrorContext(r.Context(), "Failed to finalize deal", "error", err, "deal_id", id)
			writeError(w, http.StatusInternalServerError, "Failed to finalize deal", "INTERNAL_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) FinalizeExpired(w http.ResponseWriter, r *http.Request) {
	results, err := h.orderService.FinalizeExpired(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to finalize expired deals", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to finalize expired deals", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
