package server

import (
	"net/http"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
)

// HandleCapturePayment handles PATCH /v1/orders/{order_id}/capture.
// Records a payment and flips the order to paid in a single transaction.
func (h *Handlers) HandleCapturePayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req model.CapturePaymentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, decodeError(err))
		return
	}

	payment, err := h.orderSvc.Capture(r.Context(), id, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if payment == nil {
		writeError(w, r, apperr.NotFound("order"))
		return
	}

	writeJSON(w, r, http.StatusOK, payment)
}

// HandleListPayments handles GET /v1/orders/{order_id}/payments.
// The order must exist; its payment list may legitimately be empty.
func (h *Handlers) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	order, err := h.orderSvc.Get(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if order == nil {
		writeError(w, r, apperr.NotFound("order"))
		return
	}

	payments, err := h.orderSvc.Payments(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, payments)
}
