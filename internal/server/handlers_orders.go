package server

import (
	"net/http"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
)

// HandleListOrders handles GET /v1/orders.
//
// An empty result set is a successful response with an empty data array —
// a collection with no matches is not a missing resource.
func (h *Handlers) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	q, err := bindListOrdersQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.orderSvc.List(r.Context(), q)
	if err != nil {
		h.error(w, r, err)
		return
	}

	writePage(w, r, page, page.Orders)
}

// HandleGetOrder handles GET /v1/orders/{order_id}.
//
// This is the only place a single-order miss becomes a 404: the layers below
// report "no record" as an empty result, and the handler decides what that
// means for the caller.
func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, r, http.StatusOK, order)
}

// HandleCreateOrder handles PUT /v1/orders.
func (h *Handlers) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, decodeError(err))
		return
	}

	order, err := h.orderSvc.Create(r.Context(), req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, order)
}

// HandleUpdateOrder handles POST /v1/orders/{order_id}. Full replacement:
// every mutable field is required.
func (h *Handlers) HandleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req model.UpdateOrderRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, decodeError(err))
		return
	}

	order, err := h.orderSvc.Update(r.Context(), id, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if order == nil {
		writeError(w, r, apperr.NotFound("order"))
		return
	}

	writeJSON(w, r, http.StatusOK, order)
}

// HandlePatchOrder handles PATCH /v1/orders/{order_id}. Applies only the
// fields present in the body; explicitly supplied zero values are applied,
// absent fields are left untouched.
func (h *Handlers) HandlePatchOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch model.OrderPatch
	if err := decodeJSON(w, r, &patch, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, decodeError(err))
		return
	}

	order, err := h.orderSvc.Patch(r.Context(), id, patch)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if order == nil {
		writeError(w, r, apperr.NotFound("order"))
		return
	}

	writeJSON(w, r, http.StatusOK, order)
}

// HandleDeleteOrder handles DELETE /v1/orders/{order_id}. Removes the order
// and its payments in one transaction.
func (h *Handlers) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := h.orderSvc.Delete(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, apperr.NotFound("order"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
