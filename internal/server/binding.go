package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
)

// parseOrderID extracts and parses the order_id path parameter.
func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("order_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Invalid("order_id", "must be a UUID")
	}
	return id, nil
}

// bindListOrdersQuery builds the typed list query from URL parameters.
//
// Defaults are presence-based, never truthiness-based: a parameter the caller
// did not send gets its default, but an explicitly supplied zero or empty
// value is preserved exactly. limit=0 is a request for an empty page, not a
// request for the default page size. A parameter that is present but cannot
// be converted is an invalid-argument error, not a silent fallback.
func bindListOrdersQuery(r *http.Request) (model.ListOrdersQuery, error) {
	params := r.URL.Query()
	q := model.ListOrdersQuery{
		Limit:   model.DefaultListLimit,
		Offset:  0,
		SortDir: model.SortAsc,
	}

	if params.Has("limit") {
		n, err := strconv.Atoi(params.Get("limit"))
		if err != nil {
			return model.ListOrdersQuery{}, apperr.Invalid("limit", "must be an integer")
		}
		q.Limit = n
	}

	if params.Has("offset") {
		n, err := strconv.Atoi(params.Get("offset"))
		if err != nil {
			return model.ListOrdersQuery{}, apperr.Invalid("offset", "must be an integer")
		}
		q.Offset = n
	}

	if params.Has("sortby") {
		q.SortBy = params.Get("sortby")
	}

	if params.Has("sortdirection") {
		switch strings.ToUpper(params.Get("sortdirection")) {
		case "ASC":
			q.SortDir = model.SortAsc
		case "DESC":
			q.SortDir = model.SortDesc
		default:
			return model.ListOrdersQuery{}, apperr.Invalid("sortdirection", "must be ASC or DESC")
		}
	}

	if params.Has("status") {
		status := model.OrderStatus(params.Get("status"))
		q.Status = &status
	}

	if params.Has("customer") {
		customer := params.Get("customer")
		q.Customer = &customer
	}

	return q, nil
}
