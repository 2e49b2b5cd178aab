package orderd

import (
	"time"

	"github.com/google/uuid"
)

// Order status values.
const (
	StatusPendingPayment = "pending_payment"
	StatusPaid           = "paid"
	StatusCancelled      = "cancelled"
)

// Payment method values.
const (
	MethodCard     = "card"
	MethodTransfer = "transfer"
	MethodCash     = "cash"
)

// Order is a customer order as returned by the server.
type Order struct {
	ID           uuid.UUID `json:"id"`
	CustomerName string    `json:"customer_name"`
	Status       string    `json:"status"`
	TotalCents   int64     `json:"total_cents"`
	Currency     string    `json:"currency"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Payment is a recorded settlement against an order.
type Payment struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateOrderRequest is the body for creating an order. The server assigns
// the ID and forces the initial status to pending_payment.
type CreateOrderRequest struct {
	CustomerName string `json:"customer_name"`
	TotalCents   int64  `json:"total_cents"`
	Currency     string `json:"currency"`
	Notes        string `json:"notes,omitempty"`
}

// UpdateOrderRequest is the body for a full order replacement. Every field
// is required; use PatchOrder for partial updates.
type UpdateOrderRequest struct {
	CustomerName string `json:"customer_name"`
	Status       string `json:"status"`
	TotalCents   int64  `json:"total_cents"`
	Currency     string `json:"currency"`
	Notes        string `json:"notes"`
}

// OrderPatch carries the fields of a partial update. Nil fields are left
// untouched by the server; a non-nil pointer to a zero value ("" or 0) is
// applied as that zero value.
type OrderPatch struct {
	CustomerName *string `json:"customer_name,omitempty"`
	Status       *string `json:"status,omitempty"`
	TotalCents   *int64  `json:"total_cents,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// OrdersPage is one page of a listing together with the counts of the
// paginated envelope: Total counts every order, FilteredTotal counts the
// orders matching the request's filters.
type OrdersPage struct {
	Total         int     `json:"total"`
	FilteredTotal int     `json:"filteredTotal"`
	Orders        []Order `json:"data"`
}

// ListOrdersOptions are optional query parameters for ListOrders.
// Limit and Offset are pointers so an explicit zero can be sent; nil leaves
// the server defaults (limit 100, offset 0) in effect.
type ListOrdersOptions struct {
	Status        string
	Customer      string
	SortBy        string // created, total, status, customer
	SortDirection string // ASC or DESC (case-insensitive)
	Limit         *int
	Offset        *int
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
