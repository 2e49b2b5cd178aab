package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusCancelled      OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// MaxCustomerNameLen bounds the customer_name column. Oversized values are
// rejected before they reach storage.
const MaxCustomerNameLen = 200

// MaxNotesLen bounds the notes column.
const MaxNotesLen = 8 * 1024

// Order is a customer order.
type Order struct {
	ID           uuid.UUID   `json:"id"`
	CustomerName string      `json:"customer_name"`
	Status       OrderStatus `json:"status"`
	TotalCents   int64       `json:"total_cents"`
	Currency     string      `json:"currency"`
	Notes        string      `json:"notes"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ValidateOrder checks field constraints shared by create and update.
func ValidateOrder(o Order) error {
	if o.CustomerName == "" {
		return fmt.Errorf("customer_name is required")
	}
	if len(o.CustomerName) > MaxCustomerNameLen {
		return fmt.Errorf("customer_name exceeds maximum length of %d characters", MaxCustomerNameLen)
	}
	if len(o.Notes) > MaxNotesLen {
		return fmt.Errorf("notes exceeds maximum length of %d bytes", MaxNotesLen)
	}
	if !ValidOrderStatus(o.Status) {
		return fmt.Errorf("status %q is not one of pending_payment, paid, cancelled", o.Status)
	}
	if o.TotalCents < 0 {
		return fmt.Errorf("total_cents must not be negative")
	}
	if len(o.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO 4217 code")
	}
	return nil
}

// SortDirection is a normalized sort direction for list queries.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ListOrdersQuery is the typed request for the order search operation.
// It is constructed by the HTTP layer from textual query parameters; every
// field is already type-correct by the time the service layer sees it.
type ListOrdersQuery struct {
	Status   *OrderStatus
	Customer *string

	SortBy  string // external sort key; validated against the storage allow-list
	SortDir SortDirection
	Limit   int
	Offset  int
}

// DefaultListLimit is substituted when the caller omits limit.
const DefaultListLimit = 100

// MaxListLimit caps caller-supplied page sizes.
const MaxListLimit = 1000

// MaxListOffset prevents absurdly large offsets that force expensive scans.
const MaxListOffset = 100_000
