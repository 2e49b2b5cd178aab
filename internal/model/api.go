package model

import (
	"time"
)

// APIResponse is the standard response envelope for single-record and
// mutation responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// PageResponse is the envelope for paginated list endpoints.
// Invariants: FilteredTotal <= Total and len(Data) <= FilteredTotal.
// Total counts every record of the resource; FilteredTotal counts records
// matching the caller's filters; Data is one page of the filtered set.
type PageResponse struct {
	Total         int          `json:"total"`
	FilteredTotal int          `json:"filteredTotal"`
	Data          any          `json:"data"`
	Meta          ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope. Only the classification
// code and the caller-safe message cross the wire; causes stay in the logs.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateOrderRequest is the request body for PUT /v1/orders.
type CreateOrderRequest struct {
	CustomerName string `json:"customer_name"`
	TotalCents   int64  `json:"total_cents"`
	Currency     string `json:"currency"`
	Notes        string `json:"notes,omitempty"`
}

// UpdateOrderRequest is the request body for POST /v1/orders/{order_id}.
// Every field is required; use PATCH for partial updates.
type UpdateOrderRequest struct {
	CustomerName string      `json:"customer_name"`
	Status       OrderStatus `json:"status"`
	TotalCents   int64       `json:"total_cents"`
	Currency     string      `json:"currency"`
	Notes        string      `json:"notes"`
}

// OrderPatch is the request body for PATCH /v1/orders/{order_id}.
// Pointer fields distinguish "absent" from "explicitly set to a zero value":
// a present empty string clears the field, a nil pointer leaves it alone.
type OrderPatch struct {
	CustomerName *string      `json:"customer_name,omitempty"`
	Status       *OrderStatus `json:"status,omitempty"`
	TotalCents   *int64       `json:"total_cents,omitempty"`
	Currency     *string      `json:"currency,omitempty"`
	Notes        *string      `json:"notes,omitempty"`
}

// Empty reports whether the patch carries no fields at all.
func (p OrderPatch) Empty() bool {
	return p.CustomerName == nil && p.Status == nil && p.TotalCents == nil &&
		p.Currency == nil && p.Notes == nil
}

// CapturePaymentRequest is the request body for
// PATCH /v1/orders/{order_id}/capture.
type CapturePaymentRequest struct {
	AmountCents int64         `json:"amount_cents"`
	Method      PaymentMethod `json:"method"`
}

// AuthTokenRequest is the request body for POST /auth/token.
type AuthTokenRequest struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
