// Package orders provides the shared business logic for order and payment
// operations.
//
// The HTTP handlers delegate here for validation and orchestration; the
// service in turn delegates persistence to a Store. Absent records surface as
// (nil, nil) all the way up — translating a miss into a not-found error is
// the HTTP layer's job, because only it knows whether the caller asked for a
// single record or a collection.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
	"github.com/copperline/orderd/internal/storage"
	"github.com/copperline/orderd/internal/telemetry"
)

// Store is the persistence surface the service depends on. *storage.DB
// satisfies it; tests substitute a stub.
type Store interface {
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, req model.UpdateOrderRequest) (*model.Order, error)
	PatchOrder(ctx context.Context, id uuid.UUID, p model.OrderPatch) (*model.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (bool, error)
	ListOrders(ctx context.Context, q model.ListOrdersQuery) (storage.OrderPage, error)
	CapturePayment(ctx context.Context, orderID uuid.UUID, amountCents int64, method model.PaymentMethod) (*model.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
}

// Service encapsulates order business logic.
type Service struct {
	store  Store
	logger *slog.Logger

	listDuration     metric.Float64Histogram
	ordersCreated    metric.Int64Counter
	paymentsCaptured metric.Int64Counter
}

// New creates a new order Service.
func New(store Store, logger *slog.Logger) *Service {
	meter := telemetry.Meter("orderd/orders")
	listDur, _ := meter.Float64Histogram("orderd.orders.list.duration",
		metric.WithDescription("Time to execute the paginated order search (ms)"),
		metric.WithUnit("ms"),
	)
	created, _ := meter.Int64Counter("orderd.orders.created",
		metric.WithDescription("Orders created"),
	)
	captured, _ := meter.Int64Counter("orderd.payments.captured",
		metric.WithDescription("Payments captured"),
	)
	return &Service{
		store:            store,
		logger:           logger,
		listDuration:     listDur,
		ordersCreated:    created,
		paymentsCaptured: captured,
	}
}

// Create validates and persists a new order. New orders always start in
// pending_payment; status is not caller-settable on create.
func (s *Service) Create(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	o := model.Order{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Status:       model.StatusPendingPayment,
		TotalCents:   req.TotalCents,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		Notes:        req.Notes,
	}
	if err := model.ValidateOrder(o); err != nil {
		return model.Order{}, apperr.New(apperr.CodeInvalidArgument, err.Error())
	}

	created, err := s.store.CreateOrder(ctx, o)
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.ordersCreated.Add(ctx, 1)
	s.logger.Info("order created",
		"order_id", created.ID,
		"total_cents", created.TotalCents,
		"currency", created.Currency,
	)
	return created, nil
}

// Get fetches a single order. A miss is (nil, nil), not an error.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// Update replaces every mutable field of an order. All fields are required;
// partial updates go through Patch.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req model.UpdateOrderRequest) (*model.Order, error) {
	candidate := model.Order{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Status:       req.Status,
		TotalCents:   req.TotalCents,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		Notes:        req.Notes,
	}
	if err := model.ValidateOrder(candidate); err != nil {
		return nil, apperr.New(apperr.CodeInvalidArgument, err.Error())
	}
	req.CustomerName = candidate.CustomerName
	req.Currency = candidate.Currency

	updated, err := s.store.UpdateOrder(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return updated, nil
}

// Patch applies the fields present in p and leaves the rest untouched.
// Presence is decided by the pointer, never by the value: an explicit zero
// (empty notes, zero total) is applied, an absent field is skipped.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, p model.OrderPatch) (*model.Order, error) {
	if p.Empty() {
		return nil, apperr.New(apperr.CodeInvalidArgument, "patch body carries no fields")
	}
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	patched, err := s.store.PatchOrder(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("patch order: %w", err)
	}
	return patched, nil
}

func validatePatch(p model.OrderPatch) error {
	if p.CustomerName != nil {
		name := strings.TrimSpace(*p.CustomerName)
		if name == "" {
			return apperr.Invalid("customer_name", "must not be blank")
		}
		if len(name) > model.MaxCustomerNameLen {
			return apperr.Invalid("customer_name", fmt.Sprintf("exceeds maximum length of %d characters", model.MaxCustomerNameLen))
		}
		*p.CustomerName = name
	}
	if p.Status != nil && !model.ValidOrderStatus(*p.Status) {
		return apperr.Invalid("status", fmt.Sprintf("%q is not one of pending_payment, paid, cancelled", *p.Status))
	}
	if p.TotalCents != nil && *p.TotalCents < 0 {
		return apperr.Invalid("total_cents", "must not be negative")
	}
	if p.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*p.Currency))
		if len(cur) != 3 {
			return apperr.Invalid("currency", "must be a 3-letter ISO 4217 code")
		}
		*p.Currency = cur
	}
	if p.Notes != nil && len(*p.Notes) > model.MaxNotesLen {
		return apperr.Invalid("notes", fmt.Sprintf("exceeds maximum length of %d bytes", model.MaxNotesLen))
	}
	return nil
}

// Delete removes an order and its payments. The bool reports whether a
// record existed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := s.store.DeleteOrder(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	if deleted {
		s.logger.Info("order deleted", "order_id", id)
	}
	return deleted, nil
}

// List runs the paginated order search. Filters and sort key were bound by
// the HTTP layer; the service enforces range bounds and delegates sort-key
// resolution to storage, which owns the allow-list.
func (s *Service) List(ctx context.Context, q model.ListOrdersQuery) (storage.OrderPage, error) {
	if q.Status != nil && !model.ValidOrderStatus(*q.Status) {
		return storage.OrderPage{}, apperr.Invalid("status", fmt.Sprintf("%q is not one of pending_payment, paid, cancelled", *q.Status))
	}
	if q.Limit < 0 {
		return storage.OrderPage{}, apperr.Invalid("limit", "must not be negative")
	}
	if q.Limit > model.MaxListLimit {
		return storage.OrderPage{}, apperr.Invalid("limit", fmt.Sprintf("must not exceed %d", model.MaxListLimit))
	}
	if q.Offset < 0 {
		return storage.OrderPage{}, apperr.Invalid("offset", "must not be negative")
	}
	if q.Offset > model.MaxListOffset {
		return storage.OrderPage{}, apperr.Invalid("offset", fmt.Sprintf("must not exceed %d", model.MaxListOffset))
	}
	if q.SortDir != model.SortAsc && q.SortDir != model.SortDesc {
		return storage.OrderPage{}, apperr.Invalid("sortdirection", "must be ASC or DESC")
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("orderd.list.limit", q.Limit),
		attribute.Int("orderd.list.offset", q.Offset),
	)

	start := time.Now()
	page, err := s.store.ListOrders(ctx, q)
	s.listDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return storage.OrderPage{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

// Capture settles an order in full. The amount must match the order total
// exactly; under- and over-payment are rejected inside the transactional
// unit in storage. A miss on the order is (nil, nil).
func (s *Service) Capture(ctx context.Context, orderID uuid.UUID, req model.CapturePaymentRequest) (*model.Payment, error) {
	if req.AmountCents < 0 {
		return nil, apperr.Invalid("amount_cents", "must not be negative")
	}
	if !model.ValidPaymentMethod(req.Method) {
		return nil, apperr.Invalid("method", fmt.Sprintf("%q is not one of card, transfer, cash", req.Method))
	}

	payment, err := s.store.CapturePayment(ctx, orderID, req.AmountCents, req.Method)
	if err != nil {
		return nil, fmt.Errorf("capture payment: %w", err)
	}
	if payment != nil {
		s.paymentsCaptured.Add(ctx, 1)
		s.logger.Info("payment captured",
			"order_id", orderID,
			"payment_id", payment.ID,
			"amount_cents", payment.AmountCents,
			"method", payment.Method,
		)
	}
	return payment, nil
}

// Payments lists the settlements recorded against an order, oldest first.
// An order with no payments is an empty list, not an error; whether the
// order itself exists is checked by the caller.
func (s *Service) Payments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
