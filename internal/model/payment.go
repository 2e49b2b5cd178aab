package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is the instrument used to settle an order.
type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
	MethodCash     PaymentMethod = "cash"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCard, MethodTransfer, MethodCash:
		return true
	}
	return false
}

// Payment is a settlement recorded against an order.
type Payment struct {
	ID          uuid.UUID     `json:"id"`
	OrderID     uuid.UUID     `json:"order_id"`
	AmountCents int64         `json:"amount_cents"`
	Method      PaymentMethod `json:"method"`
	CreatedAt   time.Time     `json:"created_at"`
}
