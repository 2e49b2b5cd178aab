package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
)

// CapturePayment settles an order in a single transactional unit: lock the
// order row, verify it is payable, insert the payment, and flip the order
// to paid. Either both writes commit or neither does. A missing order is
// reported as a nil payment, not an error.
//
// Serialization and deadlock failures are retried with jittered backoff;
// each retry re-runs the whole unit from the row lock.
func (db *DB) CapturePayment(ctx context.Context, orderID uuid.UUID, amountCents int64, method model.PaymentMethod) (*model.Payment, error) {
	var payment *model.Payment

	err := WithRetry(ctx, 3, 10*time.Millisecond, func() error {
		payment = nil
		return db.InTx(ctx, func(tx pgx.Tx) error {
			var status model.OrderStatus
			var totalCents int64
			err := tx.QueryRow(ctx,
				`SELECT status, total_cents FROM orders WHERE id = $1 FOR UPDATE`, orderID,
			).Scan(&status, &totalCents)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil // absent order; payment stays nil
				}
				return fmt.Errorf("storage: lock order: %w", err)
			}

			switch status {
			case model.StatusPaid:
				return apperr.Conflict("order is already paid")
			case model.StatusCancelled:
				return apperr.Conflict("order is cancelled")
			}

			if amountCents < totalCents {
				return apperr.PaymentRequired(
					fmt.Sprintf("payment of %d cents required, got %d", totalCents, amountCents))
			}
			if amountCents > totalCents {
				return apperr.Invalid("amount_cents",
					fmt.Sprintf("exceeds the %d cents due", totalCents))
			}

			p := model.Payment{
				ID:          uuid.New(),
				OrderID:     orderID,
				AmountCents: amountCents,
				Method:      method,
				CreatedAt:   time.Now().UTC(),
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO payments (id, order_id, amount_cents, method, created_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				p.ID, p.OrderID, p.AmountCents, p.Method, p.CreatedAt,
			); err != nil {
				return fmt.Errorf("storage: insert payment: %w", err)
			}

			if _, err := tx.Exec(ctx,
				`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
				orderID, model.StatusPaid, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("storage: mark order paid: %w", err)
			}

			payment = &p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPaymentsByOrder returns every payment recorded against an order,
// oldest first. An order with no payments yields an empty slice.
func (db *DB) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, order_id, amount_cents, method, created_at
		 FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("storage: list payments: %w", err)
	}
	defer rows.Close()

	payments := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Method, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
