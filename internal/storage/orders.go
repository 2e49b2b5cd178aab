package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
)

// orderSortColumns maps external sort keys to their storage column names.
// The storage adapter is the sole custodian of this mapping; upper layers
// pass the external key through untranslated.
var orderSortColumns = map[string]string{
	"created":  "created_at",
	"total":    "total_cents",
	"status":   "status",
	"customer": "customer_name",
}

// OrderSortKeys returns the external sort keys accepted by ListOrders,
// sorted for stable error messages.
func OrderSortKeys() []string {
	keys := make([]string, 0, len(orderSortColumns))
	for k := range orderSortColumns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveOrderSort translates an external sort key into a column name.
// An unknown key is an invalid-argument failure naming the allowed set.
func resolveOrderSort(key string) (string, error) {
	if key == "" {
		return "created_at", nil
	}
	col, ok := orderSortColumns[key]
	if !ok {
		return "", apperr.Invalid("sortby",
			fmt.Sprintf("unknown sort key %q (valid: %s)", key, strings.Join(OrderSortKeys(), ", ")))
	}
	return col, nil
}

const orderColumns = `id, customer_name, status, total_cents, currency, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.Status, &o.TotalCents,
		&o.Currency, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrder inserts an order and returns it with timestamps populated.
func (db *DB) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO orders (id, customer_name, status, total_cents, currency, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.CustomerName, o.Status, o.TotalCents, o.Currency, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return model.Order{}, fmt.Errorf("storage: create order: %w", err)
	}
	return o, nil
}

// GetOrder retrieves an order by ID. A miss is not an error: the order
// pointer is nil and the caller decides what absence means.
func (db *DB) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(db.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get order: %w", err)
	}
	return &o, nil
}

// UpdateOrder replaces every mutable field of an order. Returns nil (no
// error) when the order does not exist.
func (db *DB) UpdateOrder(ctx context.Context, id uuid.UUID, req model.UpdateOrderRequest) (*model.Order, error) {
	o, err := scanOrder(db.pool.QueryRow(ctx,
		`UPDATE orders
		 SET customer_name = $2, status = $3, total_cents = $4, currency = $5, notes = $6, updated_at = $7
		 WHERE id = $1
		 RETURNING `+orderColumns,
		id, req.CustomerName, req.Status, req.TotalCents, req.Currency, req.Notes, time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: update order: %w", err)
	}
	return &o, nil
}

// PatchOrder updates only the fields present in the patch. Field presence
// is carried by non-nil pointers so explicitly-set zero values ("" or 0)
// are written rather than skipped. Returns nil on a missing order.
func (db *DB) PatchOrder(ctx context.Context, id uuid.UUID, p model.OrderPatch) (*model.Order, error) {
	sets := []string{}
	args := []any{id}

	add := func(column string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.CustomerName != nil {
		add("customer_name", *p.CustomerName)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.TotalCents != nil {
		add("total_cents", *p.TotalCents)
	}
	if p.Currency != nil {
		add("currency", *p.Currency)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	add("updated_at", time.Now().UTC())

	o, err := scanOrder(db.pool.QueryRow(ctx,
		`UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+orderColumns,
		args...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: patch order: %w", err)
	}
	return &o, nil
}

// DeleteOrder removes an order and its payments. Reports whether a row was
// actually deleted so the caller can distinguish a miss.
func (db *DB) DeleteOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("storage: delete order payments: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("storage: delete order: %w", err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}

// OrderPage is one page of a filtered order listing together with the
// counts needed for the paginated envelope.
type OrderPage struct {
	Total         int
	FilteredTotal int
	Orders        []model.Order
}

// ListOrders runs the three queries of the pagination contract — full
// count, filtered count, and the filtered+sorted page — concurrently, and
// assembles the page only once all three have succeeded. A failure in any
// one fails the whole listing.
func (db *DB) ListOrders(ctx context.Context, q model.ListOrdersQuery) (OrderPage, error) {
	sortCol, err := resolveOrderSort(q.SortBy)
	if err != nil {
		return OrderPage{}, err
	}
	dir := "ASC"
	if q.SortDir == model.SortDesc {
		dir = "DESC"
	}

	where, args := buildOrderWhere(q)

	// An explicit limit of 0 is a legitimate request for counts only; the
	// default fires at binding time, never here. Negatives were rejected a
	// layer up but would break the SQL, so clamp them.
	limit := q.Limit
	if limit < 0 {
		limit = 0
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var page OrderPage
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := db.pool.QueryRow(gctx, `SELECT COUNT(*) FROM orders`).Scan(&page.Total); err != nil {
			return fmt.Errorf("storage: count orders: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := db.pool.QueryRow(gctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&page.FilteredTotal); err != nil {
			return fmt.Errorf("storage: count filtered orders: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// sortCol and dir come from fixed allow-lists, never caller text.
		query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s, id %s LIMIT %d OFFSET %d`,
			orderColumns, where, sortCol, dir, dir, limit, offset)
		rows, err := db.pool.Query(gctx, query, args...)
		if err != nil {
			return fmt.Errorf("storage: list orders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("storage: scan order: %w", err)
			}
			page.Orders = append(page.Orders, o)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return OrderPage{}, err
	}
	if page.Orders == nil {
		page.Orders = []model.Order{}
	}
	return page, nil
}

// buildOrderWhere assembles the filter clause shared by the filtered count
// and the page query, so both always see the same row set.
func buildOrderWhere(q model.ListOrdersQuery) (string, []any) {
	conds := []string{}
	args := []any{}

	if q.Status != nil {
		args = append(args, *q.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Customer != nil {
		args = append(args, "%"+*q.Customer+"%")
		conds = append(conds, fmt.Sprintf("customer_name ILIKE $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
