package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, session_id, customer_email, amount_cents, status, shipped, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.SessionID, &o.CustomerEmail, &o.AmountCents, &o.Status, &o.Shipped, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// CreateWithItems persists the order and every item in one transaction.
// An order must never be visible without its full item set.
func (r *Repo) CreateWithItems(ctx context.Context, o Order, items []OrderItem) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, session_id, customer_email, amount_cents, status)
		VALUES ($1,$2,$3,$4,$5)`,
		o.ID, o.SessionID, o.CustomerEmail, o.AmountCents, o.Status,
	)
	if err != nil {
		return err
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, name, price_cents, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, o.ID, it.ProductID, it.Name, it.PriceCents, it.Quantity,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
}

func (r *Repo) FindBySessionID(ctx context.Context, sessionID string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE session_id=$1`, sessionID))
}

func (r *Repo) ItemsByOrder(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, price_cents, quantity
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.PriceCents, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkPaid is the reconciliation transition: a conditional status update
// guarded on pending, plus one clamped stock decrement per item, all in a
// single transaction. The rows-affected count of the status update is the
// idempotency gate; of two concurrent deliveries for the same order exactly
// one observes paid=true and decrements stock.
//
// A decrement that would go negative is floored at zero and reported in
// clamped; the payment already succeeded, so inventory drift is a warning,
// never a reason to fail.
func (r *Repo) MarkPaid(ctx context.Context, orderID string) (paid bool, clamped []ClampedStock, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`,
		orderID, StatusPaid, StatusPending,
	)
	if err != nil {
		return false, nil, err
	}
	if ct.RowsAffected() == 0 {
		// already terminal, or a concurrent delivery won the race
		return false, nil, nil
	}

	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return false, nil, err
	}
	type line struct {
		productID string
		qty       int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return false, nil, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, nil, err
	}

	for _, l := range lines {
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, l.productID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			// product deleted since checkout; nothing to decrement
			clamped = append(clamped, ClampedStock{ProductID: l.productID, Requested: l.qty, Available: 0})
			continue
		}
		if err != nil {
			return false, nil, err
		}

		newStock := stock - l.qty
		if newStock < 0 {
			clamped = append(clamped, ClampedStock{ProductID: l.productID, Requested: l.qty, Available: stock})
			newStock = 0
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, l.productID, newStock); err != nil {
			return false, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, clamped, nil
}

// UpdateStatusIfPending applies a pending -> status transition and reports
// whether it took effect. Used for externally driven failed/canceled
// transitions; paid goes through MarkPaid.
func (r *Repo) UpdateStatusIfPending(ctx context.Context, orderID string, status Status) (bool, error) {
	if !CanTransition(StatusPending, status) {
		return false, nil
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`,
		orderID, status, StatusPending,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ListWithItems returns all orders newest-first with their items, for the
// admin surface.
func (r *Repo) ListWithItems(ctx context.Context) ([]OrderWithItems, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderWithItems
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.SessionID, &o.CustomerEmail, &o.AmountCents, &o.Status, &o.Shipped, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, OrderWithItems{Order: o})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.ItemsByOrder(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *Repo) MarkShipped(ctx context.Context, orderID string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET shipped=TRUE, updated_at=now() WHERE id=$1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
