package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mohmed402/wasel/internal/orders"
)

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, customer_id, status, cart_url, currency, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.CartURL, &o.Currency, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts an order and its items in one transaction. The customer
// must exist and be active.
func (r *OrderRepository) Create(ctx context.Context, in orders.OrderInput) (*orders.Order, error) {
	var order *orders.Order

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM customers WHERE id = $1`, in.CustomerID).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
			return fmt.Errorf("customer %s: %w", in.CustomerID, orders.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to look up customer: %w", err)
		}

		query := `
			INSERT INTO orders (customer_id, status, cart_url, currency, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + orderColumns

		order, err = scanOrder(tx.QueryRow(ctx, query,
			in.CustomerID, orders.StatusSourcing, in.CartURL, in.Currency, in.Notes))
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		order.Items = make([]orders.Item, 0, len(in.Items))
		for i, it := range in.Items {
			it.OrderID = order.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items (
					order_id, position, product_id, sku, name, price, currency, quantity, image, variant
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING id`,
				order.ID, i, it.ProductID, it.SKU, it.Name, it.Price, it.Currency, it.Quantity, it.Image, it.Variant,
			).Scan(&it.ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item %d: %w", i, err)
			}
			order.Items = append(order.Items, it)
		}
		order.Expenses = []orders.Expense{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get loads an order with its items and expenses.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	order, err := scanOrder(r.db.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	if order.Expenses, err = r.expenses(ctx, id); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID uuid.UUID) ([]orders.Item, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, order_id, product_id, sku, name, price, currency, quantity, image, variant
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	out := []orders.Item{}
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.Name,
			&it.Price, &it.Currency, &it.Quantity, &it.Image, &it.Variant); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *OrderRepository) expenses(ctx context.Context, orderID uuid.UUID) ([]orders.Expense, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, order_id, kind, amount, currency, note, created_at
		FROM order_expenses
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order expenses: %w", err)
	}
	defer rows.Close()

	out := []orders.Expense{}
	for rows.Next() {
		var e orders.Expense
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.Amount, &e.Currency, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// List returns orders newest first, optionally filtered by status. Items and
// expenses are not loaded.
func (r *OrderRepository) List(ctx context.Context, status orders.Status, limit, offset int) ([]orders.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// UpdateStatus moves an order to a new status under a row lock.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to orders.Status) (*orders.Order, error) {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var from orders.Status
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&from)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return orders.ErrNotFound
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if err := orders.Transition(from, to); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, to); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// AddExpense records an expense against an order that is not closed or
// cancelled.
func (r *OrderRepository) AddExpense(ctx context.Context, orderID uuid.UUID, e orders.Expense) (*orders.Expense, error) {
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var status orders.Status
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR SHARE`, orderID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return orders.ErrNotFound
			}
			return fmt.Errorf("failed to look up order: %w", err)
		}
		if status.Terminal() {
			return fmt.Errorf("%w: order is %s", orders.ErrInvalidTransition, status)
		}

		e.OrderID = orderID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_expenses (order_id, kind, amount, currency, note)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			orderID, e.Kind, e.Amount, e.Currency, e.Note,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
