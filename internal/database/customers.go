package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mohmed402/wasel/internal/orders"
)

type CustomerRepository struct {
	db *DB
}

func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, name, phone, email, city, address, notes, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (*orders.Customer, error) {
	var c orders.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.City, &c.Address, &c.Notes,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, in orders.CustomerInput) (*orders.Customer, error) {
	query := `
		INSERT INTO customers (name, phone, email, city, address, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + customerColumns

	c, err := scanCustomer(r.db.pool.QueryRow(ctx, query,
		in.Name, in.Phone, in.Email, in.City, in.Address, in.Notes))
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) Get(ctx context.Context, id uuid.UUID) (*orders.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	c, err := scanCustomer(r.db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// List returns customers newest first. Inactive customers are included only
// when includeInactive is set.
func (r *CustomerRepository) List(ctx context.Context, includeInactive bool, limit, offset int) ([]orders.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE is_active OR $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.pool.Query(ctx, query, includeInactive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	out := []orders.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (r *CustomerRepository) Update(ctx context.Context, id uuid.UUID, in orders.CustomerInput) (*orders.Customer, error) {
	query := `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, city = $5, address = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING ` + customerColumns

	c, err := scanCustomer(r.db.pool.QueryRow(ctx, query,
		id, in.Name, in.Phone, in.Email, in.City, in.Address, in.Notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return c, nil
}

// Deactivate soft-deletes a customer.
func (r *CustomerRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx,
		`UPDATE customers SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}
