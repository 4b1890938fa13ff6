package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mohmed402/wasel/internal/finance"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, name, currency, balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (*finance.Account, error) {
	var a finance.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Currency, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create opens an account. A positive opening balance is booked as a
// deposit so the ledger always explains the balance.
func (r *AccountRepository) Create(ctx context.Context, in finance.AccountInput) (*finance.Account, error) {
	var acct *finance.Account

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var err error
		acct, err = scanAccount(tx.QueryRow(ctx, `
			INSERT INTO accounts (name, currency, balance)
			VALUES ($1, $2, $3)
			RETURNING `+accountColumns,
			in.Name, in.Currency, in.OpeningBalance))
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		if in.OpeningBalance > 0 {
			t := &finance.Transaction{
				Type:        finance.TypeDeposit,
				AccountID:   acct.ID,
				Amount:      in.OpeningBalance,
				Currency:    in.Currency,
				Description: "opening balance",
			}
			if err := insertTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (*finance.Account, error) {
	acct, err := scanAccount(r.db.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, finance.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

func (r *AccountRepository) List(ctx context.Context, includeInactive bool) ([]finance.Account, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_active OR $1
		ORDER BY name`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	out := []finance.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (r *AccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx,
		`UPDATE accounts SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return finance.ErrNotFound
	}
	return nil
}

// Record writes a ledger row and applies its balance deltas in the same
// transaction. Accounts are locked in id order.
func (r *AccountRepository) Record(ctx context.Context, t finance.Transaction) (*finance.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	deltas := t.Deltas()
	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].AccountID.String() < deltas[j].AccountID.String()
	})

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, d := range deltas {
			acct, err := scanAccount(tx.QueryRow(ctx,
				`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, d.AccountID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("account %s: %w", d.AccountID, finance.ErrNotFound)
				}
				return fmt.Errorf("failed to lock account: %w", err)
			}

			if t.Currency == "" {
				t.Currency = acct.Currency
			}
			next, err := finance.Apply(acct, d, t.Currency)
			if err != nil {
				return err
			}

			if _, err := tx.Exec(ctx,
				`UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`, acct.ID, next); err != nil {
				return fmt.Errorf("failed to update balance: %w", err)
			}
		}

		return insertTransaction(ctx, tx, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *finance.Transaction) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (type, account_id, counterparty_id, order_id, amount, currency, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		t.Type, t.AccountID, t.CounterpartyID, t.OrderID, t.Amount, t.Currency, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Transactions lists ledger rows touching an account, newest first.
func (r *AccountRepository) Transactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]finance.Transaction, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, type, account_id, counterparty_id, order_id, amount, currency, description, created_at
		FROM transactions
		WHERE account_id = $1 OR counterparty_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := []finance.Transaction{}
	for rows.Next() {
		var t finance.Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.AccountID, &t.CounterpartyID, &t.OrderID,
			&t.Amount, &t.Currency, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
