package finance

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrInactiveAccount     = errors.New("account is inactive")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Balance   float64   `json:"balance"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AccountInput struct {
	Name           string  `json:"name"`
	Currency       string  `json:"currency"`
	OpeningBalance float64 `json:"openingBalance"`
}

func (in *AccountInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))

	if in.Name == "" {
		return invalid("name", "is required")
	}
	if !Supported(in.Currency) {
		return invalid("currency", "%q is not supported", in.Currency)
	}
	if in.OpeningBalance < 0 || math.IsNaN(in.OpeningBalance) {
		return invalid("openingBalance", "cannot be negative")
	}
	in.OpeningBalance = Round(in.OpeningBalance)
	return nil
}

type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
)

// Transaction is one ledger row. Transfers move Amount out of AccountID and
// into CounterpartyID; both accounts must share a currency.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	Type           TransactionType `json:"type"`
	AccountID      uuid.UUID       `json:"accountId"`
	CounterpartyID *uuid.UUID      `json:"counterpartyId,omitempty"`
	OrderID        *uuid.UUID      `json:"orderId,omitempty"`
	Amount         float64         `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (t *Transaction) Validate() error {
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))

	switch t.Type {
	case TypeDeposit, TypeWithdrawal:
		if t.CounterpartyID != nil {
			return invalid("counterpartyId", "only allowed for transfers")
		}
	case TypeTransfer:
		if t.CounterpartyID == nil || *t.CounterpartyID == uuid.Nil {
			return invalid("counterpartyId", "is required for transfers")
		}
		if *t.CounterpartyID == t.AccountID {
			return invalid("counterpartyId", "must differ from accountId")
		}
	default:
		return invalid("type", "unknown transaction type %q", t.Type)
	}

	if t.AccountID == uuid.Nil {
		return invalid("accountId", "is required")
	}
	if t.Amount <= 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return invalid("amount", "must be positive")
	}
	if t.Currency != "" && !Supported(t.Currency) {
		return invalid("currency", "%q is not supported", t.Currency)
	}
	t.Amount = Round(t.Amount)
	return nil
}

// Delta is a signed balance change for one account.
type Delta struct {
	AccountID uuid.UUID
	Amount    float64
}

// Deltas returns the balance changes t applies, debits first.
func (t *Transaction) Deltas() []Delta {
	switch t.Type {
	case TypeDeposit:
		return []Delta{{AccountID: t.AccountID, Amount: t.Amount}}
	case TypeWithdrawal:
		return []Delta{{AccountID: t.AccountID, Amount: -t.Amount}}
	case TypeTransfer:
		return []Delta{
			{AccountID: t.AccountID, Amount: -t.Amount},
			{AccountID: *t.CounterpartyID, Amount: t.Amount},
		}
	}
	return nil
}

// Apply checks a delta against an account and returns the new balance.
func Apply(a *Account, d Delta, currency string) (float64, error) {
	if !a.IsActive {
		return 0, fmt.Errorf("%w: %s", ErrInactiveAccount, a.ID)
	}
	if currency != "" && currency != a.Currency {
		return 0, fmt.Errorf("%w: account %s holds %s, transaction is %s", ErrCurrencyMismatch, a.ID, a.Currency, currency)
	}
	next := Round(a.Balance + d.Amount)
	if next < 0 {
		return 0, fmt.Errorf("%w: account %s balance %.2f", ErrInsufficientFunds, a.ID, a.Balance)
	}
	return next, nil
}

func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
