package orders

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohmed402/wasel/internal/cart"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a rejected input field.
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

type Status string

const (
	StatusSourcing  Status = "sourcing"
	StatusPurchased Status = "purchased"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusSourcing:  {StatusPurchased, StatusCancelled},
	StatusPurchased: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {StatusClosed, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusSourcing, StatusPurchased, StatusShipped, StatusDelivered, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition checks that an order in state from may move to state to.
func Transition(from, to Status) error {
	if !to.Valid() {
		return invalid("status", "unknown status %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	City      string    `json:"city,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	City    string `json:"city"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (in *CustomerInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)

	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.Phone == "" {
		return invalid("phone", "is required")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return invalid("email", "is not a valid address")
	}
	return nil
}

type Item struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"orderId"`
	ProductID string    `json:"productId,omitempty"`
	SKU       string    `json:"sku,omitempty"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"image,omitempty"`
	Variant   string    `json:"variant,omitempty"`
}

func (i Item) LineTotal() float64 {
	return round2(i.Price * float64(i.Quantity))
}

type Expense struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"orderId"`
	Kind      string    `json:"kind"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *Expense) Validate() error {
	e.Kind = strings.TrimSpace(strings.ToLower(e.Kind))
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))

	if e.Kind == "" {
		return invalid("kind", "is required")
	}
	if e.Amount <= 0 || math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return invalid("amount", "must be positive")
	}
	if len(e.Currency) != 3 {
		return invalid("currency", "must be a three letter code")
	}
	return nil
}

type Order struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customerId"`
	Status     Status    `json:"status"`
	CartURL    string    `json:"cartUrl,omitempty"`
	Currency   string    `json:"currency"`
	Notes      string    `json:"notes,omitempty"`
	Items      []Item    `json:"items"`
	Expenses   []Expense `json:"expenses"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Subtotal sums item line totals.
func (o *Order) Subtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.LineTotal()
	}
	return round2(sum)
}

// ExpenseTotal sums expenses recorded in the order currency. Expenses in
// other currencies are converted by the caller.
func (o *Order) ExpenseTotal() float64 {
	var sum float64
	for _, e := range o.Expenses {
		if e.Currency == o.Currency {
			sum += e.Amount
		}
	}
	return round2(sum)
}

type OrderInput struct {
	CustomerID uuid.UUID `json:"customerId"`
	CartURL    string    `json:"cartUrl"`
	Currency   string    `json:"currency"`
	Notes      string    `json:"notes"`
	Items      []Item    `json:"items"`
}

// Validate normalizes the input in place. Items without a currency take the
// order currency; the order currency defaults to the first item's.
func (in *OrderInput) Validate() error {
	if in.CustomerID == uuid.Nil {
		return invalid("customerId", "is required")
	}
	if len(in.Items) == 0 {
		return invalid("items", "at least one item is required")
	}

	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = strings.ToUpper(in.Items[0].Currency)
	}
	if len(in.Currency) != 3 {
		return invalid("currency", "must be a three letter code")
	}

	for i := range in.Items {
		it := &in.Items[i]
		it.Name = strings.TrimSpace(it.Name)
		it.Currency = strings.ToUpper(strings.TrimSpace(it.Currency))
		if it.Currency == "" {
			it.Currency = in.Currency
		}

		field := fmt.Sprintf("items[%d]", i)
		if it.Name == "" && it.ProductID == "" {
			return invalid(field, "name or productId is required")
		}
		if it.Price < 0 || math.IsNaN(it.Price) {
			return invalid(field+".price", "cannot be negative")
		}
		if it.Quantity < 1 {
			return invalid(field+".quantity", "must be at least 1")
		}
		if it.Currency != in.Currency {
			return invalid(field+".currency", "%s does not match order currency %s", it.Currency, in.Currency)
		}
	}
	return nil
}

// ItemsFromCart turns extracted cart items into order lines.
func ItemsFromCart(items []cart.NormalizedItem) []Item {
	out := make([]Item, 0, len(items))
	for _, n := range items {
		it := Item{
			ProductID: deref(n.ProductID),
			SKU:       deref(n.SKU),
			Name:      deref(n.Name),
			Currency:  n.Currency,
			Quantity:  n.Quantity,
			Image:     deref(n.Image),
			Variant:   deref(n.Variant),
		}
		if n.Price != nil {
			it.Price = *n.Price
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		out = append(out, it)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
