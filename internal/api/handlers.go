package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/database"
	"github.com/mohmed402/wasel/internal/finance"
	"github.com/mohmed402/wasel/internal/orders"
)

type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*cart.Result, error)
}

type BrowserChecker interface {
	Available(ctx context.Context) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type OutboxStats interface {
	Stats(ctx context.Context) (pending, dead int64, err error)
}

type CustomerStore interface {
	Create(ctx context.Context, in orders.CustomerInput) (*orders.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*orders.Customer, error)
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]orders.Customer, error)
	Update(ctx context.Context, id uuid.UUID, in orders.CustomerInput) (*orders.Customer, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type OrderStore interface {
	Create(ctx context.Context, in orders.OrderInput) (*orders.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	List(ctx context.Context, status orders.Status, limit, offset int) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to orders.Status) (*orders.Order, error)
	AddExpense(ctx context.Context, orderID uuid.UUID, e orders.Expense) (*orders.Expense, error)
}

type AccountStore interface {
	Create(ctx context.Context, in finance.AccountInput) (*finance.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*finance.Account, error)
	List(ctx context.Context, includeInactive bool) ([]finance.Account, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Record(ctx context.Context, t finance.Transaction) (*finance.Transaction, error)
	Transactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]finance.Transaction, error)
}

type RunStore interface {
	List(ctx context.Context, limit, offset int) ([]database.ExtractionRun, error)
}

// Deps collects what the handlers talk to. Nil stores leave their routes
// unmounted.
type Deps struct {
	Extractor Extractor
	Browser   BrowserChecker
	Database  Pinger
	Outbox    OutboxStats
	Customers CustomerStore
	Orders    OrderStore
	Accounts  AccountStore
	Runs      RunStore
}

type Handlers struct {
	Deps
	logger *slog.Logger
}

func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	return &Handlers{
		Deps:   deps,
		logger: logger.With("component", "api"),
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

type fieldError struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

// respondDomainError maps errors from the order and finance packages to
// HTTP statuses. Anything unrecognised is logged and reported as a 500.
func (h *Handlers) respondDomainError(w http.ResponseWriter, err error, action string) {
	var ov *orders.ValidationError
	var fv *finance.ValidationError

	switch {
	case errors.As(err, &ov):
		h.respondJSON(w, http.StatusBadRequest, fieldError{Error: ov.Message, Field: ov.Field})
	case errors.As(err, &fv):
		h.respondJSON(w, http.StatusBadRequest, fieldError{Error: fv.Message, Field: fv.Field})
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, finance.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, finance.ErrInsufficientFunds),
		errors.Is(err, finance.ErrCurrencyMismatch),
		errors.Is(err, finance.ErrInactiveAccount):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, finance.ErrUnsupportedCurrency):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "action", action, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// page reads limit and offset query parameters.
func page(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 200)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
