package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mohmed402/wasel/internal/finance"
)

type ConvertResponse struct {
	Amount    float64 `json:"amount"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Rate      float64 `json:"rate"`
	Converted float64 `json:"converted"`
}

func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in finance.AccountInput
	if err := decodeBody(w, r, &in); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.respondDomainError(w, err, "create account")
		return
	}

	a, err := h.Accounts.Create(r.Context(), in)
	if err != nil {
		h.respondDomainError(w, err, "create account")
		return
	}
	h.respondJSON(w, http.StatusCreated, a)
}

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Accounts.List(r.Context(), queryBool(r, "includeInactive"))
	if err != nil {
		h.respondDomainError(w, err, "list accounts")
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "accountID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	a, err := h.Accounts.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err, "get account")
		return
	}
	h.respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "accountID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := h.Accounts.Deactivate(r.Context(), id); err != nil {
		h.respondDomainError(w, err, "delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordTransaction books a deposit, withdrawal or transfer against the
// account in the path.
func (h *Handlers) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "accountID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var t finance.Transaction
	if err := decodeBody(w, r, &t); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t.AccountID = id
	if err := t.Validate(); err != nil {
		h.respondDomainError(w, err, "record transaction")
		return
	}

	saved, err := h.Accounts.Record(r.Context(), t)
	if err != nil {
		h.respondDomainError(w, err, "record transaction")
		return
	}
	h.respondJSON(w, http.StatusCreated, saved)
}

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "accountID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	limit, offset := page(r)
	list, err := h.Accounts.Transactions(r.Context(), id, limit, offset)
	if err != nil {
		h.respondDomainError(w, err, "list transactions")
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

// ConvertCurrency answers GET /currency/convert?amount=&from=&to=.
func (h *Handlers) ConvertCurrency(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil || amount < 0 {
		h.respondError(w, http.StatusBadRequest, "amount must be a non-negative number")
		return
	}
	from := strings.ToUpper(strings.TrimSpace(q.Get("from")))
	to := strings.ToUpper(strings.TrimSpace(q.Get("to")))

	rate, err := finance.Rate(from, to)
	if err != nil {
		h.respondDomainError(w, err, "convert currency")
		return
	}
	converted, err := finance.Convert(amount, from, to)
	if err != nil {
		h.respondDomainError(w, err, "convert currency")
		return
	}

	h.respondJSON(w, http.StatusOK, ConvertResponse{
		Amount:    amount,
		From:      from,
		To:        to,
		Rate:      rate,
		Converted: converted,
	})
}

func (h *Handlers) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{"currencies": finance.Currencies()})
}

func (h *Handlers) ListExtractions(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	runs, err := h.Runs.List(r.Context(), limit, offset)
	if err != nil {
		h.respondDomainError(w, err, "list extractions")
		return
	}
	h.respondJSON(w, http.StatusOK, runs)
}
