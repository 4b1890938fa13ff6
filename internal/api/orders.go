package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/orders"
)

// CreateOrderRequest accepts either explicit items or the items array of a
// /scrape response.
type CreateOrderRequest struct {
	CustomerID uuid.UUID             `json:"customerId"`
	CartURL    string                `json:"cartUrl"`
	Currency   string                `json:"currency"`
	Notes      string                `json:"notes"`
	Items      []orders.Item         `json:"items"`
	CartItems  []cart.NormalizedItem `json:"cartItems"`
}

type orderView struct {
	*orders.Order
	Subtotal     float64 `json:"subtotal"`
	ExpenseTotal float64 `json:"expenseTotal"`
}

func viewOrder(o *orders.Order) orderView {
	return orderView{Order: o, Subtotal: o.Subtotal(), ExpenseTotal: o.ExpenseTotal()}
}

type statusRequest struct {
	Status orders.Status `json:"status"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := orders.OrderInput{
		CustomerID: req.CustomerID,
		CartURL:    req.CartURL,
		Currency:   req.Currency,
		Notes:      req.Notes,
		Items:      req.Items,
	}
	if len(in.Items) == 0 && len(req.CartItems) > 0 {
		in.Items = orders.ItemsFromCart(req.CartItems)
	}
	if err := in.Validate(); err != nil {
		h.respondDomainError(w, err, "create order")
		return
	}

	o, err := h.Orders.Create(r.Context(), in)
	if err != nil {
		h.respondDomainError(w, err, "create order")
		return
	}
	h.respondJSON(w, http.StatusCreated, viewOrder(o))
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.respondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	limit, offset := page(r)
	list, err := h.Orders.List(r.Context(), status, limit, offset)
	if err != nil {
		h.respondDomainError(w, err, "list orders")
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err, "get order")
		return
	}
	h.respondJSON(w, http.StatusOK, viewOrder(o))
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.respondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondDomainError(w, err, "update order status")
		return
	}
	h.respondJSON(w, http.StatusOK, viewOrder(o))
}

func (h *Handlers) AddOrderExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var e orders.Expense
	if err := decodeBody(w, r, &e); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := e.Validate(); err != nil {
		h.respondDomainError(w, err, "add expense")
		return
	}

	saved, err := h.Orders.AddExpense(r.Context(), id, e)
	if err != nil {
		h.respondDomainError(w, err, "add expense")
		return
	}
	h.respondJSON(w, http.StatusCreated, saved)
}
