package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mohmed402/wasel/internal/orders"
)

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in orders.CustomerInput
	if err := decodeBody(w, r, &in); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.respondDomainError(w, err, "create customer")
		return
	}

	c, err := h.Customers.Create(r.Context(), in)
	if err != nil {
		h.respondDomainError(w, err, "create customer")
		return
	}
	h.respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	list, err := h.Customers.List(r.Context(), queryBool(r, "includeInactive"), limit, offset)
	if err != nil {
		h.respondDomainError(w, err, "list customers")
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "customerID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	c, err := h.Customers.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err, "get customer")
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "customerID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	var in orders.CustomerInput
	if err := decodeBody(w, r, &in); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		h.respondDomainError(w, err, "update customer")
		return
	}

	c, err := h.Customers.Update(r.Context(), id, in)
	if err != nil {
		h.respondDomainError(w, err, "update customer")
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

// DeleteCustomer soft-deletes the customer.
func (h *Handlers) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "customerID")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	if err := h.Customers.Deactivate(r.Context(), id); err != nil {
		h.respondDomainError(w, err, "delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
