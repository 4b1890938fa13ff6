package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mohmed402/wasel/internal/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	// ScrapeTimeout bounds POST /scrape, which drives a browser.
	ScrapeTimeout time.Duration
	// DefaultTimeout bounds every other route.
	DefaultTimeout time.Duration
}

func NewRouter(h *Handlers, m *metrics.Metrics, opts RouterOptions) http.Handler {
	if opts.ScrapeTimeout <= 0 {
		opts.ScrapeTimeout = 150 * time.Second
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.ScrapeTimeout))
		r.Post("/scrape", h.Scrape)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.DefaultTimeout))

		r.Get("/scrape", h.ScrapeStatus)
		r.Get("/health", h.Health)
		r.Method(http.MethodGet, "/metrics", m.Handler())

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/currency/convert", h.ConvertCurrency)
			r.Get("/currency", h.ListCurrencies)

			if h.Customers != nil {
				r.Route("/customers", func(r chi.Router) {
					r.Post("/", h.CreateCustomer)
					r.Get("/", h.ListCustomers)
					r.Get("/{customerID}", h.GetCustomer)
					r.Put("/{customerID}", h.UpdateCustomer)
					r.Delete("/{customerID}", h.DeleteCustomer)
				})
			}

			if h.Orders != nil {
				r.Route("/orders", func(r chi.Router) {
					r.Post("/", h.CreateOrder)
					r.Get("/", h.ListOrders)
					r.Get("/{orderID}", h.GetOrder)
					r.Patch("/{orderID}/status", h.UpdateOrderStatus)
					r.Post("/{orderID}/status", h.UpdateOrderStatus)
					r.Post("/{orderID}/expenses", h.AddOrderExpense)
				})
			}

			if h.Accounts != nil {
				r.Route("/accounts", func(r chi.Router) {
					r.Post("/", h.CreateAccount)
					r.Get("/", h.ListAccounts)
					r.Get("/{accountID}", h.GetAccount)
					r.Delete("/{accountID}", h.DeleteAccount)
					r.Post("/{accountID}/transactions", h.RecordTransaction)
					r.Get("/{accountID}/transactions", h.ListTransactions)
				})
			}

			if h.Runs != nil {
				r.Get("/extractions", h.ListExtractions)
			}
		})
	})

	return r
}
