package handler

import (
	"log/slog"
	"net/http"

	"fsanano/inventory/internal/auth"
	"fsanano/inventory/internal/metrics"
	"fsanano/inventory/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services groups the application services exposed over HTTP. Cart is
// optional; the /v1/cart routes are only mounted when it is set.
type Services struct {
	Auth     *service.AuthService
	Products *service.ProductService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Reports  *service.ReportService
	Cart     CartStore
}

type Handler struct {
	router  *chi.Mux
	svc     Services
	tokens  *auth.TokenManager
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(svc Services, tokens *auth.TokenManager, m *metrics.Metrics, logger *slog.Logger) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(m.Middleware)

	h := &Handler{
		router:  router,
		svc:     svc,
		tokens:  tokens,
		metrics: m,
		logger:  logger,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Handle("/metrics", h.metrics.Handler())

	h.router.Route("/v1", func(r chi.Router) {
		r.Use(Compress)

		r.Get("/health", h.HealthCheck)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Get("/catalog", h.Catalog)
		r.Get("/categories", h.Categories)

		r.Group(func(r chi.Router) {
			r.Use(h.tokens.Middleware)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListOwnProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/{id}", h.GetProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})

			r.Post("/checkout", h.Checkout)

			if h.svc.Cart != nil {
				r.Route("/cart", func(r chi.Router) {
					r.Get("/", h.GetCart)
					r.Delete("/", h.ClearCart)
					r.Post("/items", h.AddCartItem)
					r.Delete("/items/{product_id}", h.RemoveCartItem)
					r.Post("/checkout", h.CheckoutCart)
				})
			}

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Get("/reports/catalog.pdf", h.CatalogReport)
			r.Get("/reports/activity.pdf", h.ActivityReport)
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
