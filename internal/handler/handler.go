// Package handler exposes the REST API over chi.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barflow/barflow/internal/domain/auth"
	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/domain/payment"
	"github.com/barflow/barflow/internal/domain/recipe"
)

// Body limits.
const (
	maxBodyBytes    = 1 << 20
	maxWebhookBytes = 64 << 10
)

// WebhookPathPrefix is the route prefix of provider callbacks.
const WebhookPathPrefix = "/v1/webhooks/"

// Handler serves the /v1 API, delegating lifecycle rules to the order
// service and reading bars and menus straight from their repositories.
type Handler struct {
	bars     bar.Repository
	drinks   menu.Repository
	orders   *order.Service
	payments payment.Provider
	recipes  recipe.Generator
	authn    auth.Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	bars bar.Repository,
	drinks menu.Repository,
	orders *order.Service,
	payments payment.Provider,
	recipes recipe.Generator,
	authn auth.Authenticator,
) *Handler {
	return &Handler{
		bars:     bars,
		drinks:   drinks,
		orders:   orders,
		payments: payments,
		recipes:  recipes,
		authn:    authn,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	staff := h.require(auth.RoleAdmin, auth.RoleStaff)
	admin := h.require(auth.RoleAdmin)

	r.Route("/v1", func(r chi.Router) {
		// {bar} is the slug on public routes and the bar id on staff routes.
		r.Route("/bars", func(r chi.Router) {
			r.Get("/", h.ListBars)
			r.With(admin).Post("/", h.CreateBar)
			r.Get("/{bar}", h.GetBar)
			r.Get("/{bar}/drinks", h.ListDrinks)
			r.Post("/{bar}/orders", h.PlaceOrder)
			r.With(admin).Post("/{bar}/deactivate", h.DeactivateBar)
			r.With(staff).Post("/{bar}/drinks", h.CreateDrink)
			r.With(staff).Get("/{bar}/orders", h.ListOrders)
		})
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Post("/checkout", h.Checkout)
			r.With(staff).Patch("/status", h.SetOrderStatus)
		})
		r.Post("/webhooks/stripe", h.StripeWebhook)
		r.With(staff).Post("/recipes/generate", h.GenerateRecipe)
	})
	return r
}

// IsWebhook reports whether r targets a provider webhook.
func IsWebhook(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, WebhookPathPrefix)
}
