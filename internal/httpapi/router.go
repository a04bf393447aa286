// Package httpapi exposes the storefront over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/inventory"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/wishlist"
	"go.uber.org/zap"
)

type Deps struct {
	Catalog   *catalog.Catalog
	Inventory *inventory.Ledger
	Cart      *cart.Service
	Orders    *orders.Ledger
	Wishlist  *wishlist.Wishlist
	Auth      *auth.Service
	Logger    *zap.Logger
	// RequestTimeout bounds each request. Zero disables the limit.
	RequestTimeout time.Duration
}

type handler struct {
	Deps
}

func NewRouter(d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	d.Logger = d.Logger.Named("http")
	h := &handler{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Post("/items", h.addCartItem)
		r.Put("/items/{id}", h.updateCartItem)
		r.Delete("/items/{id}", h.removeCartItem)
	})
	r.Post("/checkout", h.checkout)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.setOrderStatus)
	})

	r.Route("/wishlist", func(r chi.Router) {
		r.Get("/", h.getWishlist)
		r.Post("/{id}", h.toggleWishlist)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/signup", h.signup)
		r.Post("/logout", h.logout)
		r.Get("/me", h.me)
	})

	return r
}
