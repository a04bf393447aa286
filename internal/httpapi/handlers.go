package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type productView struct {
	models.Product
	Available int `json:"available"`
}

type cartView struct {
	Items   []models.CartLine `json:"items"`
	Count   int               `json:"count"`
	Pricing models.Pricing    `json:"pricing"`
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := catalog.DefaultFilter()
	if v := q.Get("category"); v != "" {
		f.Category = v
	}
	f.Query = q.Get("q")
	for param, dst := range map[string]*decimal.Decimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		if v := q.Get(param); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				h.respondError(w, http.StatusBadRequest, "Invalid "+param)
				return
			}
			*dst = d
		}
	}
	if v := q.Get("rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid rating")
			return
		}
		f.MinRating = rating
	}
	f.InStock, _ = strconv.ParseBool(q.Get("in_stock"))
	f.OnSale, _ = strconv.ParseBool(q.Get("on_sale"))
	sortBy, err := catalog.ParseSortBy(q.Get("sort"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.SortBy = sortBy

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	stock := h.stockLookup(ctx)
	products := h.Catalog.Filter(f, stock)
	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = productView{Product: p, Available: stock(p.ID)}
	}

	h.respondJSON(w, http.StatusOK, catalog.Paginate(views, page, pageSize))
}

// stockLookup reads availability once per request. A failed read is logged
// and every product reports 0 available.
func (h *handler) stockLookup(ctx context.Context) catalog.StockFunc {
	available := make(map[string]int)
	records, err := h.Inventory.Records(ctx)
	if err != nil {
		h.Logger.Warn("read inventory", zap.Error(err))
	}
	for _, rec := range records {
		available[rec.ProductID] = rec.Available()
	}
	return func(id string) int { return available[id] }
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, productView{Product: p, Available: h.Inventory.Available(r.Context(), p.ID)})
}

func (h *handler) cartView(ctx context.Context) (*cartView, error) {
	lines, err := h.Cart.Lines(ctx)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []models.CartLine{}
	}
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return &cartView{Items: lines, Count: count, Pricing: pricing.Quote(lines)}, nil
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartView(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  *int   `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	product, err := h.Catalog.Get(req.ProductID)
	if err != nil {
		h.fail(w, err)
		return
	}
	line, err := h.Cart.Add(r.Context(), product, quantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, line)
}

func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity); err != nil {
		h.fail(w, err)
		return
	}
	h.getCart(w, r)
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress models.ShippingAddress `json:"shipping_address"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	order, err := h.Cart.Checkout(r.Context(), req.ShippingAddress, pricing.Quote)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, order)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	page, err := h.Orders.ListPage(r.Context(), r.URL.Query().Get("cursor"), limit)
	if errors.Is(err, orders.ErrInvalidCursor) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

func (h *handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Orders.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.Wishlist.Items(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *handler) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Catalog.Get(id); err != nil {
		h.fail(w, err)
		return
	}
	added, err := h.Wishlist.Toggle(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"product_id": id, "in_wishlist": added})
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Auth.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, user)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.Current(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if user == nil {
		h.respondError(w, http.StatusUnauthorized, "Not signed in")
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}
