// Package handler is the JSON HTTP edge of the shop. It translates requests
// into domain calls and domain errors into the error taxonomy exposed to
// clients: 400 for empty-basket and malformed input, 404 for missing
// resources, 409 for status transition conflicts, 422 for promo failures.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/basket"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/order"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
)

// Handler serves the shop API over net/http.
type Handler struct {
	products product.Repository
	baskets  basket.Repository
	orders   order.Repository
	checkout *order.Service
	auth     *Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	baskets basket.Repository,
	orders order.Repository,
	checkout *order.Service,
	auth *Authenticator,
) *Handler {
	return &Handler{
		products: products,
		baskets:  baskets,
		orders:   orders,
		checkout: checkout,
		auth:     auth,
	}
}

// Routes returns the API route table. Catalog endpoints are public; basket
// and order endpoints require a bearer token.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/basket", h.auth.Require(h.GetBasket))
	mux.HandleFunc("POST /api/basket/items", h.auth.Require(h.AddBasketItem))
	mux.HandleFunc("PUT /api/basket/items/{productID}", h.auth.Require(h.SetBasketQuantity))
	mux.HandleFunc("DELETE /api/basket/items/{productID}", h.auth.Require(h.RemoveBasketItem))

	mux.HandleFunc("POST /api/orders", h.auth.Require(h.PlaceOrder))
	mux.HandleFunc("GET /api/orders", h.auth.Require(h.ListOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.auth.Require(h.GetOrder))
	mux.HandleFunc("POST /api/orders/{id}/status", h.auth.Require(h.AdvanceOrderStatus))

	return mux
}

// writeJSON writes the encoder's buffer as an application/json response.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error body {"code": ..., "message": ...}.
func writeError(w http.ResponseWriter, status int, message string) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, e)
}
