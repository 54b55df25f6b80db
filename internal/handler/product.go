package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
)

// ListProducts returns the whole catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	e := &jx.Encoder{}
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			encodeProduct(e, p)
		}
	})
	writeJSON(w, http.StatusOK, e)
}

// GetProduct returns a single catalog item by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	e := &jx.Encoder{}
	encodeProduct(e, *p)
	writeJSON(w, http.StatusOK, e)
}

// encodeProduct writes one product object. Prices are fixed-point decimal
// strings, matching the representation used in order snapshots.
func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("slug", func(e *jx.Encoder) { e.Str(p.Slug) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("ingredients", func(e *jx.Encoder) { e.Str(p.Ingredients) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.StringFixed(2)) })
		if p.DiscountPrice != nil {
			e.Field("discount_price", func(e *jx.Encoder) { e.Str(p.DiscountPrice.StringFixed(2)) })
		}
	})
}
