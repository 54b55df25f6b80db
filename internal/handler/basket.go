package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/basket"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/pricing"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
)

// GetBasket prices the caller's basket. An optional promo_code query
// parameter applies a promotional discount; an unusable code is a 422, not a
// silent fallback to full price.
func (h *Handler) GetBasket(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	receipt, err := h.checkout.BasketQuote(r.Context(), id.UserID, r.URL.Query().Get("promo_code"))
	switch {
	case err == nil:
	case promo.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, product.ErrNotFound):
		// A basket line pointing at a vanished product is a precondition
		// failure on the caller's basket, not a server fault.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	e := &jx.Encoder{}
	encodeReceipt(e, receipt)
	writeJSON(w, http.StatusOK, e)
}

// AddBasketItem lazily creates a basket item or increments its quantity.
func (h *Handler) AddBasketItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var (
		productID int64
		quantity  = 1
	)
	d := jx.Decode(r.Body, 1024)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Int64()
			productID = v
			return err
		case "quantity":
			v, err := d.Int()
			quantity = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if productID <= 0 {
		writeError(w, http.StatusBadRequest, "product_id required")
		return
	}
	if quantity < 0 {
		writeError(w, http.StatusBadRequest, basket.ErrNegativeQuantity.Error())
		return
	}

	// Adding an unknown product is a 404, not a deferred checkout failure.
	if _, err := h.products.GetByID(r.Context(), productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.baskets.Add(r.Context(), id.UserID, productID, quantity); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetBasketQuantity overwrites an item's quantity. Zero keeps the item in the
// basket with no contribution to totals.
func (h *Handler) SetBasketQuantity(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	quantity := -1
	d := jx.Decode(r.Body, 1024)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity = v
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err = h.baskets.SetQuantity(r.Context(), id.UserID, productID, quantity)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, basket.ErrNegativeQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, basket.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// RemoveBasketItem deletes one basket item.
func (h *Handler) RemoveBasketItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	err = h.baskets.Remove(r.Context(), id.UserID, productID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, basket.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// encodeReceipt writes the priced basket breakdown. All monetary values are
// fixed-point decimal strings.
func encodeReceipt(e *jx.Encoder, receipt *pricing.Receipt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range receipt.Snapshot() {
					encodeSnapshotLine(e, line)
				}
			})
		})
		e.Field("total_sum", func(e *jx.Encoder) { e.Str(receipt.Total.StringFixed(2)) })
	})
}

func encodeSnapshotLine(e *jx.Encoder, line pricing.SnapshotLine) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_name", func(e *jx.Encoder) { e.Str(line.ProductName) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
		e.Field("price", func(e *jx.Encoder) { e.Str(line.Price) })
		e.Field("sum", func(e *jx.Encoder) { e.Str(line.Sum) })
	})
}
