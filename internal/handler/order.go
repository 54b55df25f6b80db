package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/order"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
)

// PlaceOrder converts the caller's basket into a persisted order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req order.CheckoutRequest
	req.UserID = id.UserID

	d := jx.Decode(r.Body, 4096)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "full_name":
			req.Contact.FullName, err = d.Str()
		case "phone_number":
			req.Contact.PhoneNumber, err = d.Str()
		case "address":
			req.Contact.Address, err = d.Str()
		case "promo_code":
			req.PromoCode, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.Contact.FullName == "" || req.Contact.PhoneNumber == "" || req.Contact.Address == "" {
		writeError(w, http.StatusBadRequest, "full_name, phone_number and address are required")
		return
	}

	o, err := h.checkout.Checkout(r.Context(), req)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, http.StatusCreated, e)
}

// ListOrders returns the caller's order history, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	orders, err := h.orders.ListByUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	e := &jx.Encoder{}
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
	})
	writeJSON(w, http.StatusOK, e)
}

// GetOrder returns one of the caller's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Orders are owned: asking for someone else's order looks like a miss.
	if o.UserID != id.UserID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, http.StatusOK, e)
}

// AdvanceOrderStatus moves an order one step forward in the fulfillment
// sequence. Skips and regressions are rejected with 409.
func (h *Handler) AdvanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	var statusName string
	d := jx.Decode(r.Body, 1024)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		v, err := d.Str()
		statusName = v
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	next, err := order.ParseStatus(statusName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.checkout.AdvanceStatus(r.Context(), r.PathValue("id"), next)
	switch {
	case err == nil:
		e := &jx.Encoder{}
		encodeOrder(e, o)
		writeJSON(w, http.StatusOK, e)
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeCheckoutError maps checkout failures to the client error taxonomy.
func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyBasket):
		writeError(w, http.StatusBadRequest, err.Error())
	case promo.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("full_name", func(e *jx.Encoder) { e.Str(o.FullName) })
		e.Field("phone_number", func(e *jx.Encoder) { e.Str(o.PhoneNumber) })
		e.Field("address", func(e *jx.Encoder) { e.Str(o.Address) })
		e.Field("basket_history", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range o.BasketHistory {
					encodeSnapshotLine(e, line)
				}
			})
		})
		e.Field("total_sum", func(e *jx.Encoder) { e.Str(o.TotalSum.StringFixed(2)) })
		if o.PromoCodeID != nil {
			e.Field("promo_code_id", func(e *jx.Encoder) { e.Int64(*o.PromoCodeID) })
		}
		if !o.CreatedAt.IsZero() {
			e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
		}
	})
}
