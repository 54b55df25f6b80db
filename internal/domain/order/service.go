package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/basket"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/pricing"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
)

// TxRepos is the set of repositories bound to a single database transaction.
type TxRepos interface {
	Baskets() basket.Repository
	Orders() Repository
	PromoUsage() promo.UsageRepository
}

// TxManager runs a function inside one atomic transaction. A returned error
// rolls back every write made through the TxRepos.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

// Service implements basket pricing and the checkout transition.
type Service struct {
	products product.Repository
	baskets  basket.Repository
	promos   promo.Validator
	orders   Repository
	tx       TxManager
}

// NewService creates a Service with the required collaborators.
func NewService(
	products product.Repository,
	baskets basket.Repository,
	promos promo.Validator,
	orders Repository,
	tx TxManager,
) *Service {
	return &Service{
		products: products,
		baskets:  baskets,
		promos:   promos,
		orders:   orders,
		tx:       tx,
	}
}

// CheckoutRequest holds the input for converting a basket into an order.
type CheckoutRequest struct {
	UserID    int64
	Contact   Contact
	PromoCode string
}

// BasketQuote prices the user's current basket, applying promoCode when one
// is given. An expired, unknown, or already-consumed code is an error, never
// silently ignored.
func (s *Service) BasketQuote(ctx context.Context, userID int64, promoCode string) (*pricing.Receipt, error) {
	items, err := s.baskets.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list basket")
	}

	var code *promo.Code
	if promoCode != "" {
		code, err = s.promos.Validate(ctx, promoCode, userID)
		if err != nil {
			return nil, err
		}
	}

	priced, err := s.pricedItems(ctx, items)
	if err != nil {
		return nil, err
	}

	receipt := pricing.Quote(priced, code)
	return &receipt, nil
}

// Checkout atomically converts the user's basket into a persisted Order.
//
// All steps run inside one transaction: re-validate the promo code, record
// its consumption, compute and persist the snapshot, and clear the basket.
// Any failure rolls the whole thing back; the basket is emptied only when
// every prior step succeeded.
//
// The usage ledger is written before the basket rows are locked. Two
// concurrent checkouts with the same code then contend on the ledger's
// unique constraint, which is the final authority: the loser's duplicate
// insert surfaces as ErrAlreadyUsed and aborts its transaction before any
// order exists. Checkouts without a promo code still serialize on the
// basket row locks.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var out *Order

	err := s.tx.WithinTx(ctx, func(r TxRepos) error {
		var code *promo.Code
		if req.PromoCode != "" {
			var err error
			code, err = s.promos.Validate(ctx, req.PromoCode, req.UserID)
			if err != nil {
				return err
			}
			if err := r.PromoUsage().Record(ctx, req.UserID, code.ID); err != nil {
				return errors.Wrap(err, "record promo usage")
			}
		}

		items, err := r.Baskets().ListByUserForUpdate(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "list basket")
		}
		if len(items) == 0 {
			return ErrEmptyBasket
		}

		priced, err := s.pricedItems(ctx, items)
		if err != nil {
			return err
		}
		receipt := pricing.Quote(priced, code)

		o := &Order{
			ID:            uuid.New().String(),
			UserID:        req.UserID,
			Contact:       req.Contact,
			BasketHistory: receipt.Snapshot(),
			TotalSum:      receipt.Total,
			Status:        StatusCreated,
		}
		if code != nil {
			o.PromoCodeID = &code.ID
		}

		if err := r.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if err := r.Baskets().Clear(ctx, req.UserID); err != nil {
			return errors.Wrap(err, "clear basket")
		}

		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// AdvanceStatus moves the order one step forward in the fulfillment sequence.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !o.Status.CanTransitionTo(next) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", o.Status, next)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, o.Status, next); err != nil {
		return nil, err
	}

	o.Status = next
	return o, nil
}

// pricedItems pairs basket items with their catalog products in one batch
// fetch, preserving basket order.
func (s *Service) pricedItems(ctx context.Context, items []basket.Item) ([]pricing.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	priced := make([]pricing.Item, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", item.ProductID)
		}
		priced[i] = pricing.Item{Product: p, Quantity: item.Quantity}
	}

	return priced, nil
}
