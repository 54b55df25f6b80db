package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/basket"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/order"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
)

var _ order.TxManager = (*TxManager)(nil)

// TxManager runs checkout work inside a single pgx transaction. The function
// receives repositories bound to that transaction; any error rolls everything
// back.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager over the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx begins a transaction, passes transaction-bound repositories to fn,
// and commits when fn returns nil.
func (m *TxManager) WithinTx(ctx context.Context, fn func(r order.TxRepos) error) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Baskets() basket.Repository        { return NewBasketRepository(r.tx) }
func (r txRepos) Orders() order.Repository          { return NewOrderRepository(r.tx) }
func (r txRepos) PromoUsage() promo.UsageRepository { return NewPromoUsageRepository(r.tx) }
