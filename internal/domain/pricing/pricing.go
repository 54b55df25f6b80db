// Package pricing computes line-item and basket-level totals. It owns all
// rounding and discount-application rules: every monetary value is quantized
// to 2 decimal places with half-up rounding at the line level, so that the
// sum of line sums reproduces the grand total exactly.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
)

var one = decimal.NewFromInt(1)

// Item is one basket entry paired with its catalog product.
type Item struct {
	Product  product.Product
	Quantity int
}

// Line is one priced basket entry.
type Line struct {
	ProductName string
	Quantity    int
	// UnitPrice is the effective unit price after any product discount and,
	// when applicable, the promo fraction.
	UnitPrice decimal.Decimal
	// Sum is round_half_up(UnitPrice × Quantity, 2).
	Sum decimal.Decimal
}

// Receipt is the full basket breakdown plus the grand total.
type Receipt struct {
	Lines []Line
	Total decimal.Decimal
}

// SnapshotLine is the frozen, storage-ready form of a Line. Prices are
// fixed-point decimal strings, never binary floats.
type SnapshotLine struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Sum         string `json:"sum"`
}

// Snapshot returns the receipt's lines in their immutable stored form.
func (r Receipt) Snapshot() []SnapshotLine {
	lines := make([]SnapshotLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = SnapshotLine{
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Price:       l.UnitPrice.StringFixed(2),
			Sum:         l.Sum.StringFixed(2),
		}
	}
	return lines
}

// Quote prices the given items, applying code's discount fraction when one is
// supplied. The caller is responsible for validating the code first; Quote
// treats a non-nil code as usable.
//
// The promo fraction applies to a line only when the product does not carry
// its own discount price. Discounts never stack.
func Quote(items []Item, code *promo.Code) Receipt {
	lines := make([]Line, len(items))
	total := decimal.Zero

	for i, item := range items {
		unit := item.Product.EffectivePrice()
		if code != nil && !item.Product.Discounted() {
			unit = unit.Mul(one.Sub(code.Discount)).Round(2)
		}

		// Rounding is per line, not only at the grand total: summing the
		// stored line sums must reproduce the total with no drift.
		sum := unit.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)

		lines[i] = Line{
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			Sum:         sum,
		}
		total = total.Add(sum)
	}

	// Re-quantize defensively; a no-op given the per-line rounding above.
	return Receipt{Lines: lines, Total: total.Round(2)}
}
