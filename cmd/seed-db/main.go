// Command seed-db loads a product catalog from a JSON file and seeds demo
// promo codes and users. Intended for local development and test setups;
// every write is an upsert, so the command is safe to rerun.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/user"
	"github.com/virginia-wolfi/chocolate-shop/internal/storage/postgres"
)

type productJSON struct {
	Name          string           `json:"name"`
	Slug          string           `json:"slug"`
	Description   string           `json:"description"`
	Ingredients   string           `json:"ingredients"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		demoToken    string
		tokenPepper  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&demoToken, "demo-token", "", "bearer token to seed for the demo user (or SHOP_SEED_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or SHOP_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if demoToken == "" {
		demoToken = os.Getenv("SHOP_SEED_TOKEN")
	}
	if demoToken == "" {
		slog.Error("demo token is required: set --demo-token or SHOP_SEED_TOKEN")
		os.Exit(1)
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("SHOP_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, demoToken, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, demoToken, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromoCodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	if err := seedDemoUser(ctx, pool, demoToken, pepper); err != nil {
		return errors.Wrap(err, "seed demo user")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (name, slug, description, ingredients, price, discount_price)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (slug) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    ingredients = EXCLUDED.ingredients,
    price = EXCLUDED.price,
    discount_price = EXCLUDED.discount_price`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.Name, p.Slug, p.Description, p.Ingredients, p.Price, p.DiscountPrice,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		slog.Info("upserted product", slog.String("slug", p.Slug), slog.String("name", p.Name))
	}

	return nil
}

const upsertPromoCodeSQL = `
INSERT INTO promo_codes (code, discount, valid_from, valid_to)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET
    discount = EXCLUDED.discount,
    valid_from = EXCLUDED.valid_from,
    valid_to = EXCLUDED.valid_to`

func seedPromoCodes(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo promo codes")

	now := time.Now()
	codes := []struct {
		code     string
		discount decimal.Decimal
		from, to time.Time
	}{
		{"WELCOME10", decimal.RequireFromString("0.10"), now.AddDate(0, -1, 0), now.AddDate(1, 0, 0)},
		{"SWEETWEEK", decimal.RequireFromString("0.25"), now.AddDate(0, 0, -1), now.AddDate(0, 0, 6)},
		{"GIFTBOX15", decimal.RequireFromString("0.15"), now.AddDate(0, 0, -1), now.AddDate(0, 1, 0)},
		{"BYGONE", decimal.RequireFromString("0.50"), now.AddDate(-1, 0, 0), now.AddDate(0, -6, 0)},
	}

	for _, c := range codes {
		if _, err := pool.Exec(ctx, upsertPromoCodeSQL, c.code, c.discount, c.from, c.to); err != nil {
			return errors.Wrapf(err, "upsert promo code %s", c.code)
		}

		slog.Info("upserted promo code",
			slog.String("code", c.code),
			slog.String("discount", c.discount.String()))
	}

	return nil
}

const upsertUserSQL = `
INSERT INTO users (email, full_name, token_hash)
VALUES ($1, $2, $3)
ON CONFLICT (email) DO UPDATE SET
    full_name = EXCLUDED.full_name,
    token_hash = EXCLUDED.token_hash`

func seedDemoUser(ctx context.Context, pool *pgxpool.Pool, token, pepper string) error {
	slog.Info("seeding demo user")

	tokenHash := user.HashToken(token, []byte(pepper))

	if _, err := pool.Exec(ctx, upsertUserSQL,
		"demo@example.com", "Demo User", tokenHash,
	); err != nil {
		return errors.Wrap(err, "upsert demo user")
	}

	slog.Info("upserted demo user", slog.String("email", "demo@example.com"))

	return nil
}
