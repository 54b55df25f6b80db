// Command promo-ingest loads bulk promo code dumps into the database.
//
// Partner networks deliver gzipped files of one code per line; a code is
// trusted only when it appears in at least two of the three dumps. Files are
// too large to hold in memory, so the command makes two streaming passes:
// the first builds a bloom filter per file, the second collects codes that
// probably appear in another file and merges exact membership bitmasks.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/virginia-wolfi/chocolate-shop/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// discountRules maps known campaign codes to their discount fraction.
// Anything else found in the dumps gets defaultDiscount.
var discountRules = map[string]string{
	"HALFSWEET": "0.50",
	"CHOCOLOVE": "0.25",
	"DARKTREAT": "0.15",
	"TRUFFLE20": "0.20",
	"COCOAFANS": "0.30",
}

const defaultDiscount = "0.10"

func main() {
	var (
		dataDir     string
		databaseURL string
		validDays   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promobaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&validDays, "valid-days", 30, "validity window for ingested codes, in days")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, validDays); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, validDays int) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("promobase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := sketchFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: matching codes across files")

	validCodes, err := matchAcrossFiles(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "match codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writePromoCodes(ctx, pool, validCodes, validDays); err != nil {
		return errors.Wrap(err, "write promo codes to database")
	}

	return nil
}

// sketchFiles streams every dump once in parallel and builds a bloom filter
// of the well-formed codes it contains.
func sketchFiles(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

			n, err := scanCodes(ctx, path, func(code string) { filter.AddString(code) })
			if err != nil {
				return err
			}

			slog.Info("sketched file",
				slog.String("file", filepath.Base(path)),
				slog.Uint64("codes", n),
			)
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

// matchAcrossFiles streams every dump a second time. A code from file i is
// marked when some other file's filter probably contains it; per-file marks
// are merged into presence bitmasks and a code counting two or more set bits
// is accepted. Bloom false positives on a single file cannot reach two bits,
// so the result holds only codes genuinely present in 2+ dumps.
func matchAcrossFiles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	marks := make(chan map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			seen := make(map[string]uint)
			bit := uint(1) << uint(i)

			n, err := scanCodes(ctx, path, func(code string) {
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(code) {
						seen[code] |= bit
						break
					}
				}
			})
			if err != nil {
				return err
			}

			slog.Info("matched file",
				slog.String("file", filepath.Base(path)),
				slog.Uint64("codes", n),
				slog.Int("marked", len(seen)),
			)
			marks <- seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(marks)

	merged := make(map[string]uint)
	for seen := range marks {
		for code, bit := range seen {
			merged[code] |= bit
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

// scanCodes reads a gzipped dump line by line and calls fn for every code of
// acceptable length, returning how many were seen.
func scanCodes(ctx context.Context, path string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "gunzip %s", path)
	}
	defer func() { _ = gz.Close() }()

	var n uint64
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		code := sc.Text()
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}

		n++
		if n%progressEvery == 0 {
			slog.Info("scan progress",
				slog.String("file", filepath.Base(path)),
				slog.Uint64("codes", n),
			)
		}
		fn(code)
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "scan %s", path)
	}

	return n, nil
}

const upsertPromoCodeSQL = `
INSERT INTO promo_codes (code, discount, valid_from, valid_to)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET
    discount = EXCLUDED.discount,
    valid_to = EXCLUDED.valid_to`

// writePromoCodes upserts all valid codes with their discount fraction and a
// validity window starting now.
func writePromoCodes(ctx context.Context, pool *pgxpool.Pool, codes []string, validDays int) error {
	slog.Info("writing promo codes to database", slog.Int("count", len(codes)))

	validFrom := time.Now()
	validTo := validFrom.AddDate(0, 0, validDays)

	for i, code := range codes {
		fraction, ok := discountRules[code]
		if !ok {
			fraction = defaultDiscount
		}

		discount, err := decimal.NewFromString(fraction)
		if err != nil {
			return errors.Wrapf(err, "parse discount for code %s", code)
		}

		if _, err := pool.Exec(ctx, upsertPromoCodeSQL, code, discount, validFrom, validTo); err != nil {
			return errors.Wrapf(err, "upsert promo code %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
