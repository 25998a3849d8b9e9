// coupon-ingest imports partner promo-code feeds into the coupons table.
//
// Feeds are gzip-compressed CSV files, one coupon definition per row:
//
//	code,kind,value,min_order_amount,max_discount,category,valid_from,valid_until,usage_limit,usage_per_user,title
//
// Files are parsed concurrently; a shared bloom filter dedupes codes across
// feeds so the first feed to define a code wins. A bloom false positive
// drops a definition, which is acceptable at the configured error rate.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
	"github.com/localmart/coupon-engine/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	minCodeLen    = 4
	maxCodeLen    = 32
	progressEvery = 100_000
)

func main() {
	var (
		feedGlob    string
		databaseURL string
	)

	flag.StringVar(&feedGlob, "feeds", "feeds/*.csv.gz", "glob of gzipped CSV feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, feedGlob, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, feedGlob, databaseURL string) error {
	files, err := filepath.Glob(feedGlob)
	if err != nil {
		return errors.Wrapf(err, "expand glob %q", feedGlob)
	}
	if len(files) == 0 {
		return errors.Errorf("no feed files match %q", feedGlob)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)

	// Parsers fan in to a single writer; the writer owns the bloom filter,
	// so no locking is needed around it.
	records := make(chan *coupon.Coupon, 1024)

	g, ctx := errgroup.WithContext(ctx)
	parsers, ctx := errgroup.WithContext(ctx)

	for _, f := range files {
		parsers.Go(parseFeed(ctx, f, records))
	}
	g.Go(func() error {
		defer close(records)
		return parsers.Wait()
	})
	g.Go(writeCoupons(ctx, repo, records))

	return g.Wait()
}

// parseFeed streams one gzipped CSV feed and sends parsed definitions.
func parseFeed(ctx context.Context, path string, out chan<- *coupon.Coupon) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		r := csv.NewReader(gz)
		r.FieldsPerRecord = 11
		r.ReuseRecord = true

		var line, parsed uint64
		for {
			row, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			line++

			c, err := parseRow(row)
			if err != nil {
				slog.Warn("skipping malformed row",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("line", line),
					slog.String("error", err.Error()),
				)
				continue
			}
			parsed++
			if parsed%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("parsed", parsed),
				)
			}

			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		slog.Info("feed parsed",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("definitions", parsed),
		)
		return nil
	}
}

func parseRow(row []string) (*coupon.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(row[0]))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return nil, errors.Errorf("code length %d outside [%d, %d]", len(code), minCodeLen, maxCodeLen)
	}

	kind := coupon.DiscountKind(strings.TrimSpace(row[1]))
	if kind != coupon.DiscountPercentage && kind != coupon.DiscountFixed {
		return nil, errors.Errorf("unsupported discount kind %q", row[1])
	}

	value, err := decimal.NewFromString(row[2])
	if err != nil {
		return nil, errors.Wrap(err, "parse value")
	}
	if !value.IsPositive() {
		return nil, errors.New("value must be greater than 0")
	}

	minOrder, err := parseAmount(row[3])
	if err != nil {
		return nil, errors.Wrap(err, "parse min_order_amount")
	}
	maxDiscount, err := parseAmount(row[4])
	if err != nil {
		return nil, errors.Wrap(err, "parse max_discount")
	}

	category, ok := coupon.ParseCategory(strings.TrimSpace(row[5]))
	if !ok {
		return nil, errors.Errorf("unknown category %q", row[5])
	}

	validFrom, err := parseTimestamp(row[6])
	if err != nil {
		return nil, errors.Wrap(err, "parse valid_from")
	}
	validUntil, err := parseTimestamp(row[7])
	if err != nil {
		return nil, errors.Wrap(err, "parse valid_until")
	}

	usageLimit, err := parseCount(row[8], 0)
	if err != nil {
		return nil, errors.Wrap(err, "parse usage_limit")
	}
	usagePerUser, err := parseCount(row[9], 1)
	if err != nil {
		return nil, errors.Wrap(err, "parse usage_per_user")
	}

	return &coupon.Coupon{
		ID:             uuid.NewString(),
		Code:           code,
		Title:          strings.TrimSpace(row[10]),
		Kind:           kind,
		Value:          value,
		MinOrderAmount: minOrder,
		MaxDiscount:    maxDiscount,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		Category:       category,
		UsageLimit:     usageLimit,
		UsagePerUser:   usagePerUser,
		Active:         true,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseTimestamp(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseCount(s string, def int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

// writeCoupons dedupes codes across feeds and upserts the survivors.
func writeCoupons(ctx context.Context, repo *repository.CouponRepository, records <-chan *coupon.Coupon) func() error {
	return func() error {
		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var written, dupes uint64

		for c := range records {
			if seen.TestAndAddString(c.Code) {
				dupes++
				continue
			}

			if err := repo.Upsert(ctx, c); err != nil {
				return errors.Wrapf(err, "upsert coupon %s", c.Code)
			}
			written++
			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Uint64("written", written))
			}
		}

		slog.Info("write complete",
			slog.Uint64("written", written),
			slog.Uint64("duplicates", dupes),
		)
		return nil
	}
}
