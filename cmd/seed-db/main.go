package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/localmart/coupon-engine/internal/domain/auth"
	"github.com/localmart/coupon-engine/internal/domain/coupon"
	"github.com/localmart/coupon-engine/internal/handler"
	"github.com/localmart/coupon-engine/internal/repository"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or COUPON_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COUPON_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COUPON_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or COUPON_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COUPON_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding sample coupons")

	coupons := []*coupon.Coupon{
		{
			Code:           "WELCOME100",
			Title:          "Flat 100 off your first booking",
			Kind:           coupon.DiscountFixed,
			Value:          decimal.NewFromInt(100),
			MinOrderAmount: decimal.NewFromInt(499),
			Category:       coupon.CategoryAll,
			UsageLimit:     1000,
			UsagePerUser:   1,
			Active:         true,
		},
		{
			Code:         "STAY15",
			Title:        "15% off homestays",
			Kind:         coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(15),
			MaxDiscount:  decimal.NewFromInt(750),
			Category:     coupon.CategoryHomestays,
			UsagePerUser: 3,
			Active:       true,
		},
		{
			Code:           "RIDE50",
			Title:          "Flat 50 off rides",
			Kind:           coupon.DiscountFixed,
			Value:          decimal.NewFromInt(50),
			MinOrderAmount: decimal.NewFromInt(199),
			Category:       coupon.CategoryTransport,
			UsagePerUser:   5,
			Active:         true,
		},
	}

	for _, c := range coupons {
		c.ID = uuid.NewString()
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("title", c.Title))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	info := &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: handler.HashAPIKey(apiKey, []byte(pepper)),
		Name:    "Default admin key",
		Scopes:  []string{"manage_coupons"},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}
