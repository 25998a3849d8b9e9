package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, title, subtitle, description,
		discount_kind, discount_value, min_order_amount, max_discount_amount,
		valid_from, valid_until, category, usage_limit, usage_per_user,
		current_usage, active, created_at
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	countUsagesSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_id = $1 AND user_id = $2`

	// lockCouponSQL serializes concurrent redemptions of the same coupon;
	// the limits are re-checked on the locked row before any write.
	lockCouponSQL = `SELECT usage_limit, usage_per_user, current_usage
		FROM coupons WHERE id = $1 FOR UPDATE`

	insertUsageSQL = `INSERT INTO coupon_usages
		(id, coupon_id, user_id, booking_id, category, discount_amount, order_amount, final_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	incrementUsageSQL = `UPDATE coupons SET current_usage = current_usage + 1 WHERE id = $1`

	insertCouponSQL = `INSERT INTO coupons
		(id, code, title, subtitle, description, discount_kind, discount_value,
		 min_order_amount, max_discount_amount, valid_from, valid_until, category,
		 usage_limit, usage_per_user, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	// upsertCouponSQL refreshes the definition fields only; usage counters
	// are never reset by an ingest run.
	upsertCouponSQL = `INSERT INTO coupons
		(id, code, title, subtitle, description, discount_kind, discount_value,
		 min_order_amount, max_discount_amount, valid_from, valid_until, category,
		 usage_limit, usage_per_user, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			description = EXCLUDED.description,
			discount_kind = EXCLUDED.discount_kind,
			discount_value = EXCLUDED.discount_value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount_amount = EXCLUDED.max_discount_amount,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			category = EXCLUDED.category,
			usage_limit = EXCLUDED.usage_limit,
			usage_per_user = EXCLUDED.usage_per_user,
			active = EXCLUDED.active`

	deactivateCouponSQL = `UPDATE coupons SET active = FALSE WHERE UPPER(code) = UPPER($1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Inactive
// coupons are returned too; the engine decides how to report them.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// CountUsages returns the number of redemptions recorded for the pair.
func (r *CouponRepository) CountUsages(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, countUsagesSQL, couponID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting usages for coupon %q: %w", couponID, err)
	}
	return n, nil
}

// Apply commits one redemption: the coupon row is locked, both limits are
// re-checked on the locked state, and only then are the usage row inserted
// and the counter incremented. Everything happens in one transaction, so a
// failure at any point leaves no partial state.
func (r *CouponRepository) Apply(ctx context.Context, u *coupon.Usage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning redemption tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var usageLimit, usagePerUser, currentUsage int
	err = tx.QueryRow(ctx, lockCouponSQL, u.CouponID).Scan(&usageLimit, &usagePerUser, &currentUsage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrCouponNotFound
		}
		return fmt.Errorf("locking coupon %q: %w", u.CouponID, err)
	}

	if usageLimit > 0 && currentUsage >= usageLimit {
		return coupon.ErrUsageLimitReached
	}

	var used int
	if err := tx.QueryRow(ctx, countUsagesSQL, u.CouponID, u.UserID).Scan(&used); err != nil {
		return fmt.Errorf("re-checking usages for coupon %q: %w", u.CouponID, err)
	}
	if used >= usagePerUser {
		return coupon.ErrPerUserLimitReached
	}

	var bookingID *string
	if u.BookingID != "" {
		bookingID = &u.BookingID
	}

	_, err = tx.Exec(ctx, insertUsageSQL,
		u.ID, u.CouponID, u.UserID, bookingID, string(u.Category),
		u.DiscountAmount, u.OrderAmount, u.FinalAmount,
	)
	if err != nil {
		return fmt.Errorf("inserting usage for coupon %q: %w", u.CouponID, err)
	}

	if _, err := tx.Exec(ctx, incrementUsageSQL, u.CouponID); err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", u.CouponID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing redemption for coupon %q: %w", u.CouponID, err)
	}
	return nil
}

// Create inserts a new coupon definition. Zero min-order and max-discount
// amounts are stored as zero, matching the "unset" convention of the domain.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.Title, c.Subtitle, c.Description,
		string(c.Kind), c.Value, c.MinOrderAmount, c.MaxDiscount,
		c.ValidFrom, c.ValidUntil, string(c.Category),
		c.UsageLimit, c.UsagePerUser, c.Active,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts the coupon or refreshes its definition fields when the code
// already exists. Used by the seed and ingest tools.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, c.Title, c.Subtitle, c.Description,
		string(c.Kind), c.Value, c.MinOrderAmount, c.MaxDiscount,
		c.ValidFrom, c.ValidUntil, string(c.Category),
		c.UsageLimit, c.UsagePerUser, c.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Deactivate clears the active flag for the given code.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deactivateCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deactivating coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c           coupon.Coupon
		kind        string
		category    string
		minOrder    decimal.Decimal
		maxDiscount decimal.Decimal
		validFrom   *time.Time
		validUntil  *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Title, &c.Subtitle, &c.Description,
		&kind, &c.Value, &minOrder, &maxDiscount,
		&validFrom, &validUntil, &category,
		&c.UsageLimit, &c.UsagePerUser, &c.CurrentUsage, &c.Active, &c.CreatedAt,
	)
	c.Kind = coupon.DiscountKind(kind)
	c.Category = coupon.Category(category)
	c.MinOrderAmount = minOrder
	c.MaxDiscount = maxDiscount
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	return c, err
}
