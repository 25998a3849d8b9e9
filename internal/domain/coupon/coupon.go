package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountKind enumerates the supported discount strategies.
type DiscountKind string

const (
	// DiscountPercentage takes a percentage off the order amount, optionally
	// capped at the coupon's MaxDiscount.
	DiscountPercentage DiscountKind = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the order amount.
	DiscountFixed DiscountKind = "fixed"
)

var (
	// ErrCouponNotFound is returned when a code does not resolve to an
	// active, in-window coupon. Missing, deactivated, expired, and
	// not-yet-active coupons are all reported the same way to callers.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned when a coupon's global usage limit
	// has been exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached is returned when the user has already redeemed
	// this coupon the maximum allowed number of times.
	ErrPerUserLimitReached = errors.New("coupon already used")
	// ErrCategoryMismatch is returned when the coupon is restricted to a
	// service vertical the order does not belong to.
	ErrCategoryMismatch = errors.New("coupon not valid for this service")
)

// BelowMinimumError is returned when the order amount is below the coupon's
// minimum. It carries the minimum so callers can show a precise message.
type BelowMinimumError struct {
	Min decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order amount of %s required", e.Min.StringFixed(2))
}

// Coupon is a discount definition. Current redeemability is derived from
// Active, the validity window, and the usage counters; there is no stored
// status field.
type Coupon struct {
	ID          string
	Code        string
	Title       string
	Subtitle    string
	Description string
	Kind        DiscountKind
	Value       decimal.Decimal
	// MinOrderAmount gates redemption; zero means no minimum.
	MinOrderAmount decimal.Decimal
	// MaxDiscount caps percentage discounts; zero means uncapped.
	MaxDiscount decimal.Decimal
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	Category    Category
	// UsageLimit is the global redemption cap; zero means unlimited.
	UsageLimit int
	// UsagePerUser is the per-user redemption cap. Always at least 1.
	UsagePerUser int
	CurrentUsage int
	Active       bool
	CreatedAt    time.Time
}

// Usage records one successful redemption. Immutable once written.
type Usage struct {
	ID       string
	CouponID string
	UserID   string
	// BookingID is empty when the redemption was not tied to a booking.
	BookingID      string
	Category       Category
	DiscountAmount decimal.Decimal
	OrderAmount    decimal.Decimal
	FinalAmount    decimal.Decimal
	CreatedAt      time.Time
}

// Repository provides coupon storage. Apply is the atomic commit path: it
// must insert the usage row and increment the coupon's usage counter in one
// transaction, re-checking both usage limits inside that transaction and
// returning ErrUsageLimitReached or ErrPerUserLimitReached when a limit has
// been reached by a concurrent redemption since validation.
type Repository interface {
	// FindByCode looks up a coupon by its canonical (uppercase) code,
	// regardless of active flag or validity window. Returns
	// ErrCouponNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// CountUsages returns the number of recorded redemptions for the
	// given (coupon, user) pair.
	CountUsages(ctx context.Context, couponID, userID string) (int, error)
	// Apply atomically commits a redemption.
	Apply(ctx context.Context, u *Usage) error
	// Create inserts a new coupon definition.
	Create(ctx context.Context, c *Coupon) error
	// Deactivate clears the active flag. Coupons are never deleted.
	Deactivate(ctx context.Context, code string) error
}
