package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ValidateRequest carries the order context a coupon code is checked against.
type ValidateRequest struct {
	Code string
	// UserID is optional; when empty the per-user limit check is skipped
	// (anonymous preview validation).
	UserID      string
	OrderAmount decimal.Decimal
	// Service is the optional service identifier of the order's vertical,
	// e.g. "driver" or "homestay".
	Service string
}

// ValidationResult is the advisory outcome of a successful validation. It
// does not reserve or commit anything; the redemption is committed by Apply.
type ValidationResult struct {
	CouponID       string
	Code           string
	Title          string
	DiscountAmount decimal.Decimal
	OrderAmount    decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Engine validates coupon codes against an order context and commits
// redemptions. Validate is a pure read path; Apply is the atomic commit path.
type Engine struct {
	repo Repository
	lg   *zap.Logger
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository, lg *zap.Logger) *Engine {
	return &Engine{repo: repo, lg: lg, now: time.Now}
}

// Validate checks the code against the order context and computes the
// discount. Business-rule failures are returned as the typed errors defined
// in this package; only infrastructure failures are wrapped and propagated.
//
// Checks short-circuit in a fixed order: existence and validity window,
// global usage limit, minimum order amount, per-user usage limit, category
// compatibility.
func (e *Engine) Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, ErrCouponNotFound
	}

	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			e.lg.Debug("coupon code not found", zap.String("code", code))
			return nil, ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	// Inactive and out-of-window coupons are reported to callers identically
	// to unknown codes, but the distinction is kept in the logs.
	now := e.now()
	switch {
	case !c.Active:
		e.lg.Debug("coupon inactive", zap.String("code", code))
		return nil, ErrCouponNotFound
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		e.lg.Debug("coupon not yet active", zap.String("code", code), zap.Timep("valid_from", c.ValidFrom))
		return nil, ErrCouponNotFound
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		e.lg.Debug("coupon expired", zap.String("code", code), zap.Timep("valid_until", c.ValidUntil))
		return nil, ErrCouponNotFound
	}

	if c.UsageLimit > 0 && c.CurrentUsage >= c.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	if c.MinOrderAmount.IsPositive() && req.OrderAmount.LessThan(c.MinOrderAmount) {
		return nil, &BelowMinimumError{Min: c.MinOrderAmount}
	}

	if req.UserID != "" {
		used, err := e.repo.CountUsages(ctx, c.ID, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon usages")
		}
		if used >= c.UsagePerUser {
			return nil, ErrPerUserLimitReached
		}
	}

	if c.Category != CategoryAll && req.Service != "" {
		cat, ok := NormalizeService(req.Service)
		// Unknown service identifiers fail closed against restricted coupons.
		if !ok || cat != c.Category {
			return nil, ErrCategoryMismatch
		}
	}

	discount, err := ComputeDiscount(c, req.OrderAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "compute discount for %q", code)
	}

	final := req.OrderAmount.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return &ValidationResult{
		CouponID:       c.ID,
		Code:           c.Code,
		Title:          c.Title,
		DiscountAmount: discount,
		OrderAmount:    req.OrderAmount,
		FinalAmount:    final,
	}, nil
}

// Apply commits a redemption previously validated by Validate. The repository
// re-checks both usage limits inside the same transaction that inserts the
// usage row and increments the counter, so two racing redemptions can never
// push a (coupon, user) pair past its limit. A failed Apply leaves no partial
// state and is safe to retry.
func (e *Engine) Apply(ctx context.Context, u *Usage) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	if err := e.repo.Apply(ctx, u); err != nil {
		if errors.Is(err, ErrUsageLimitReached) || errors.Is(err, ErrPerUserLimitReached) {
			e.lg.Info("coupon redemption lost the race",
				zap.String("coupon_id", u.CouponID),
				zap.String("user_id", u.UserID),
			)
			return err
		}
		return errors.Wrap(err, "apply coupon")
	}

	return nil
}
