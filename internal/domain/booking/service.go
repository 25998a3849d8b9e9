package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

// Sentinel errors for booking validation.
var (
	ErrInvalidAmount  = fmt.Errorf("amount must be greater than 0")
	ErrUnknownService = fmt.Errorf("unknown service")
	ErrEmptyUser      = fmt.Errorf("user required")
)

// CreateRequest holds the input for finalizing a booking.
type CreateRequest struct {
	UserID     string
	Service    string
	Amount     decimal.Decimal
	CouponCode string
}

// Service encapsulates booking finalization: it quotes the coupon discount,
// persists the booking, and commits the redemption.
type Service struct {
	bookings Repository
	coupons  *coupon.Engine
	lg       *zap.Logger
}

// NewService creates a booking Service with the required dependencies.
func NewService(bookings Repository, coupons *coupon.Engine, lg *zap.Logger) *Service {
	return &Service{bookings: bookings, coupons: coupons, lg: lg}
}

// Create finalizes a booking. When a coupon code is supplied the price is
// validated against it first, and the redemption is committed right after the
// booking row is written. If the redemption loses a race on the coupon's
// usage limits, the booking is cancelled and the coupon failure is returned,
// so the caller sees the same typed error taxonomy as validation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if req.UserID == "" {
		return nil, ErrEmptyUser
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	category, ok := coupon.NormalizeService(req.Service)
	if !ok {
		return nil, ErrUnknownService
	}

	discount := decimal.Zero
	total := req.Amount
	var quote *coupon.ValidationResult

	if req.CouponCode != "" {
		var err error
		quote, err = s.coupons.Validate(ctx, coupon.ValidateRequest{
			Code:        req.CouponCode,
			UserID:      req.UserID,
			OrderAmount: req.Amount,
			Service:     req.Service,
		})
		if err != nil {
			return nil, err
		}
		discount = quote.DiscountAmount
		total = quote.FinalAmount
	}

	b := &Booking{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Service:    req.Service,
		Category:   category,
		Amount:     req.Amount.Round(2),
		Discount:   discount,
		Total:      total,
		CouponCode: req.CouponCode,
		Status:     StatusConfirmed,
		CreatedAt:  time.Now(),
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, errors.Wrap(err, "create booking")
	}

	if quote != nil {
		err := s.coupons.Apply(ctx, &coupon.Usage{
			CouponID:       quote.CouponID,
			UserID:         req.UserID,
			BookingID:      b.ID,
			Category:       category,
			DiscountAmount: quote.DiscountAmount,
			OrderAmount:    quote.OrderAmount,
			FinalAmount:    quote.FinalAmount,
		})
		if err != nil {
			// The booking row exists but the discount does not; cancel it
			// rather than confirm at an unquoted price.
			if cErr := s.bookings.UpdateStatus(ctx, b.ID, StatusCancelled); cErr != nil {
				s.lg.Error("cancel booking after coupon failure",
					zap.String("booking_id", b.ID),
					zap.Error(cErr),
				)
			}
			return nil, err
		}
	}

	return b, nil
}
