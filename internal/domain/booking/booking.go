package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

// Status values for a booking. Cancelled is only used as the compensating
// state when the coupon commit fails after the booking row was written.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking represents a finalized order for one marketplace service with its
// pricing and discount details.
type Booking struct {
	ID         string
	UserID     string
	Service    string
	Category   coupon.Category
	Amount     decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	Status     string
	CreatedAt  time.Time
}

// Repository defines persistence operations for bookings.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	UpdateStatus(ctx context.Context, id, status string) error
}
