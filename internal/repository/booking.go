package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localmart/coupon-engine/internal/domain/booking"
)

const (
	createBookingSQL = `INSERT INTO bookings
		(id, user_id, service, amount, discount, total, coupon_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateBookingStatusSQL = `UPDATE bookings SET status = $2 WHERE id = $1`
)

var _ booking.Repository = (*BookingRepository)(nil)

// BookingRepository implements booking.Repository backed by PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository returns a BookingRepository that uses the given pool.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	_, err := r.pool.Exec(ctx, createBookingSQL,
		b.ID, b.UserID, b.Service, b.Amount, b.Discount, b.Total, b.CouponCode, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating booking %q: %w", b.ID, err)
	}
	return nil
}

// UpdateStatus changes the status of an existing booking.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx, updateBookingStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating booking %q status: %w", id, err)
	}
	return nil
}
