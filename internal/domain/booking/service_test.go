package booking

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

type mockBookingRepo struct {
	created    *Booking
	createErr  error
	statusID   string
	lastStatus string
}

func (m *mockBookingRepo) Create(_ context.Context, b *Booking) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = b
	return nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, id, status string) error {
	m.statusID = id
	m.lastStatus = status
	return nil
}

type stubCouponRepo struct {
	coupon   *coupon.Coupon
	applyErr error
	applied  *coupon.Usage
}

func (s *stubCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	if s.coupon == nil {
		return nil, coupon.ErrCouponNotFound
	}
	return s.coupon, nil
}

func (s *stubCouponRepo) CountUsages(_ context.Context, _, _ string) (int, error) { return 0, nil }

func (s *stubCouponRepo) Apply(_ context.Context, u *coupon.Usage) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = u
	return nil
}

func (s *stubCouponRepo) Create(_ context.Context, _ *coupon.Coupon) error { return nil }

func (s *stubCouponRepo) Deactivate(_ context.Context, _ string) error { return nil }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedCoupon() *coupon.Coupon {
	return &coupon.Coupon{
		ID: "c1", Code: "SAVE100", Kind: coupon.DiscountFixed, Value: amt("100"),
		Category: coupon.CategoryAll, UsagePerUser: 1, Active: true,
	}
}

func newService(bookings *mockBookingRepo, coupons *stubCouponRepo) *Service {
	return NewService(bookings, coupon.NewEngine(coupons, zap.NewNop()), zap.NewNop())
}

func TestCreate_WithoutCoupon(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := newService(repo, &stubCouponRepo{})

	b, err := svc.Create(context.Background(), CreateRequest{
		UserID: "u1", Service: "homestay", Amount: amt("1200"),
	})

	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, coupon.CategoryHomestays, b.Category)
	assert.True(t, amt("1200").Equal(b.Total))
	assert.True(t, b.Discount.IsZero())
	assert.False(t, b.CreatedAt.IsZero(), "booking must carry its creation time")
	require.NotNil(t, repo.created)
}

func TestCreate_WithCoupon(t *testing.T) {
	repo := &mockBookingRepo{}
	coupons := &stubCouponRepo{coupon: fixedCoupon()}
	svc := newService(repo, coupons)

	b, err := svc.Create(context.Background(), CreateRequest{
		UserID: "u1", Service: "driver", Amount: amt("600"), CouponCode: "SAVE100",
	})

	require.NoError(t, err)
	assert.True(t, amt("100").Equal(b.Discount))
	assert.True(t, amt("500").Equal(b.Total))

	require.NotNil(t, coupons.applied)
	assert.Equal(t, b.ID, coupons.applied.BookingID)
	assert.Equal(t, coupon.CategoryTransport, coupons.applied.Category)
}

func TestCreate_InvalidInputs(t *testing.T) {
	svc := newService(&mockBookingRepo{}, &stubCouponRepo{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Service: "driver", Amount: amt("10")})
	require.ErrorIs(t, err, ErrEmptyUser)

	_, err = svc.Create(ctx, CreateRequest{UserID: "u1", Service: "driver", Amount: amt("0")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(ctx, CreateRequest{UserID: "u1", Service: "submarine", Amount: amt("10")})
	require.ErrorIs(t, err, ErrUnknownService)
}

func TestCreate_InvalidCouponAbortsBeforePersisting(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := newService(repo, &stubCouponRepo{})

	_, err := svc.Create(context.Background(), CreateRequest{
		UserID: "u1", Service: "driver", Amount: amt("600"), CouponCode: "BOGUS",
	})

	require.ErrorIs(t, err, coupon.ErrCouponNotFound)
	assert.Nil(t, repo.created, "no booking row written for an invalid coupon")
}

func TestCreate_LostRedemptionRaceCancelsBooking(t *testing.T) {
	repo := &mockBookingRepo{}
	coupons := &stubCouponRepo{
		coupon:   fixedCoupon(),
		applyErr: coupon.ErrPerUserLimitReached,
	}
	svc := newService(repo, coupons)

	_, err := svc.Create(context.Background(), CreateRequest{
		UserID: "u1", Service: "driver", Amount: amt("600"), CouponCode: "SAVE100",
	})

	require.ErrorIs(t, err, coupon.ErrPerUserLimitReached)
	require.NotNil(t, repo.created)
	assert.Equal(t, repo.created.ID, repo.statusID)
	assert.Equal(t, StatusCancelled, repo.lastStatus)
}

func TestCreate_PersistError(t *testing.T) {
	repo := &mockBookingRepo{createErr: errors.New("db write failed")}
	svc := newService(repo, &stubCouponRepo{})

	_, err := svc.Create(context.Background(), CreateRequest{
		UserID: "u1", Service: "event", Amount: amt("250"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create booking")
}
