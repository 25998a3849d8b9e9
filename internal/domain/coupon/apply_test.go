package coupon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// memRepo is an in-memory Repository whose Apply mirrors the transactional
// semantics of the Postgres implementation: both limits are re-checked under
// the same lock that protects the usage list and the counter.
type memRepo struct {
	mu     sync.Mutex
	coupon *Coupon
	usages []*Usage
}

func (r *memRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coupon == nil || r.coupon.Code != code {
		return nil, ErrCouponNotFound
	}
	cp := *r.coupon
	return &cp, nil
}

func (r *memRepo) CountUsages(_ context.Context, couponID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(couponID, userID), nil
}

func (r *memRepo) countLocked(couponID, userID string) int {
	n := 0
	for _, u := range r.usages {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n
}

func (r *memRepo) Apply(_ context.Context, u *Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.coupon.UsageLimit > 0 && r.coupon.CurrentUsage >= r.coupon.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.countLocked(u.CouponID, u.UserID) >= r.coupon.UsagePerUser {
		return ErrPerUserLimitReached
	}

	cp := *u
	cp.CreatedAt = time.Now()
	r.usages = append(r.usages, &cp)
	r.coupon.CurrentUsage++
	return nil
}

func (r *memRepo) Create(_ context.Context, c *Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupon = c
	return nil
}

func (r *memRepo) Deactivate(_ context.Context, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupon.Active = false
	return nil
}

func TestApply_PerUserCapUnderConcurrency(t *testing.T) {
	repo := &memRepo{coupon: &Coupon{
		ID: "c1", Code: "ONCE", Kind: DiscountFixed, Value: amt("50"),
		Category: CategoryAll, UsagePerUser: 1, Active: true,
	}}
	e := NewEngine(repo, zap.NewNop())

	const attempts = 32
	var (
		mu        sync.Mutex
		successes int
	)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := e.Apply(ctx, &Usage{
				CouponID:       "c1",
				UserID:         "u1",
				DiscountAmount: amt("50"),
				OrderAmount:    amt("500"),
				FinalAmount:    amt("450"),
			})
			switch {
			case err == nil:
				mu.Lock()
				successes++
				mu.Unlock()
			case errors.Is(err, ErrPerUserLimitReached):
				// expected for the losers of the race
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, successes)
	assert.Len(t, repo.usages, 1)
	assert.Equal(t, 1, repo.coupon.CurrentUsage)
}

func TestApply_GlobalCapUnderConcurrency(t *testing.T) {
	const limit = 5
	repo := &memRepo{coupon: &Coupon{
		ID: "c1", Code: "LIMITED", Kind: DiscountFixed, Value: amt("50"),
		Category: CategoryAll, UsageLimit: limit, UsagePerUser: 1, Active: true,
	}}
	e := NewEngine(repo, zap.NewNop())

	const attempts = 32
	var (
		mu        sync.Mutex
		successes int
	)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < attempts; i++ {
		userID := fmt.Sprintf("u%d", i)
		g.Go(func() error {
			err := e.Apply(ctx, &Usage{
				CouponID:       "c1",
				UserID:         userID,
				DiscountAmount: amt("50"),
				OrderAmount:    amt("500"),
				FinalAmount:    amt("450"),
			})
			switch {
			case err == nil:
				mu.Lock()
				successes++
				mu.Unlock()
			case errors.Is(err, ErrUsageLimitReached):
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, limit, successes)
	assert.Equal(t, limit, repo.coupon.CurrentUsage)
	assert.Len(t, repo.usages, limit)
}

func TestApply_RetryAfterFailureLeavesNoPartialState(t *testing.T) {
	repo := &memRepo{coupon: &Coupon{
		ID: "c1", Code: "ONCE", Kind: DiscountFixed, Value: amt("50"),
		Category: CategoryAll, UsagePerUser: 2, Active: true,
	}}
	e := NewEngine(repo, zap.NewNop())
	ctx := context.Background()

	u := func() *Usage {
		return &Usage{
			CouponID: "c1", UserID: "u1",
			DiscountAmount: amt("50"), OrderAmount: amt("500"), FinalAmount: amt("450"),
		}
	}

	require.NoError(t, e.Apply(ctx, u()))
	require.NoError(t, e.Apply(ctx, u()))
	require.ErrorIs(t, e.Apply(ctx, u()), ErrPerUserLimitReached)

	assert.Len(t, repo.usages, 2)
	assert.Equal(t, 2, repo.coupon.CurrentUsage)
}
