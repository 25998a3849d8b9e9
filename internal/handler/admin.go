package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

type createCouponRequest struct {
	Code           string          `json:"code"`
	Title          string          `json:"title"`
	Subtitle       string          `json:"subtitle,omitempty"`
	Description    string          `json:"description,omitempty"`
	Kind           string          `json:"kind"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscount    decimal.Decimal `json:"max_discount,omitempty"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	Category       string          `json:"category,omitempty"`
	UsageLimit     int             `json:"usage_limit,omitempty"`
	UsagePerUser   int             `json:"usage_per_user,omitempty"`
}

type couponResponse struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

// CreateCoupon registers a new coupon definition.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := couponFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		zctx.From(r.Context()).Error("Create coupon", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, couponResponse{
		ID:       c.ID,
		Code:     c.Code,
		Title:    c.Title,
		Kind:     string(c.Kind),
		Category: string(c.Category),
		Active:   c.Active,
	})
}

// DeactivateCoupon clears the active flag of a coupon. Coupons are never
// deleted so their usage history stays referable.
func (h *Handler) DeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.coupons.Deactivate(r.Context(), code); err != nil {
		if errors.Is(err, coupon.ErrCouponNotFound) {
			writeError(w, http.StatusNotFound, coupon.ErrCouponNotFound.Error())
			return
		}
		zctx.From(r.Context()).Error("Deactivate coupon", zap.Error(err), zap.String("code", code))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func couponFromRequest(req createCouponRequest) (*coupon.Coupon, error) {
	if req.Code == "" {
		return nil, errors.New("code is required")
	}

	kind := coupon.DiscountKind(req.Kind)
	if kind != coupon.DiscountPercentage && kind != coupon.DiscountFixed {
		return nil, errors.Errorf("unsupported discount kind %q", req.Kind)
	}
	if !req.Value.IsPositive() {
		return nil, errors.New("value must be greater than 0")
	}
	if kind == coupon.DiscountPercentage && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("percentage value must not exceed 100")
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && req.ValidUntil.Before(*req.ValidFrom) {
		return nil, errors.New("valid_until must not precede valid_from")
	}

	category, ok := coupon.ParseCategory(req.Category)
	if !ok {
		return nil, errors.Errorf("unknown category %q", req.Category)
	}

	perUser := req.UsagePerUser
	if perUser <= 0 {
		perUser = 1
	}

	return &coupon.Coupon{
		ID:             uuid.NewString(),
		Code:           req.Code,
		Title:          req.Title,
		Subtitle:       req.Subtitle,
		Description:    req.Description,
		Kind:           kind,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		Category:       category,
		UsageLimit:     req.UsageLimit,
		UsagePerUser:   perUser,
		Active:         true,
	}, nil
}
