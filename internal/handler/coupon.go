package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code        string          `json:"code"`
	UserID      string          `json:"user_id,omitempty"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	Service     string          `json:"service,omitempty"`
}

type validateCouponResponse struct {
	CouponID       string          `json:"coupon_id"`
	Code           string          `json:"code"`
	Title          string          `json:"title"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OrderAmount    decimal.Decimal `json:"order_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// ValidateCoupon previews a coupon against an order context without
// committing anything. Rejections come back as 422 with the reason.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.OrderAmount.IsPositive() {
		writeError(w, http.StatusBadRequest, "order_amount must be greater than 0")
		return
	}

	result, err := h.engine.Validate(r.Context(), coupon.ValidateRequest{
		Code:        req.Code,
		UserID:      req.UserID,
		OrderAmount: req.OrderAmount,
		Service:     req.Service,
	})
	if err != nil {
		if status, msg, ok := mapCouponError(err); ok {
			writeError(w, status, msg)
			return
		}
		zctx.From(r.Context()).Error("Validate coupon", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, validateCouponResponse{
		CouponID:       result.CouponID,
		Code:           result.Code,
		Title:          result.Title,
		DiscountAmount: result.DiscountAmount,
		OrderAmount:    result.OrderAmount,
		FinalAmount:    result.FinalAmount,
	})
}

// mapCouponError maps the coupon error taxonomy to an HTTP status and
// user-facing message. Unrecognized errors report ok=false and are treated
// as internal.
func mapCouponError(err error) (status int, message string, ok bool) {
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrPerUserLimitReached),
		errors.Is(err, coupon.ErrCategoryMismatch):
		return http.StatusUnprocessableEntity, err.Error(), true
	}

	var minErr *coupon.BelowMinimumError
	if errors.As(err, &minErr) {
		return http.StatusUnprocessableEntity, minErr.Error(), true
	}
	return 0, "", false
}
