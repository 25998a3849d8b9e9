package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/localmart/coupon-engine/internal/domain/booking"
)

type createBookingRequest struct {
	UserID     string          `json:"user_id"`
	Service    string          `json:"service"`
	Amount     decimal.Decimal `json:"amount"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

type bookingResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Service    string          `json:"service"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CreateBooking finalizes a booking, redeeming the coupon when one is given.
// Coupon rejections use the same 422 taxonomy as validation.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.bookings.Create(r.Context(), booking.CreateRequest{
		UserID:     req.UserID,
		Service:    req.Service,
		Amount:     req.Amount,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrEmptyUser),
			errors.Is(err, booking.ErrInvalidAmount),
			errors.Is(err, booking.ErrUnknownService):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if status, msg, ok := mapCouponError(err); ok {
			writeError(w, status, msg)
			return
		}
		zctx.From(r.Context()).Error("Create booking", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse{
		ID:         b.ID,
		UserID:     b.UserID,
		Service:    b.Service,
		Category:   string(b.Category),
		Amount:     b.Amount,
		Discount:   b.Discount,
		Total:      b.Total,
		CouponCode: b.CouponCode,
		Status:     b.Status,
		CreatedAt:  b.CreatedAt,
	})
}
