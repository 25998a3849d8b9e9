package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/localmart/coupon-engine/internal/domain/booking"
	"github.com/localmart/coupon-engine/internal/domain/coupon"
)

// Handler exposes the coupon and booking API over HTTP, delegating business
// logic to the coupon engine and the booking service.
type Handler struct {
	engine   *coupon.Engine
	bookings *booking.Service
	coupons  coupon.Repository
	lg       *zap.Logger
}

// New constructs a Handler with the required domain dependencies. The coupon
// repository is used directly only by the administrative endpoints.
func New(engine *coupon.Engine, bookings *booking.Service, coupons coupon.Repository, lg *zap.Logger) *Handler {
	return &Handler{
		engine:   engine,
		bookings: bookings,
		coupons:  coupons,
		lg:       lg,
	}
}

// Routes mounts all API routes. Admin routes are wrapped with the given
// authentication middleware.
func (h *Handler) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/coupons/validate", h.ValidateCoupon)
		r.Post("/bookings", h.CreateBooking)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth)
			r.Post("/coupons", h.CreateCoupon)
			r.Post("/coupons/{code}/deactivate", h.DeactivateCoupon)
		})
	})
	return r
}
