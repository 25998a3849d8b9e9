//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestAdminCreateCoupon_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/admin/coupons", createCouponRequest{
		Code:  "NOAUTH10",
		Kind:  "percentage",
		Value: "10",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminCreateCoupon_InvalidKey(t *testing.T) {
	resp := doPostWithAuth(t, "/api/admin/coupons", createCouponRequest{
		Code:  "BADKEY10",
		Kind:  "percentage",
		Value: "10",
	}, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminCreateCoupon_Lifecycle(t *testing.T) {
	// Create a fresh coupon, use it, then deactivate it.
	resp := doPostWithAuth(t, "/api/admin/coupons", createCouponRequest{
		Code:         "EVENTS25",
		Title:        "25% off event tickets",
		Kind:         "percentage",
		Value:        "25",
		MaxDiscount:  "500",
		Category:     "Events",
		UsagePerUser: 2,
	}, adminAPIKey)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[couponResponse](t, resp)
	resp.Body.Close()

	if !created.Active {
		t.Error("created coupon should be active")
	}
	if created.Category != "Events" {
		t.Errorf("category: got %q, want Events", created.Category)
	}

	resp = doPost(t, "/api/coupons/validate", validateRequest{
		Code:        "EVENTS25",
		OrderAmount: "1000",
		Service:     "events",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d", resp.StatusCode)
	}
	quoted := decodeJSON[validateResponse](t, resp)
	resp.Body.Close()

	if quoted.DiscountAmount != "250" {
		t.Errorf("discount: got %q, want 250", quoted.DiscountAmount)
	}

	resp = doPostWithAuth(t, "/api/admin/coupons/EVENTS25/deactivate", struct{}{}, adminAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d", resp.StatusCode)
	}

	// Deactivated coupons validate exactly like unknown codes.
	resp = doPost(t, "/api/coupons/validate", validateRequest{
		Code:        "EVENTS25",
		OrderAmount: "1000",
		Service:     "events",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("revalidate: expected 422, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "coupon not found" {
		t.Errorf("message: got %q", body.Message)
	}
}

func TestAdminDeactivateCoupon_Unknown(t *testing.T) {
	resp := doPostWithAuth(t, "/api/admin/coupons/NOSUCHCODE/deactivate", struct{}{}, adminAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
