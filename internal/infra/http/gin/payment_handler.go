package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	paymentsvc "gearyard/internal/app/services/payments"
	domainlistings "gearyard/internal/domain/listings"
)

type PaymentHTTP interface {
	Checkout(c *gin.Context)
}

type PaymentHandler struct {
	Service *paymentsvc.Service
	Logger  *slog.Logger
}

type checkoutRequest struct {
	ListingID string `json:"listing_id"`
	PromoCode string `json:"promo_code"`
	Currency  string `json:"currency"`
}

type checkoutResponse struct {
	IntentID        string `json:"intent_id"`
	ClientSecret    string `json:"client_secret"`
	PriceCents      int64  `json:"price_cents"`
	DiscountedCents int64  `json:"discounted_cents"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	PromoCode       string `json:"promo_code,omitempty"`
}

func (h PaymentHandler) Checkout(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ListingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}
	checkout, err := h.Service.CreateCheckout(c.Request.Context(), paymentsvc.CheckoutParams{
		ListingID: domainlistings.ListingID(req.ListingID),
		BuyerID:   user.ID,
		PromoCode: req.PromoCode,
		Currency:  req.Currency,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{
		IntentID:        checkout.Intent.ID,
		ClientSecret:    checkout.Intent.ClientSecret,
		PriceCents:      checkout.PriceCents,
		DiscountedCents: checkout.DiscountedCents,
		Currency:        checkout.Intent.Currency,
		Status:          checkout.Intent.Status,
		PromoCode:       checkout.PromoCode,
	})
}

var _ PaymentHTTP = PaymentHandler{}
