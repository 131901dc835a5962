package payments

import (
	"context"
	"log/slog"

	"gearyard/internal/app/policies"
	promoservice "gearyard/internal/app/services/promo"
	domainlistings "gearyard/internal/domain/listings"
	"gearyard/internal/domain/shared/fault"
)

var (
	ErrNotSold  = fault.New(fault.InvalidState, "payments: listing is not sold yet")
	ErrNotBuyer = fault.New(fault.Forbidden, "payments: only the winning buyer may pay")
)

const defaultCurrency = "USD"

type Service struct {
	Listings  domainlistings.ListingRepository
	Processor policies.PaymentsPort
	Promos    *promoservice.Service // optional
	Logger    *slog.Logger
}

type CheckoutParams struct {
	ListingID domainlistings.ListingID
	BuyerID   string
	PromoCode string
	Currency  string
}

type Checkout struct {
	Intent          policies.PaymentIntent
	PriceCents      int64
	DiscountedCents int64
	PromoCode       string
}

// CreateCheckout creates a payment intent for the negotiated sale price,
// applying an optional promo code from the listing's seller.
func (s *Service) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	listing, err := s.Listings.ByID(ctx, params.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.State != domainlistings.ListingSold {
		return nil, ErrNotSold
	}
	if listing.SoldTo != params.BuyerID {
		return nil, ErrNotBuyer
	}

	price := listing.SoldPriceCents
	amount := price
	if params.PromoCode != "" {
		if s.Promos == nil {
			return nil, fault.New(fault.ValidationFailed, "payments: promo codes are not enabled")
		}
		amount, err = s.Promos.Redeem(ctx, params.PromoCode, string(listing.Seller), price)
		if err != nil {
			return nil, err
		}
	}

	currency := params.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	intent, err := s.Processor.CreateIntent(ctx, string(listing.ID), amount, currency, map[string]string{
		"listing_id": string(listing.ID),
		"buyer_id":   params.BuyerID,
		"seller_id":  string(listing.Seller),
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("payment intent created",
			"listing_id", listing.ID, "buyer_id", params.BuyerID,
			"amount_cents", amount, "intent_id", intent.ID)
	}
	return &Checkout{
		Intent:          intent,
		PriceCents:      price,
		DiscountedCents: amount,
		PromoCode:       params.PromoCode,
	}, nil
}
