package policies

import (
	"context"

	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
)

// OfferNotice announces one negotiation transition to the buyer/seller
// conversation for the listing.
type OfferNotice struct {
	ListingID domainlistings.ListingID
	BuyerID   string
	SellerID  string
	OfferID   domainoffers.OfferID
	Text      string
}

// Notifier appends negotiation updates to the messaging subsystem. Delivery
// is best-effort: implementations must not fail the offer transition, and
// callers log and swallow any error.
type Notifier interface {
	NotifyOffer(ctx context.Context, notice OfferNotice) error
}

// NopNotifier discards notices; used in tests and when messaging is down.
type NopNotifier struct{}

func (NopNotifier) NotifyOffer(context.Context, OfferNotice) error { return nil }
