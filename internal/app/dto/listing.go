package dto

import (
	"time"

	domainlistings "gearyard/internal/domain/listings"
)

// OfferPolicy is the public snapshot of the seller's negotiation settings.
// The minimum threshold is deliberately omitted so buyers cannot read the
// seller's floor.
type OfferPolicy struct {
	AcceptsOffers bool `json:"accepts_offers"`
}

type Listing struct {
	ID             string      `json:"id"`
	SellerID       string      `json:"seller_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	Brand          string      `json:"brand,omitempty"`
	Condition      string      `json:"condition"`
	PriceCents     int64       `json:"price_cents"`
	Policy         OfferPolicy `json:"offer_policy"`
	State          string      `json:"state"`
	Photos         []string    `json:"photos"`
	SoldPriceCents int64       `json:"sold_price_cents,omitempty"`
	SoldAt         *time.Time  `json:"sold_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// SellerListing extends Listing with the private negotiation thresholds. Only
// the owner sees this shape.
type SellerListing struct {
	Listing
	MinimumCents    int64  `json:"minimum_offer_cents,omitempty"`
	AutoAcceptCents int64  `json:"auto_accept_cents,omitempty"`
	SoldTo          string `json:"sold_to,omitempty"`
}

type ListingPage struct {
	Items []Listing `json:"items"`
	Total int       `json:"total"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	view := Listing{
		ID:          string(l.ID),
		SellerID:    string(l.Seller),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Brand:       l.Brand,
		Condition:   string(l.Condition),
		PriceCents:  l.PriceCents,
		Policy:      OfferPolicy{AcceptsOffers: l.Policy.AcceptsOffers},
		State:       string(l.State),
		Photos:      append([]string(nil), l.Photos...),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.State == domainlistings.ListingSold {
		view.SoldPriceCents = l.SoldPriceCents
		at := l.SoldAt
		view.SoldAt = &at
	}
	return view
}

func MapSellerListing(l *domainlistings.Listing) SellerListing {
	return SellerListing{
		Listing:         MapListing(l),
		MinimumCents:    l.Policy.MinimumCents,
		AutoAcceptCents: l.Policy.AutoAcceptCents,
		SoldTo:          l.SoldTo,
	}
}

func NewListingPage(items []*domainlistings.Listing, total int) *ListingPage {
	page := &ListingPage{Items: make([]Listing, 0, len(items)), Total: total}
	for _, item := range items {
		page.Items = append(page.Items, MapListing(item))
	}
	return page
}
