package offers

import (
	"time"

	"gearyard/internal/domain/listings"
)

type OfferPlaced struct {
	OfferID     OfferID
	ListingID   listings.ListingID
	BuyerID     string
	SellerID    string
	AmountCents int64
	At          time.Time
}

func (e OfferPlaced) EventName() string     { return "offer.placed" }
func (e OfferPlaced) AggregateID() string   { return string(e.OfferID) }
func (e OfferPlaced) OccurredAt() time.Time { return e.At }

type OfferAccepted struct {
	OfferID     OfferID
	ListingID   listings.ListingID
	BuyerID     string
	AmountCents int64
	At          time.Time
}

func (e OfferAccepted) EventName() string     { return "offer.accepted" }
func (e OfferAccepted) AggregateID() string   { return string(e.OfferID) }
func (e OfferAccepted) OccurredAt() time.Time { return e.At }

type OfferDeclined struct {
	OfferID   OfferID
	ListingID listings.ListingID
	Reason    string
	At        time.Time
}

func (e OfferDeclined) EventName() string     { return "offer.declined" }
func (e OfferDeclined) AggregateID() string   { return string(e.OfferID) }
func (e OfferDeclined) OccurredAt() time.Time { return e.At }

type OfferCountered struct {
	OfferID     OfferID
	ListingID   listings.ListingID
	AmountCents int64
	At          time.Time
}

func (e OfferCountered) EventName() string     { return "offer.countered" }
func (e OfferCountered) AggregateID() string   { return string(e.OfferID) }
func (e OfferCountered) OccurredAt() time.Time { return e.At }

type OfferWithdrawn struct {
	OfferID   OfferID
	ListingID listings.ListingID
	At        time.Time
}

func (e OfferWithdrawn) EventName() string     { return "offer.withdrawn" }
func (e OfferWithdrawn) AggregateID() string   { return string(e.OfferID) }
func (e OfferWithdrawn) OccurredAt() time.Time { return e.At }

type OfferExpired struct {
	OfferID   OfferID
	ListingID listings.ListingID
	At        time.Time
}

func (e OfferExpired) EventName() string     { return "offer.expired" }
func (e OfferExpired) AggregateID() string   { return string(e.OfferID) }
func (e OfferExpired) OccurredAt() time.Time { return e.At }
