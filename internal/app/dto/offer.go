package dto

import (
	"time"

	domainoffers "gearyard/internal/domain/offers"
)

type CounterOffer struct {
	AmountCents int64     `json:"amount_cents"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type OfferHistoryEntry struct {
	Action      string    `json:"action"`
	AmountCents int64     `json:"amount_cents"`
	Message     string    `json:"message,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	At          time.Time `json:"at"`
}

type Offer struct {
	ID                 string              `json:"id"`
	ListingID          string              `json:"listing_id"`
	BuyerID            string              `json:"buyer_id"`
	SellerID           string              `json:"seller_id"`
	AmountCents        int64               `json:"amount_cents"`
	OriginalPriceCents int64               `json:"original_price_cents"`
	Status             string              `json:"status"`
	Counter            *CounterOffer       `json:"counter_offer,omitempty"`
	ExpiresAt          time.Time           `json:"expires_at"`
	IsExpired          bool                `json:"is_expired"`
	AcceptedAt         *time.Time          `json:"accepted_at,omitempty"`
	DeclinedAt         *time.Time          `json:"declined_at,omitempty"`
	History            []OfferHistoryEntry `json:"history"`
	CreatedAt          time.Time           `json:"created_at"`
}

type OfferList struct {
	Items []Offer `json:"items"`
	Total int     `json:"total"`
}

func NewOffer(o *domainoffers.Offer, now time.Time) Offer {
	view := Offer{
		ID:                 string(o.ID),
		ListingID:          string(o.ListingID),
		BuyerID:            o.BuyerID,
		SellerID:           o.SellerID,
		AmountCents:        o.AmountCents,
		OriginalPriceCents: o.OriginalPriceCents,
		Status:             string(o.Status),
		ExpiresAt:          o.ExpiresAt,
		IsExpired:          o.Status.Active() && o.IsExpired(now),
		CreatedAt:          o.CreatedAt,
	}
	if o.Counter != nil {
		view.Counter = &CounterOffer{
			AmountCents: o.Counter.AmountCents,
			Message:     o.Counter.Message,
			CreatedAt:   o.Counter.CreatedAt,
		}
	}
	if !o.AcceptedAt.IsZero() {
		at := o.AcceptedAt
		view.AcceptedAt = &at
	}
	if !o.DeclinedAt.IsZero() {
		at := o.DeclinedAt
		view.DeclinedAt = &at
	}
	view.History = make([]OfferHistoryEntry, 0, len(o.History))
	for _, entry := range o.History {
		view.History = append(view.History, OfferHistoryEntry{
			Action:      entry.Action,
			AmountCents: entry.AmountCents,
			Message:     entry.Message,
			ActorID:     entry.ActorID,
			At:          entry.At,
		})
	}
	return view
}

func NewOfferList(items []*domainoffers.Offer, now time.Time) *OfferList {
	list := &OfferList{Items: make([]Offer, 0, len(items)), Total: len(items)}
	for _, item := range items {
		list.Items = append(list.Items, NewOffer(item, now))
	}
	return list
}
