package offers

import (
	"context"
	"time"

	"gearyard/internal/app/dto"
	"gearyard/internal/app/uow"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	"gearyard/internal/domain/shared/fault"
)

const (
	listReceivedKey = "offers.list_received"
	listSentKey     = "offers.list_sent"
	getOfferKey     = "offers.get"
)

type ListReceivedQuery struct {
	SellerID  string
	Status    string
	ListingID string
	Limit     int
}

func (q ListReceivedQuery) Key() string { return listReceivedKey }

type ListSentQuery struct {
	BuyerID   string
	Status    string
	ListingID string
	Limit     int
}

func (q ListSentQuery) Key() string { return listSentKey }

type GetOfferQuery struct {
	OfferID string
	ActorID string
}

func (q GetOfferQuery) Key() string { return getOfferKey }

// ListHandler serves the sent/received views. Expiry is reported from the
// deadline, not the status field, so a stale pending offer already reads as
// expired before the sweep flips it.
type ListHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListHandler) HandleReceived(ctx context.Context, q ListReceivedQuery) (*dto.OfferList, error) {
	unit, ctx, managed, err := beginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if managed {
		defer func() { _ = unit.Rollback(ctx) }()
	}
	items, err := unit.Offers().ListBySeller(ctx, q.SellerID, domainoffers.ListFilter{
		Status:    domainoffers.Status(q.Status),
		ListingID: domainlistings.ListingID(q.ListingID),
		Limit:     q.Limit,
	})
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: list failed")
	}
	return dto.NewOfferList(items, time.Now()), nil
}

func (h *ListHandler) HandleSent(ctx context.Context, q ListSentQuery) (*dto.OfferList, error) {
	unit, ctx, managed, err := beginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if managed {
		defer func() { _ = unit.Rollback(ctx) }()
	}
	items, err := unit.Offers().ListByBuyer(ctx, q.BuyerID, domainoffers.ListFilter{
		Status:    domainoffers.Status(q.Status),
		ListingID: domainlistings.ListingID(q.ListingID),
		Limit:     q.Limit,
	})
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: list failed")
	}
	return dto.NewOfferList(items, time.Now()), nil
}

func (h *ListHandler) HandleGet(ctx context.Context, q GetOfferQuery) (*dto.Offer, error) {
	unit, ctx, managed, err := beginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if managed {
		defer func() { _ = unit.Rollback(ctx) }()
	}
	offer, err := loadOffer(ctx, unit, domainoffers.OfferID(q.OfferID))
	if err != nil {
		return nil, err
	}
	if q.ActorID != offer.BuyerID && q.ActorID != offer.SellerID {
		return nil, fault.New(fault.Forbidden, "offers: only negotiation parties may view this offer")
	}
	view := dto.NewOffer(offer, time.Now())
	return &view, nil
}
