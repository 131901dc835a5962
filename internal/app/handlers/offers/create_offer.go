package offers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/middleware"
	"gearyard/internal/app/outbox"
	"gearyard/internal/app/policies"
	"gearyard/internal/app/uow"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	"gearyard/internal/domain/shared/fault"
)

const createOfferKey = "offers.create"

type CreateOfferCommand struct {
	CommandID       string
	ListingID       string
	BuyerID         string
	AmountCents     int64
	Message         string
	IdempotencyKeyV string
}

func (c CreateOfferCommand) Key() string { return createOfferKey }

func (c CreateOfferCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateOfferCommand) ResultPrototype() any { return &CreateOfferResult{} }

type CreateOfferResult struct {
	OfferID string `json:"offer_id"`
	Status  string `json:"status"`
}

// CreateOfferHandler opens a negotiation. The seller's snapshotted thresholds
// are evaluated synchronously before any notification goes out, so the buyer
// never observes a transient pending state when an auto-response applies.
type CreateOfferHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Notifier   policies.Notifier
	Metrics    TransitionRecorder
	Logger     *slog.Logger
}

func (h *CreateOfferHandler) Handle(ctx context.Context, cmd CreateOfferCommand) (*CreateOfferResult, error) {
	unit, ctx, managed, err := beginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	committed := false
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}
	now := time.Now().UTC()

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, fault.Wrap(fault.NotFound, err, "offers: listing not found")
	}
	if !listing.AvailableForOffers() {
		return nil, domainoffers.ErrListingUnavailable
	}
	if cmd.BuyerID == string(listing.Seller) {
		return nil, domainoffers.ErrOwnListing
	}
	if err := h.checkRepeatGuard(ctx, unit, listing.ID, cmd.BuyerID, now); err != nil {
		return nil, err
	}

	offer, err := domainoffers.NewOffer(domainoffers.CreateParams{
		ID:                 domainoffers.OfferID(cmd.CommandID),
		ListingID:          listing.ID,
		BuyerID:            cmd.BuyerID,
		SellerID:           string(listing.Seller),
		AmountCents:        cmd.AmountCents,
		OriginalPriceCents: listing.PriceCents,
		AutoAcceptCents:    listing.Policy.AutoAcceptCents,
		MinimumCents:       listing.Policy.MinimumCents,
		Message:            cmd.Message,
		Now:                now,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := offer.AutoEvaluate(now)
	if err != nil {
		return nil, err
	}

	drained := drainEvents(&offer.EventRecorder)
	if outcome == domainoffers.AutoAccepted {
		saleEvents, err := finalizeSale(ctx, unit, offer, now)
		if err != nil {
			return nil, err
		}
		drained = append(drained, saleEvents...)
	}

	if err := unit.Offers().Save(ctx, offer); err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: save failed")
	}
	if err := recordEvents(ctx, h.Outbox, drained); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}

	observe(h.Metrics, domainoffers.ActionCreated)
	switch outcome {
	case domainoffers.AutoAccepted:
		observe(h.Metrics, domainoffers.ActionAccepted)
		notify(ctx, h.Notifier, h.Logger, policies.OfferNotice{
			ListingID: offer.ListingID,
			BuyerID:   offer.BuyerID,
			SellerID:  offer.SellerID,
			OfferID:   offer.ID,
			Text:      "Offer of " + formatCents(offer.AmountCents) + " was automatically accepted. The item is sold.",
		})
	case domainoffers.AutoDeclined:
		observe(h.Metrics, domainoffers.ActionDeclined)
		notify(ctx, h.Notifier, h.Logger, policies.OfferNotice{
			ListingID: offer.ListingID,
			BuyerID:   offer.BuyerID,
			SellerID:  offer.SellerID,
			OfferID:   offer.ID,
			Text:      "Offer of " + formatCents(offer.AmountCents) + " was automatically declined.",
		})
	default:
		notify(ctx, h.Notifier, h.Logger, policies.OfferNotice{
			ListingID: offer.ListingID,
			BuyerID:   offer.BuyerID,
			SellerID:  offer.SellerID,
			OfferID:   offer.ID,
			Text:      "New offer of " + formatCents(offer.AmountCents) + " on your listing.",
		})
	}

	return &CreateOfferResult{OfferID: string(offer.ID), Status: string(offer.Status)}, nil
}

// checkRepeatGuard enforces the one-active-offer invariant and the repeat
// cooldown: a buyer with a recently created offer on the listing must wait
// out the window unless that offer is no longer active.
func (h *CreateOfferHandler) checkRepeatGuard(ctx context.Context, unit uow.UnitOfWork, listingID domainlistings.ListingID, buyerID string, now time.Time) error {
	active, err := unit.Offers().ActiveByListingAndBuyer(ctx, listingID, buyerID)
	if err != nil && !errors.Is(err, domainoffers.ErrOfferNotFound) {
		return fault.Wrap(fault.UpstreamFailure, err, "offers: active lookup failed")
	}
	if active != nil {
		if wait := active.CreatedAt.Add(domainoffers.RepeatCooldown).Sub(now); wait > 0 {
			return fault.New(fault.RateLimited, "offers: you already have an active offer on this listing; wait %s or withdraw it", wait.Round(time.Minute))
		}
		return domainoffers.ErrActiveOfferExists
	}
	return nil
}

var _ commands.Handler[CreateOfferCommand, *CreateOfferResult] = (*CreateOfferHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateOfferCommand)(nil)
