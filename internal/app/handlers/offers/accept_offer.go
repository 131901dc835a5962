package offers

import (
	"context"
	"log/slog"
	"time"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/outbox"
	"gearyard/internal/app/policies"
	"gearyard/internal/app/uow"
	domainoffers "gearyard/internal/domain/offers"
	"gearyard/internal/domain/shared/fault"
)

const acceptOfferKey = "offers.accept"

type AcceptOfferCommand struct {
	OfferID string
	ActorID string
}

func (c AcceptOfferCommand) Key() string { return acceptOfferKey }

type AcceptOfferResult struct {
	OfferID     string `json:"offer_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// AcceptOfferHandler is the seller taking a pending offer. The listing sale
// and the sibling declines ride in the same unit of work as the offer write.
type AcceptOfferHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Notifier   policies.Notifier
	Metrics    TransitionRecorder
	Logger     *slog.Logger
}

func (h *AcceptOfferHandler) Handle(ctx context.Context, cmd AcceptOfferCommand) (*AcceptOfferResult, error) {
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

	offer, err := loadOffer(ctx, unit, domainoffers.OfferID(cmd.OfferID))
	if err != nil {
		return nil, err
	}
	if err := offer.Accept(cmd.ActorID, now); err != nil {
		return nil, err
	}
	saleEvents, err := finalizeSale(ctx, unit, offer, now)
	if err != nil {
		return nil, err
	}
	if err := unit.Offers().Save(ctx, offer); err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: save failed")
	}
	drained := append(drainEvents(&offer.EventRecorder), saleEvents...)
	if err := recordEvents(ctx, h.Outbox, drained); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}

	observe(h.Metrics, domainoffers.ActionAccepted)
	notify(ctx, h.Notifier, h.Logger, policies.OfferNotice{
		ListingID: offer.ListingID,
		BuyerID:   offer.BuyerID,
		SellerID:  offer.SellerID,
		OfferID:   offer.ID,
		Text:      "Your offer of " + formatCents(offer.AmountCents) + " was accepted. The item is yours.",
	})
	return &AcceptOfferResult{OfferID: string(offer.ID), Status: string(offer.Status), AmountCents: offer.AmountCents}, nil
}

var _ commands.Handler[AcceptOfferCommand, *AcceptOfferResult] = (*AcceptOfferHandler)(nil)
