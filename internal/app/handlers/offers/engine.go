package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gearyard/internal/app/outbox"
	"gearyard/internal/app/policies"
	"gearyard/internal/app/uow"
	domainoffers "gearyard/internal/domain/offers"
	"gearyard/internal/domain/shared/events"
	"gearyard/internal/domain/shared/fault"
)

var ErrUnitOfWorkRequired = errors.New("offers: unit of work required")

// TransitionRecorder feeds the metrics layer; nil recorders are ignored.
type TransitionRecorder interface {
	ObserveOfferTransition(action string)
}

// beginUnit reuses a unit of work from context when the transaction
// middleware provided one, otherwise starts a managed unit from the factory.
func beginUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, bool, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, false, nil
	}
	if factory == nil {
		return nil, ctx, false, ErrUnitOfWorkRequired
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, ctx, false, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, uow.ContextWithUnitOfWork(execCtx, unit), true, nil
}

// loadOffer fetches an offer and normalizes missing-document errors.
func loadOffer(ctx context.Context, unit uow.UnitOfWork, id domainoffers.OfferID) (*domainoffers.Offer, error) {
	offer, err := unit.Offers().ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainoffers.ErrOfferNotFound) {
			return nil, err
		}
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: load failed")
	}
	return offer, nil
}

// finalizeSale applies the cascading effects of an accepted offer: the
// listing is sold to the buyer at the accepted amount and every other pending
// offer on the listing is declined in the same logical operation.
func finalizeSale(ctx context.Context, unit uow.UnitOfWork, offer *domainoffers.Offer, now time.Time) ([]events.DomainEvent, error) {
	listing, err := unit.Listings().ByID(ctx, offer.ListingID)
	if err != nil {
		return nil, fault.Wrap(fault.NotFound, err, "offers: listing not found")
	}
	if err := listing.MarkSold(offer.BuyerID, offer.AmountCents, now); err != nil {
		return nil, fault.Wrap(fault.InvalidState, err, "offers: listing cannot be sold")
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: listing save failed")
	}
	drained := drainEvents(&listing.EventRecorder)

	siblings, err := unit.Offers().PendingByListing(ctx, offer.ListingID)
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: sibling lookup failed")
	}
	for _, sibling := range siblings {
		if sibling.ID == offer.ID {
			continue
		}
		if err := sibling.Decline(sibling.SellerID, "listing sold", now); err != nil {
			continue
		}
		if err := unit.Offers().Save(ctx, sibling); err != nil {
			return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: sibling decline failed")
		}
		drained = append(drained, drainEvents(&sibling.EventRecorder)...)
	}
	return drained, nil
}

func drainEvents(rec *events.EventRecorder) []events.DomainEvent {
	out := rec.PendingEvents()
	rec.ClearEvents()
	return out
}

func recordEvents(ctx context.Context, box outbox.Outbox, evs []events.DomainEvent) error {
	return outbox.RecordDomainEvents(ctx, box, outbox.JSONEventEncoder{}, evs)
}

// notify appends the negotiation update to the buyer/seller conversation.
// Notifications are best-effort: failures are logged and swallowed, the
// transition stays committed.
func notify(ctx context.Context, notifier policies.Notifier, logger *slog.Logger, notice policies.OfferNotice) {
	if notifier == nil {
		return
	}
	if err := notifier.NotifyOffer(ctx, notice); err != nil && logger != nil {
		logger.Warn("offer notification failed", "offer_id", notice.OfferID, "error", err)
	}
}

func observe(rec TransitionRecorder, action string) {
	if rec != nil {
		rec.ObserveOfferTransition(action)
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
