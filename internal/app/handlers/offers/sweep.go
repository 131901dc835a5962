package offers

import (
	"context"
	"log/slog"
	"time"

	"gearyard/internal/app/outbox"
	"gearyard/internal/app/policies"
	"gearyard/internal/app/uow"
	domainoffers "gearyard/internal/domain/offers"
	"gearyard/internal/domain/shared/fault"
)

const sweepBatchSize = 100

// SweepHandler expires pending offers whose deadline passed. It runs from
// the periodic sweep worker and from the admin trigger. Re-expiring an
// already-expired offer is a no-op, so overlapping runs are harmless.
type SweepHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Notifier   policies.Notifier
	Metrics    TransitionRecorder
	Logger     *slog.Logger
}

type SweepResult struct {
	Expired int `json:"expired"`
}

func (h *SweepHandler) SweepExpired(ctx context.Context, now time.Time) (*SweepResult, error) {
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
	now = now.UTC()

	stale, err := unit.Offers().ExpiredPending(ctx, now, sweepBatchSize)
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamFailure, err, "offers: expired lookup failed")
	}

	result := &SweepResult{}
	notices := make([]policies.OfferNotice, 0, len(stale))
	for _, offer := range stale {
		if err := offer.Expire(now); err != nil {
			continue
		}
		if offer.Status != domainoffers.StatusExpired {
			continue
		}
		if err := unit.Offers().Save(ctx, offer); err != nil {
			// Another sweep or a user action won the write; skip, the next
			// run re-reads current state.
			if h.Logger != nil {
				h.Logger.Debug("expire save skipped", "offer_id", offer.ID, "error", err)
			}
			continue
		}
		if err := recordEvents(ctx, h.Outbox, drainEvents(&offer.EventRecorder)); err != nil {
			return nil, err
		}
		observe(h.Metrics, domainoffers.ActionExpired)
		result.Expired++
		notices = append(notices, policies.OfferNotice{
			ListingID: offer.ListingID,
			BuyerID:   offer.BuyerID,
			SellerID:  offer.SellerID,
			OfferID:   offer.ID,
			Text:      "Your offer of " + formatCents(offer.AmountCents) + " expired without a response.",
		})
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}

	for _, notice := range notices {
		notify(ctx, h.Notifier, h.Logger, notice)
	}
	return result, nil
}
