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

const (
	declineOfferKey   = "offers.decline"
	counterOfferKey   = "offers.counter"
	withdrawOfferKey  = "offers.withdraw"
	respondCounterKey = "offers.respond_counter"
)

type DeclineOfferCommand struct {
	OfferID string
	ActorID string
	Reason  string
}

func (c DeclineOfferCommand) Key() string { return declineOfferKey }

type CounterOfferCommand struct {
	OfferID     string
	ActorID     string
	AmountCents int64
	Message     string
}

func (c CounterOfferCommand) Key() string { return counterOfferKey }

type WithdrawOfferCommand struct {
	OfferID string
	ActorID string
}

func (c WithdrawOfferCommand) Key() string { return withdrawOfferKey }

type RespondCounterCommand struct {
	OfferID string
	ActorID string
	Accept  bool
	Reason  string
}

func (c RespondCounterCommand) Key() string { return respondCounterKey }

type TransitionResult struct {
	OfferID     string `json:"offer_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// RespondHandler covers the seller decline/counter, the buyer withdraw, and
// the buyer's answer to a counter. Accept has its own handler because of its
// cascading sale effects; accepting a counter reuses the same finalize path.
type RespondHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Notifier   policies.Notifier
	Metrics    TransitionRecorder
	Logger     *slog.Logger
}

func (h *RespondHandler) HandleDecline(ctx context.Context, cmd DeclineOfferCommand) (*TransitionResult, error) {
	return h.transition(ctx, domainoffers.OfferID(cmd.OfferID), func(offer *domainoffers.Offer, now time.Time) (string, error) {
		if err := offer.Decline(cmd.ActorID, cmd.Reason, now); err != nil {
			return "", err
		}
		text := "Your offer of " + formatCents(offer.AmountCents) + " was declined."
		if cmd.Reason != "" {
			text += " Reason: " + cmd.Reason
		}
		observe(h.Metrics, domainoffers.ActionDeclined)
		return text, nil
	}, false)
}

func (h *RespondHandler) HandleCounter(ctx context.Context, cmd CounterOfferCommand) (*TransitionResult, error) {
	return h.transition(ctx, domainoffers.OfferID(cmd.OfferID), func(offer *domainoffers.Offer, now time.Time) (string, error) {
		if err := offer.PlaceCounter(cmd.ActorID, cmd.AmountCents, cmd.Message, now); err != nil {
			return "", err
		}
		observe(h.Metrics, domainoffers.ActionCountered)
		return "The seller countered with " + formatCents(cmd.AmountCents) + ". You have 48 hours to respond.", nil
	}, false)
}

func (h *RespondHandler) HandleWithdraw(ctx context.Context, cmd WithdrawOfferCommand) (*TransitionResult, error) {
	return h.transition(ctx, domainoffers.OfferID(cmd.OfferID), func(offer *domainoffers.Offer, now time.Time) (string, error) {
		if err := offer.Withdraw(cmd.ActorID, now); err != nil {
			return "", err
		}
		observe(h.Metrics, domainoffers.ActionWithdrawn)
		return "The buyer withdrew their offer of " + formatCents(offer.AmountCents) + ".", nil
	}, false)
}

func (h *RespondHandler) HandleRespondCounter(ctx context.Context, cmd RespondCounterCommand) (*TransitionResult, error) {
	if cmd.Accept {
		return h.transition(ctx, domainoffers.OfferID(cmd.OfferID), func(offer *domainoffers.Offer, now time.Time) (string, error) {
			if err := offer.AcceptCounter(cmd.ActorID, now); err != nil {
				return "", err
			}
			observe(h.Metrics, domainoffers.ActionAccepted)
			return "The buyer accepted your counter of " + formatCents(offer.AmountCents) + ". The item is sold.", nil
		}, true)
	}
	return h.transition(ctx, domainoffers.OfferID(cmd.OfferID), func(offer *domainoffers.Offer, now time.Time) (string, error) {
		if err := offer.DeclineCounter(cmd.ActorID, cmd.Reason, now); err != nil {
			return "", err
		}
		observe(h.Metrics, domainoffers.ActionDeclined)
		return "The buyer declined your counter-offer.", nil
	}, false)
}

// transition runs one guarded offer mutation inside a unit of work. When
// sells is true the listing sale cascade runs after the mutation succeeds.
func (h *RespondHandler) transition(ctx context.Context, id domainoffers.OfferID, mutate func(*domainoffers.Offer, time.Time) (string, error), sells bool) (*TransitionResult, error) {
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

	offer, err := loadOffer(ctx, unit, id)
	if err != nil {
		return nil, err
	}
	text, err := mutate(offer, now)
	if err != nil {
		return nil, err
	}
	drained := drainEvents(&offer.EventRecorder)
	if sells {
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

	notify(ctx, h.Notifier, h.Logger, policies.OfferNotice{
		ListingID: offer.ListingID,
		BuyerID:   offer.BuyerID,
		SellerID:  offer.SellerID,
		OfferID:   offer.ID,
		Text:      text,
	})
	return &TransitionResult{OfferID: string(offer.ID), Status: string(offer.Status), AmountCents: offer.AmountCents}, nil
}
