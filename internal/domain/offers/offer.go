package offers

import (
	"context"
	"strings"
	"time"

	"gearyard/internal/domain/listings"
	"gearyard/internal/domain/shared/events"
	"gearyard/internal/domain/shared/fault"
)

var (
	ErrOfferNotFound      = fault.New(fault.NotFound, "offers: not found")
	ErrInvalidAmount      = fault.New(fault.ValidationFailed, "offers: amount must be positive")
	ErrInvalidTransition  = fault.New(fault.InvalidState, "offers: transition not allowed from current status")
	ErrOfferExpired       = fault.New(fault.InvalidState, "offers: offer has expired")
	ErrCounterOutOfRange  = fault.New(fault.ValidationFailed, "offers: counter must exceed the offer and not exceed the listing price")
	ErrNotSeller          = fault.New(fault.Forbidden, "offers: only the seller may perform this action")
	ErrNotBuyer           = fault.New(fault.Forbidden, "offers: only the buyer may perform this action")
	ErrCounterMissing     = fault.New(fault.InvalidState, "offers: no counter-offer to respond to")
	ErrOwnListing         = fault.New(fault.ValidationFailed, "offers: cannot make an offer on your own listing")
	ErrActiveOfferExists  = fault.New(fault.ValidationFailed, "offers: an active offer already exists for this listing")
	ErrOfferCooldown      = fault.New(fault.RateLimited, "offers: wait before making another offer on this listing")
	ErrListingUnavailable = fault.New(fault.ValidationFailed, "offers: listing is not open to offers")
)

const (
	// OfferTTL is how long an offer stays open before it can expire. The
	// deadline resets when the seller issues a counter.
	OfferTTL = 48 * time.Hour
	// RepeatCooldown is how long a buyer waits after their latest offer on a
	// listing before placing a new one, unless that offer is no longer active.
	RepeatCooldown = 24 * time.Hour
)

type OfferID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCountered Status = "COUNTERED"
	StatusAccepted  Status = "ACCEPTED"
	StatusDeclined  Status = "DECLINED"
	StatusExpired   Status = "EXPIRED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// Active reports whether the status still admits transitions.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusCountered
}

// CounterOffer is the seller's alternative price awaiting a buyer response.
type CounterOffer struct {
	AmountCents int64
	Message     string
	CreatedAt   time.Time
}

// HistoryEntry records one status change. The slice is append-only and never
// truncated, preserving the full negotiation narrative.
type HistoryEntry struct {
	Action      string
	AmountCents int64
	Message     string
	ActorID     string
	At          time.Time
}

const (
	ActionCreated   = "created"
	ActionAccepted  = "accepted"
	ActionDeclined  = "declined"
	ActionCountered = "countered"
	ActionWithdrawn = "withdrawn"
	ActionExpired   = "expired"
)

// Offer is a buyer's proposed price for a listing tracked through the
// negotiation lifecycle. Listing thresholds are snapshotted at creation; later
// listing edits do not affect an open offer.
type Offer struct {
	ID                 OfferID
	ListingID          listings.ListingID
	BuyerID            string
	SellerID           string
	AmountCents        int64
	OriginalPriceCents int64
	AutoAcceptCents    int64 // 0 means the seller set no auto-accept price
	MinimumCents       int64 // 0 means the seller set no minimum
	Status             Status
	Counter            *CounterOffer
	ExpiresAt          time.Time
	AcceptedAt         time.Time
	DeclinedAt         time.Time
	History            []HistoryEntry
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

// ListFilter narrows sent/received offer listings.
type ListFilter struct {
	Status    Status
	ListingID listings.ListingID
	Limit     int
}

type Repository interface {
	ByID(ctx context.Context, id OfferID) (*Offer, error)
	Save(ctx context.Context, offer *Offer) error
	// ActiveByListingAndBuyer returns the buyer's pending or countered offer
	// on the listing, or ErrOfferNotFound.
	ActiveByListingAndBuyer(ctx context.Context, listingID listings.ListingID, buyerID string) (*Offer, error)
	PendingByListing(ctx context.Context, listingID listings.ListingID) ([]*Offer, error)
	ListBySeller(ctx context.Context, sellerID string, filter ListFilter) ([]*Offer, error)
	ListByBuyer(ctx context.Context, buyerID string, filter ListFilter) ([]*Offer, error)
	// ExpiredPending returns pending offers whose deadline passed before now.
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Offer, error)
}

type CreateParams struct {
	ID                 OfferID
	ListingID          listings.ListingID
	BuyerID            string
	SellerID           string
	AmountCents        int64
	OriginalPriceCents int64
	AutoAcceptCents    int64
	MinimumCents       int64
	Message            string
	Now                time.Time
}

func NewOffer(params CreateParams) (*Offer, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, fault.New(fault.ValidationFailed, "offers: id is required")
	}
	if strings.TrimSpace(params.BuyerID) == "" {
		return nil, fault.New(fault.ValidationFailed, "offers: buyer is required")
	}
	if strings.TrimSpace(params.SellerID) == "" {
		return nil, fault.New(fault.ValidationFailed, "offers: seller is required")
	}
	if params.BuyerID == params.SellerID {
		return nil, ErrOwnListing
	}
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if params.OriginalPriceCents <= 0 {
		return nil, fault.New(fault.ValidationFailed, "offers: original price must be positive")
	}
	now := params.Now.UTC()
	o := &Offer{
		ID:                 params.ID,
		ListingID:          params.ListingID,
		BuyerID:            params.BuyerID,
		SellerID:           params.SellerID,
		AmountCents:        params.AmountCents,
		OriginalPriceCents: params.OriginalPriceCents,
		AutoAcceptCents:    params.AutoAcceptCents,
		MinimumCents:       params.MinimumCents,
		Status:             StatusPending,
		ExpiresAt:          now.Add(OfferTTL),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	o.append(ActionCreated, params.AmountCents, params.Message, params.BuyerID, now)
	o.Record(OfferPlaced{OfferID: o.ID, ListingID: o.ListingID, BuyerID: o.BuyerID, SellerID: o.SellerID, AmountCents: o.AmountCents, At: now})
	return o, nil
}

// AutoOutcome is the result of the threshold evaluation that runs at creation.
type AutoOutcome int

const (
	AutoNone AutoOutcome = iota
	AutoAccepted
	AutoDeclined
)

// AutoEvaluate applies the snapshotted seller thresholds. It runs once,
// synchronously at creation, so callers never observe a transient pending
// state when a threshold applies. Accept wins when both thresholds match.
func (o *Offer) AutoEvaluate(now time.Time) (AutoOutcome, error) {
	if o.Status != StatusPending {
		return AutoNone, ErrInvalidTransition
	}
	if o.AutoAcceptCents > 0 && o.AmountCents >= o.AutoAcceptCents {
		o.markAccepted(o.SellerID, o.AmountCents, "auto-accepted at or above the seller threshold", now)
		return AutoAccepted, nil
	}
	if o.MinimumCents > 0 && o.AmountCents < o.MinimumCents {
		o.markDeclined(o.SellerID, "below the seller minimum", now)
		return AutoDeclined, nil
	}
	return AutoNone, nil
}

// Accept records the seller taking the offer at its current amount.
func (o *Offer) Accept(actorID string, now time.Time) error {
	if actorID != o.SellerID {
		return ErrNotSeller
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	if o.IsExpired(now) {
		return ErrOfferExpired
	}
	o.markAccepted(actorID, o.AmountCents, "", now)
	return nil
}

// Decline records the seller rejecting the offer, optionally with a reason.
func (o *Offer) Decline(actorID, reason string, now time.Time) error {
	if actorID != o.SellerID {
		return ErrNotSeller
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	o.markDeclined(actorID, reason, now)
	return nil
}

// PlaceCounter replaces the buyer's price with a seller proposal and restarts
// the expiry clock. The counter must exceed the offer and not exceed the
// snapshotted listing price.
func (o *Offer) PlaceCounter(actorID string, amountCents int64, message string, now time.Time) error {
	if actorID != o.SellerID {
		return ErrNotSeller
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	if o.IsExpired(now) {
		return ErrOfferExpired
	}
	if amountCents <= o.AmountCents || amountCents > o.OriginalPriceCents {
		return ErrCounterOutOfRange
	}
	now = now.UTC()
	o.Counter = &CounterOffer{AmountCents: amountCents, Message: message, CreatedAt: now}
	o.Status = StatusCountered
	o.ExpiresAt = now.Add(OfferTTL)
	o.UpdatedAt = now
	o.append(ActionCountered, amountCents, message, actorID, now)
	o.Record(OfferCountered{OfferID: o.ID, ListingID: o.ListingID, AmountCents: amountCents, At: now})
	return nil
}

// Withdraw is the buyer's cancellation; only open offers can be withdrawn.
func (o *Offer) Withdraw(actorID string, now time.Time) error {
	if actorID != o.BuyerID {
		return ErrNotBuyer
	}
	if !o.Status.Active() {
		return ErrInvalidTransition
	}
	now = now.UTC()
	o.Status = StatusWithdrawn
	o.UpdatedAt = now
	o.append(ActionWithdrawn, o.AmountCents, "", actorID, now)
	o.Record(OfferWithdrawn{OfferID: o.ID, ListingID: o.ListingID, At: now})
	return nil
}

// AcceptCounter records the buyer taking the seller's counter. The offer
// amount becomes the counter amount.
func (o *Offer) AcceptCounter(actorID string, now time.Time) error {
	if actorID != o.BuyerID {
		return ErrNotBuyer
	}
	if o.Status != StatusCountered {
		return ErrInvalidTransition
	}
	if o.Counter == nil {
		return ErrCounterMissing
	}
	o.AmountCents = o.Counter.AmountCents
	o.markAccepted(actorID, o.AmountCents, "", now)
	return nil
}

// DeclineCounter records the buyer walking away from the counter.
func (o *Offer) DeclineCounter(actorID, reason string, now time.Time) error {
	if actorID != o.BuyerID {
		return ErrNotBuyer
	}
	if o.Status != StatusCountered {
		return ErrInvalidTransition
	}
	o.markDeclined(actorID, reason, now)
	return nil
}

// Expire moves a pending offer past its deadline to EXPIRED. Expiring an
// already-expired offer is a no-op so the sweep can run at-least-once.
func (o *Offer) Expire(now time.Time) error {
	if o.Status == StatusExpired {
		return nil
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	if !o.IsExpired(now) {
		return ErrInvalidTransition
	}
	now = now.UTC()
	o.Status = StatusExpired
	o.UpdatedAt = now
	o.append(ActionExpired, o.AmountCents, "", "", now)
	o.Record(OfferExpired{OfferID: o.ID, ListingID: o.ListingID, At: now})
	return nil
}

// IsExpired reports whether the deadline has passed. The status field flips
// lazily; this is the authoritative check for reads.
func (o *Offer) IsExpired(now time.Time) bool {
	return now.UTC().After(o.ExpiresAt)
}

func (o *Offer) markAccepted(actorID string, amountCents int64, message string, now time.Time) {
	now = now.UTC()
	o.Status = StatusAccepted
	o.AcceptedAt = now
	o.UpdatedAt = now
	o.append(ActionAccepted, amountCents, message, actorID, now)
	o.Record(OfferAccepted{OfferID: o.ID, ListingID: o.ListingID, BuyerID: o.BuyerID, AmountCents: amountCents, At: now})
}

func (o *Offer) markDeclined(actorID, reason string, now time.Time) {
	now = now.UTC()
	o.Status = StatusDeclined
	o.DeclinedAt = now
	o.UpdatedAt = now
	o.append(ActionDeclined, o.AmountCents, reason, actorID, now)
	o.Record(OfferDeclined{OfferID: o.ID, ListingID: o.ListingID, Reason: reason, At: now})
}

func (o *Offer) append(action string, amountCents int64, message, actorID string, at time.Time) {
	o.History = append(o.History, HistoryEntry{
		Action:      action,
		AmountCents: amountCents,
		Message:     message,
		ActorID:     actorID,
		At:          at.UTC(),
	})
}
