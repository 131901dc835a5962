package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"gearyard/internal/domain/shared/events"
)

var (
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrInvalidPrice    = errors.New("listings: price must be positive")
	ErrInvalidState    = errors.New("listings: invalid state transition")
	ErrThresholdBounds = errors.New("listings: offer thresholds must not exceed the asking price")
	ErrNotFound        = errors.New("listings: not found")
	ErrAlreadySold     = errors.New("listings: already sold")
)

type ListingID string
type SellerID string

type ListingState string

const (
	ListingDraft     ListingState = "DRAFT"
	ListingActive    ListingState = "ACTIVE"
	ListingSold      ListingState = "SOLD"
	ListingSuspended ListingState = "SUSPENDED"
)

// Condition grades second-hand gear.
type Condition string

const (
	ConditionNew      Condition = "new"
	ConditionLikeNew  Condition = "like_new"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionForParts Condition = "for_parts"
)

// OfferPolicy holds the seller's negotiation settings. Zero thresholds mean
// the seller left them unset.
type OfferPolicy struct {
	AcceptsOffers   bool
	MinimumCents    int64
	AutoAcceptCents int64
}

type Listing struct {
	ID             ListingID
	Seller         SellerID
	Title          string
	Description    string
	Category       string
	Brand          string
	Condition      Condition
	PriceCents     int64
	Policy         OfferPolicy
	State          ListingState
	Photos         []string
	SoldTo         string
	SoldPriceCents int64
	SoldAt         time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
	ListBySeller(ctx context.Context, seller SellerID) ([]*Listing, error)
}

type CreateListingParams struct {
	ID          ListingID
	Seller      SellerID
	Title       string
	Description string
	Category    string
	Brand       string
	Condition   Condition
	PriceCents  int64
	Policy      OfferPolicy
	Photos      []string
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Seller)) == "" {
		return nil, errors.New("listings: seller is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.PriceCents <= 0 {
		return nil, ErrInvalidPrice
	}
	if err := validatePolicy(params.Policy, params.PriceCents); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	listing := &Listing{
		ID:          params.ID,
		Seller:      params.Seller,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Category:    strings.ToLower(strings.TrimSpace(params.Category)),
		Brand:       strings.TrimSpace(params.Brand),
		Condition:   normalizeCondition(params.Condition),
		PriceCents:  params.PriceCents,
		Policy:      params.Policy,
		State:       ListingDraft,
		Photos:      append([]string(nil), params.Photos...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	listing.Record(ListingCreatedEvent{ListingID: listing.ID, SellerID: listing.Seller, At: now})
	return listing, nil
}

// Publish makes a draft or suspended listing visible and open to buyers.
func (l *Listing) Publish(now time.Time) error {
	switch l.State {
	case ListingActive:
		return nil
	case ListingDraft, ListingSuspended:
	default:
		return ErrInvalidState
	}
	l.State = ListingActive
	l.UpdatedAt = now.UTC()
	l.Record(ListingPublishedEvent{ListingID: l.ID, SellerID: l.Seller, At: l.UpdatedAt})
	return nil
}

// Suspend hides an active listing without deleting it.
func (l *Listing) Suspend(reason string, now time.Time) error {
	if l.State != ListingActive {
		return ErrInvalidState
	}
	l.State = ListingSuspended
	l.UpdatedAt = now.UTC()
	l.Record(ListingSuspendedEvent{ListingID: l.ID, Reason: reason, At: l.UpdatedAt})
	return nil
}

// AvailableForOffers reports whether buyers may open a negotiation.
func (l *Listing) AvailableForOffers() bool {
	return l.State == ListingActive && l.Policy.AcceptsOffers
}

// MarkSold closes the listing at the negotiated price. A listing carries
// exactly one soldTo/soldPrice pair; selling twice is rejected.
func (l *Listing) MarkSold(buyerID string, priceCents int64, now time.Time) error {
	if l.State == ListingSold {
		return ErrAlreadySold
	}
	if l.State != ListingActive {
		return ErrInvalidState
	}
	if strings.TrimSpace(buyerID) == "" {
		return errors.New("listings: buyer is required")
	}
	if priceCents <= 0 {
		return ErrInvalidPrice
	}
	now = now.UTC()
	l.State = ListingSold
	l.SoldTo = buyerID
	l.SoldPriceCents = priceCents
	l.SoldAt = now
	l.UpdatedAt = now
	l.Record(ListingSoldEvent{ListingID: l.ID, BuyerID: buyerID, PriceCents: priceCents, At: now})
	return nil
}

type UpdateListingParams struct {
	Title       string
	Description string
	Category    string
	Brand       string
	Condition   Condition
	PriceCents  int64
	Policy      OfferPolicy
	Photos      []string
	Now         time.Time
}

// UpdateAttributes replaces the editable fields. Sold listings are immutable.
func (l *Listing) UpdateAttributes(params UpdateListingParams) error {
	if l.State == ListingSold {
		return ErrInvalidState
	}
	if strings.TrimSpace(params.Title) == "" {
		return ErrTitleRequired
	}
	if params.PriceCents <= 0 {
		return ErrInvalidPrice
	}
	if err := validatePolicy(params.Policy, params.PriceCents); err != nil {
		return err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	l.Title = strings.TrimSpace(params.Title)
	l.Description = strings.TrimSpace(params.Description)
	l.Category = strings.ToLower(strings.TrimSpace(params.Category))
	l.Brand = strings.TrimSpace(params.Brand)
	l.Condition = normalizeCondition(params.Condition)
	l.PriceCents = params.PriceCents
	l.Policy = params.Policy
	l.Photos = append([]string(nil), params.Photos...)
	l.UpdatedAt = now
	l.Record(ListingUpdatedEvent{ListingID: l.ID, At: now})
	return nil
}

// AddPhoto appends an uploaded photo URL.
func (l *Listing) AddPhoto(url string, now time.Time) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("listings: photo url is required")
	}
	if l.State == ListingSold {
		return ErrInvalidState
	}
	l.Photos = append(l.Photos, url)
	l.UpdatedAt = now.UTC()
	l.Record(ListingUpdatedEvent{ListingID: l.ID, At: l.UpdatedAt})
	return nil
}

func validatePolicy(policy OfferPolicy, priceCents int64) error {
	if policy.MinimumCents < 0 || policy.AutoAcceptCents < 0 {
		return ErrInvalidPrice
	}
	if policy.MinimumCents > priceCents || policy.AutoAcceptCents > priceCents {
		return ErrThresholdBounds
	}
	return nil
}

func normalizeCondition(c Condition) Condition {
	switch Condition(strings.ToLower(strings.TrimSpace(string(c)))) {
	case ConditionNew:
		return ConditionNew
	case ConditionLikeNew:
		return ConditionLikeNew
	case ConditionFair:
		return ConditionFair
	case ConditionForParts:
		return ConditionForParts
	default:
		return ConditionGood
	}
}
