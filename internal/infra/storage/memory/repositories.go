package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
)

// ErrConcurrentUpdate mirrors the optimistic concurrency failure of the Mongo
// repositories so handler retry behavior can be exercised without a database.
var ErrConcurrentUpdate = errors.New("memory: concurrent update detected")

// OfferRepository is an in-memory implementation for tests and demo mode.
type OfferRepository struct {
	mu    sync.RWMutex
	items map[domainoffers.OfferID]*domainoffers.Offer
}

func NewOfferRepository() *OfferRepository {
	return &OfferRepository{items: make(map[domainoffers.OfferID]*domainoffers.Offer)}
}

func (r *OfferRepository) ByID(ctx context.Context, id domainoffers.OfferID) (*domainoffers.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	offer, ok := r.items[id]
	if !ok {
		return nil, domainoffers.ErrOfferNotFound
	}
	return cloneOffer(offer), nil
}

func (r *OfferRepository) Save(ctx context.Context, offer *domainoffers.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[offer.ID]; ok && existing.Version != offer.Version {
		return ErrConcurrentUpdate
	}
	offer.Version++
	r.items[offer.ID] = cloneOffer(offer)
	return nil
}

func (r *OfferRepository) ActiveByListingAndBuyer(ctx context.Context, listingID domainlistings.ListingID, buyerID string) (*domainoffers.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domainoffers.Offer
	for _, offer := range r.items {
		if offer.ListingID != listingID || offer.BuyerID != buyerID || !offer.Status.Active() {
			continue
		}
		if latest == nil || offer.CreatedAt.After(latest.CreatedAt) {
			latest = offer
		}
	}
	if latest == nil {
		return nil, domainoffers.ErrOfferNotFound
	}
	return cloneOffer(latest), nil
}

func (r *OfferRepository) PendingByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domainoffers.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainoffers.Offer
	for _, offer := range r.items {
		if offer.ListingID == listingID && offer.Status.Active() {
			out = append(out, cloneOffer(offer))
		}
	}
	sortOffersByCreated(out, true)
	return out, nil
}

func (r *OfferRepository) ListBySeller(ctx context.Context, sellerID string, filter domainoffers.ListFilter) ([]*domainoffers.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainoffers.Offer
	for _, offer := range r.items {
		if offer.SellerID != sellerID || !matchesFilter(offer, filter) {
			continue
		}
		out = append(out, cloneOffer(offer))
	}
	sortOffersByCreated(out, false)
	return limitOffers(out, filter.Limit), nil
}

func (r *OfferRepository) ListByBuyer(ctx context.Context, buyerID string, filter domainoffers.ListFilter) ([]*domainoffers.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainoffers.Offer
	for _, offer := range r.items {
		if offer.BuyerID != buyerID || !matchesFilter(offer, filter) {
			continue
		}
		out = append(out, cloneOffer(offer))
	}
	sortOffersByCreated(out, false)
	return limitOffers(out, filter.Limit), nil
}

func (r *OfferRepository) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domainoffers.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainoffers.Offer
	for _, offer := range r.items {
		if offer.Status == domainoffers.StatusPending && offer.IsExpired(now) {
			out = append(out, cloneOffer(offer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return limitOffers(out, limit), nil
}

func matchesFilter(offer *domainoffers.Offer, filter domainoffers.ListFilter) bool {
	if filter.Status != "" && offer.Status != filter.Status {
		return false
	}
	if filter.ListingID != "" && offer.ListingID != filter.ListingID {
		return false
	}
	return true
}

func sortOffersByCreated(offers []*domainoffers.Offer, ascending bool) {
	sort.Slice(offers, func(i, j int) bool {
		if ascending {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		}
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
}

func limitOffers(offers []*domainoffers.Offer, limit int) []*domainoffers.Offer {
	if limit > 0 && len(offers) > limit {
		return offers[:limit]
	}
	return offers
}

func cloneOffer(o *domainoffers.Offer) *domainoffers.Offer {
	if o == nil {
		return nil
	}
	copyOffer := *o
	copyOffer.History = append([]domainoffers.HistoryEntry(nil), o.History...)
	if o.Counter != nil {
		counter := *o.Counter
		copyOffer.Counter = &counter
	}
	copyOffer.ClearEvents()
	return &copyOffer
}

// ListingRepository is an in-memory implementation for tests and demo mode.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlistings.ListingID]*domainlistings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return cloneListing(listing), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[listing.ID]; ok && existing.Version != listing.Version {
		return ErrConcurrentUpdate
	}
	listing.Version++
	r.items[listing.ID] = cloneListing(listing)
	return nil
}

func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts := params.Normalized()
	matches := make([]*domainlistings.Listing, 0, len(r.items))
	for _, listing := range r.items {
		if !opts.Matches(listing) {
			continue
		}
		matches = append(matches, cloneListing(listing))
	}

	sort.Slice(matches, func(i, j int) bool {
		switch opts.Sort {
		case domainlistings.SortPriceAsc:
			return matches[i].PriceCents < matches[j].PriceCents
		case domainlistings.SortPriceDesc:
			return matches[i].PriceCents > matches[j].PriceCents
		default:
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
	})

	total := len(matches)
	if opts.Offset >= total {
		return domainlistings.SearchResult{Total: total}, nil
	}
	matches = matches[opts.Offset:]
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return domainlistings.SearchResult{Items: matches, Total: total}, nil
}

func (r *ListingRepository) ListBySeller(ctx context.Context, seller domainlistings.SellerID) ([]*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainlistings.Listing
	for _, listing := range r.items {
		if listing.Seller == seller {
			out = append(out, cloneListing(listing))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	if l == nil {
		return nil
	}
	copyListing := *l
	copyListing.Photos = append([]string(nil), l.Photos...)
	copyListing.ClearEvents()
	return &copyListing
}
