package listings

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestListing(t *testing.T, policy OfferPolicy) *Listing {
	t.Helper()
	listing, err := NewListing(CreateListingParams{
		ID:         "listing-1",
		Seller:     "seller-1",
		Title:      "Trek Marlin 7",
		Category:   "Bikes",
		Brand:      "Trek",
		Condition:  ConditionGood,
		PriceCents: 10000,
		Policy:     policy,
		Now:        testNow,
	})
	if err != nil {
		t.Fatalf("NewListing: %v", err)
	}
	return listing
}

func TestNewListingValidation(t *testing.T) {
	base := CreateListingParams{
		ID:         "listing-1",
		Seller:     "seller-1",
		Title:      "Trek Marlin 7",
		PriceCents: 10000,
		Now:        testNow,
	}

	missingTitle := base
	missingTitle.Title = "  "
	if _, err := NewListing(missingTitle); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("missing title error = %v, want %v", err, ErrTitleRequired)
	}

	freePrice := base
	freePrice.PriceCents = 0
	if _, err := NewListing(freePrice); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero price error = %v, want %v", err, ErrInvalidPrice)
	}

	highMinimum := base
	highMinimum.Policy = OfferPolicy{AcceptsOffers: true, MinimumCents: 12000}
	if _, err := NewListing(highMinimum); !errors.Is(err, ErrThresholdBounds) {
		t.Fatalf("minimum above price error = %v, want %v", err, ErrThresholdBounds)
	}

	highAutoAccept := base
	highAutoAccept.Policy = OfferPolicy{AcceptsOffers: true, AutoAcceptCents: 12000}
	if _, err := NewListing(highAutoAccept); !errors.Is(err, ErrThresholdBounds) {
		t.Fatalf("auto-accept above price error = %v, want %v", err, ErrThresholdBounds)
	}
}

func TestListingLifecycle(t *testing.T) {
	listing := newTestListing(t, OfferPolicy{AcceptsOffers: true})
	if listing.State != ListingDraft {
		t.Fatalf("state = %s, want %s", listing.State, ListingDraft)
	}
	if listing.AvailableForOffers() {
		t.Fatal("draft listing must not accept offers")
	}

	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !listing.AvailableForOffers() {
		t.Fatal("active listing with accepts_offers should be open to offers")
	}
	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("publishing an active listing should be a no-op: %v", err)
	}

	if err := listing.Suspend("vacation", testNow); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if listing.State != ListingSuspended {
		t.Fatalf("state = %s, want %s", listing.State, ListingSuspended)
	}
	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("republish after suspend: %v", err)
	}
}

func TestAvailableForOffersRespectsPolicy(t *testing.T) {
	listing := newTestListing(t, OfferPolicy{AcceptsOffers: false})
	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if listing.AvailableForOffers() {
		t.Fatal("listing with offers disabled must not be open to offers")
	}
}

func TestMarkSold(t *testing.T) {
	listing := newTestListing(t, OfferPolicy{AcceptsOffers: true})
	if err := listing.MarkSold("buyer-1", 8000, testNow); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("selling a draft error = %v, want %v", err, ErrInvalidState)
	}

	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := listing.MarkSold("buyer-1", 8000, testNow); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}
	if listing.State != ListingSold || listing.SoldTo != "buyer-1" || listing.SoldPriceCents != 8000 {
		t.Fatalf("sold fields = %s/%s/%d", listing.State, listing.SoldTo, listing.SoldPriceCents)
	}

	if err := listing.MarkSold("buyer-2", 9000, testNow); !errors.Is(err, ErrAlreadySold) {
		t.Fatalf("second sale error = %v, want %v", err, ErrAlreadySold)
	}
	if listing.SoldTo != "buyer-1" || listing.SoldPriceCents != 8000 {
		t.Fatal("rejected second sale must not overwrite the original sale")
	}
}

func TestSoldListingIsImmutable(t *testing.T) {
	listing := newTestListing(t, OfferPolicy{AcceptsOffers: true})
	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := listing.MarkSold("buyer-1", 8000, testNow); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}
	err := listing.UpdateAttributes(UpdateListingParams{Title: "New title", PriceCents: 5000, Now: testNow})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("update sold listing error = %v, want %v", err, ErrInvalidState)
	}
	if err := listing.AddPhoto("https://cdn/img.jpg", testNow); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("photo on sold listing error = %v, want %v", err, ErrInvalidState)
	}
}

func TestSearchParamsMatches(t *testing.T) {
	listing := newTestListing(t, OfferPolicy{AcceptsOffers: true, MinimumCents: 5000})
	if err := listing.Publish(testNow); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	cases := []struct {
		name   string
		params SearchParams
		want   bool
	}{
		{"empty", SearchParams{}, true},
		{"title query", SearchParams{Query: "marlin"}, true},
		{"miss query", SearchParams{Query: "kayak"}, false},
		{"brand", SearchParams{Brand: "trek"}, true},
		{"category", SearchParams{Category: "Bikes"}, true},
		{"condition", SearchParams{Conditions: []Condition{ConditionGood, ConditionFair}}, true},
		{"price band", SearchParams{MinCents: 9000, MaxCents: 11000}, true},
		{"price above", SearchParams{MaxCents: 9000}, false},
		{"accepts only", SearchParams{AcceptsOnly: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.params.Normalized().Matches(listing); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}
