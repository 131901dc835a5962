package offers

import (
	"errors"
	"testing"
	"time"

	"gearyard/internal/domain/listings"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestOffer(t *testing.T, amountCents, minimumCents, autoAcceptCents int64) *Offer {
	t.Helper()
	offer, err := NewOffer(CreateParams{
		ID:                 "offer-1",
		ListingID:          listings.ListingID("listing-1"),
		BuyerID:            "buyer-1",
		SellerID:           "seller-1",
		AmountCents:        amountCents,
		OriginalPriceCents: 10000,
		AutoAcceptCents:    autoAcceptCents,
		MinimumCents:       minimumCents,
		Message:            "interested",
		Now:                testNow,
	})
	if err != nil {
		t.Fatalf("NewOffer: %v", err)
	}
	return offer
}

func TestNewOfferValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateParams)
		want   error
	}{
		{"own listing", func(p *CreateParams) { p.BuyerID = p.SellerID }, ErrOwnListing},
		{"zero amount", func(p *CreateParams) { p.AmountCents = 0 }, ErrInvalidAmount},
		{"negative amount", func(p *CreateParams) { p.AmountCents = -500 }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := CreateParams{
				ID:                 "offer-1",
				ListingID:          listings.ListingID("listing-1"),
				BuyerID:            "buyer-1",
				SellerID:           "seller-1",
				AmountCents:        5000,
				OriginalPriceCents: 10000,
				Now:                testNow,
			}
			tc.mutate(&params)
			if _, err := NewOffer(params); !errors.Is(err, tc.want) {
				t.Fatalf("NewOffer error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewOfferStartsPending(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if offer.Status != StatusPending {
		t.Fatalf("status = %s, want %s", offer.Status, StatusPending)
	}
	if got := offer.ExpiresAt; !got.Equal(testNow.Add(OfferTTL)) {
		t.Fatalf("expires at = %v, want %v", got, testNow.Add(OfferTTL))
	}
	if len(offer.History) != 1 || offer.History[0].Action != ActionCreated {
		t.Fatalf("history = %+v, want single created entry", offer.History)
	}
	if len(offer.PendingEvents()) != 1 {
		t.Fatalf("events = %d, want 1", len(offer.PendingEvents()))
	}
}

func TestAutoEvaluate(t *testing.T) {
	cases := []struct {
		name            string
		amountCents     int64
		minimumCents    int64
		autoAcceptCents int64
		want            AutoOutcome
		wantStatus      Status
	}{
		{"at auto-accept threshold", 9000, 0, 9000, AutoAccepted, StatusAccepted},
		{"above auto-accept threshold", 9500, 0, 9000, AutoAccepted, StatusAccepted},
		{"below minimum", 4000, 5000, 0, AutoDeclined, StatusDeclined},
		{"at minimum stays pending", 5000, 5000, 0, AutoNone, StatusPending},
		{"between thresholds", 6000, 5000, 9000, AutoNone, StatusPending},
		{"no thresholds set", 100, 0, 0, AutoNone, StatusPending},
		{"accept wins over decline when both match", 9000, 9500, 9000, AutoAccepted, StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offer := newTestOffer(t, tc.amountCents, tc.minimumCents, tc.autoAcceptCents)
			outcome, err := offer.AutoEvaluate(testNow)
			if err != nil {
				t.Fatalf("AutoEvaluate: %v", err)
			}
			if outcome != tc.want {
				t.Fatalf("outcome = %d, want %d", outcome, tc.want)
			}
			if offer.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", offer.Status, tc.wantStatus)
			}
		})
	}
}

func TestAutoEvaluateOnlyRunsOnPending(t *testing.T) {
	offer := newTestOffer(t, 9000, 0, 9000)
	if _, err := offer.AutoEvaluate(testNow); err != nil {
		t.Fatalf("first AutoEvaluate: %v", err)
	}
	if _, err := offer.AutoEvaluate(testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second AutoEvaluate error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestAcceptBySeller(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.Accept("seller-1", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if offer.Status != StatusAccepted {
		t.Fatalf("status = %s, want %s", offer.Status, StatusAccepted)
	}
	if offer.AcceptedAt.IsZero() {
		t.Fatal("accepted timestamp not set")
	}
	if offer.AmountCents != 6000 {
		t.Fatalf("amount = %d, want unchanged 6000", offer.AmountCents)
	}
}

func TestAcceptGuards(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.Accept("buyer-1", testNow); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("buyer accept error = %v, want %v", err, ErrNotSeller)
	}
	if err := offer.Accept("seller-1", testNow.Add(OfferTTL+time.Minute)); !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("accept after deadline error = %v, want %v", err, ErrOfferExpired)
	}
	if err := offer.Withdraw("buyer-1", testNow); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := offer.Accept("seller-1", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("accept withdrawn error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestDecline(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.Decline("seller-1", "too low", testNow); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if offer.Status != StatusDeclined {
		t.Fatalf("status = %s, want %s", offer.Status, StatusDeclined)
	}
	last := offer.History[len(offer.History)-1]
	if last.Action != ActionDeclined || last.Message != "too low" {
		t.Fatalf("last history = %+v, want declined with reason", last)
	}
}

func TestCounterFlow(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	counterAt := testNow.Add(2 * time.Hour)
	if err := offer.PlaceCounter("seller-1", 8000, "meet me here", counterAt); err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if offer.Status != StatusCountered {
		t.Fatalf("status = %s, want %s", offer.Status, StatusCountered)
	}
	if offer.Counter == nil || offer.Counter.AmountCents != 8000 {
		t.Fatalf("counter = %+v, want 8000", offer.Counter)
	}
	if !offer.ExpiresAt.Equal(counterAt.Add(OfferTTL)) {
		t.Fatalf("expiry not restarted: %v", offer.ExpiresAt)
	}

	if err := offer.AcceptCounter("buyer-1", counterAt.Add(time.Hour)); err != nil {
		t.Fatalf("AcceptCounter: %v", err)
	}
	if offer.Status != StatusAccepted {
		t.Fatalf("status = %s, want %s", offer.Status, StatusAccepted)
	}
	if offer.AmountCents != 8000 {
		t.Fatalf("amount = %d, want counter amount 8000", offer.AmountCents)
	}
}

func TestCounterBounds(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
	}{
		{"equal to offer", 6000},
		{"below offer", 5000},
		{"above listing price", 10001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offer := newTestOffer(t, 6000, 0, 0)
			if err := offer.PlaceCounter("seller-1", tc.amount, "", testNow); !errors.Is(err, ErrCounterOutOfRange) {
				t.Fatalf("Counter(%d) error = %v, want %v", tc.amount, err, ErrCounterOutOfRange)
			}
		})
	}
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.PlaceCounter("seller-1", 10000, "full price", testNow); err != nil {
		t.Fatalf("counter at listing price should be allowed: %v", err)
	}
}

func TestCounterRejectedPastDeadline(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	stale := testNow.Add(OfferTTL + time.Minute)
	if err := offer.PlaceCounter("seller-1", 8000, "", stale); !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("counter after deadline error = %v, want %v", err, ErrOfferExpired)
	}
	if offer.Status != StatusPending {
		t.Fatalf("status = %s, want untouched %s", offer.Status, StatusPending)
	}
	if offer.ExpiresAt != testNow.Add(OfferTTL) {
		t.Fatal("deadline must not be reset by a rejected counter")
	}
}

func TestDeclineCounter(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.PlaceCounter("seller-1", 8000, "", testNow); err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if err := offer.DeclineCounter("seller-1", "", testNow); !errors.Is(err, ErrNotBuyer) {
		t.Fatalf("seller declining own counter error = %v, want %v", err, ErrNotBuyer)
	}
	if err := offer.DeclineCounter("buyer-1", "found cheaper", testNow); err != nil {
		t.Fatalf("DeclineCounter: %v", err)
	}
	if offer.Status != StatusDeclined {
		t.Fatalf("status = %s, want %s", offer.Status, StatusDeclined)
	}
}

func TestRespondCounterRequiresCounter(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.AcceptCounter("buyer-1", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("AcceptCounter on pending error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestWithdraw(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.Withdraw("seller-1", testNow); !errors.Is(err, ErrNotBuyer) {
		t.Fatalf("seller withdraw error = %v, want %v", err, ErrNotBuyer)
	}
	if err := offer.Withdraw("buyer-1", testNow); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := offer.Withdraw("buyer-1", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double withdraw error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestWithdrawCounteredOffer(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.PlaceCounter("seller-1", 8000, "", testNow); err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if err := offer.Withdraw("buyer-1", testNow); err != nil {
		t.Fatalf("withdraw countered offer: %v", err)
	}
	if offer.Status != StatusWithdrawn {
		t.Fatalf("status = %s, want %s", offer.Status, StatusWithdrawn)
	}
}

func TestExpire(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.Expire(testNow.Add(time.Hour)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expire before deadline error = %v, want %v", err, ErrInvalidTransition)
	}
	deadline := testNow.Add(OfferTTL + time.Minute)
	if err := offer.Expire(deadline); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if offer.Status != StatusExpired {
		t.Fatalf("status = %s, want %s", offer.Status, StatusExpired)
	}
	if err := offer.Expire(deadline); err != nil {
		t.Fatalf("expiring an expired offer should be a no-op: %v", err)
	}
}

func TestIsExpiredIsAuthoritativeBeforeSweep(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if offer.IsExpired(testNow.Add(OfferTTL - time.Second)) {
		t.Fatal("offer should not read as expired before the deadline")
	}
	if !offer.IsExpired(testNow.Add(OfferTTL + time.Second)) {
		t.Fatal("offer should read as expired past the deadline even while status is pending")
	}
	if offer.Status != StatusPending {
		t.Fatalf("status = %s, reads must not mutate it", offer.Status)
	}
}

func TestHistoryIsAppendOnly(t *testing.T) {
	offer := newTestOffer(t, 6000, 0, 0)
	if err := offer.PlaceCounter("seller-1", 8000, "", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if err := offer.AcceptCounter("buyer-1", testNow.Add(2*time.Hour)); err != nil {
		t.Fatalf("AcceptCounter: %v", err)
	}
	want := []string{ActionCreated, ActionCountered, ActionAccepted}
	if len(offer.History) != len(want) {
		t.Fatalf("history length = %d, want %d", len(offer.History), len(want))
	}
	for i, entry := range offer.History {
		if entry.Action != want[i] {
			t.Fatalf("history[%d].Action = %s, want %s", i, entry.Action, want[i])
		}
		if i > 0 && entry.At.Before(offer.History[i-1].At) {
			t.Fatalf("history timestamps not monotonic at index %d", i)
		}
	}
}
