package offers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gearyard/internal/app/policies"
	"gearyard/internal/app/uow"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	"gearyard/internal/domain/shared/fault"
	"gearyard/internal/infra/storage/memory"
)

type noticeLog struct {
	mu      sync.Mutex
	notices []policies.OfferNotice
}

func (n *noticeLog) NotifyOffer(_ context.Context, notice policies.OfferNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *noticeLog) all() []policies.OfferNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]policies.OfferNotice(nil), n.notices...)
}

type testEnv struct {
	offers   *memory.OfferRepository
	listings *memory.ListingRepository
	factory  memory.Factory
	box      *memory.Outbox
	notifier *noticeLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	offersRepo := memory.NewOfferRepository()
	listingsRepo := memory.NewListingRepository()
	return &testEnv{
		offers:   offersRepo,
		listings: listingsRepo,
		factory: memory.Factory{
			OffersRepo:   offersRepo,
			ListingsRepo: listingsRepo,
		},
		box:      memory.NewOutbox(),
		notifier: &noticeLog{},
	}
}

func (e *testEnv) createHandler() *CreateOfferHandler {
	return &CreateOfferHandler{UoWFactory: e.factory, Outbox: e.box, Notifier: e.notifier}
}

func (e *testEnv) acceptHandler() *AcceptOfferHandler {
	return &AcceptOfferHandler{UoWFactory: e.factory, Outbox: e.box, Notifier: e.notifier}
}

func (e *testEnv) respondHandler() *RespondHandler {
	return &RespondHandler{UoWFactory: e.factory, Outbox: e.box, Notifier: e.notifier}
}

func (e *testEnv) sweepHandler() *SweepHandler {
	return &SweepHandler{UoWFactory: e.factory, Outbox: e.box, Notifier: e.notifier}
}

func (e *testEnv) addListing(t *testing.T, id string, policy domainlistings.OfferPolicy) *domainlistings.Listing {
	t.Helper()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:         domainlistings.ListingID(id),
		Seller:     "seller-1",
		Title:      "Canyon Spectral",
		Category:   "bikes",
		PriceCents: 10000,
		Policy:     policy,
		Now:        time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("NewListing: %v", err)
	}
	if err := listing.Publish(time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := e.listings.Save(context.Background(), listing); err != nil {
		t.Fatalf("save listing: %v", err)
	}
	return listing
}

// addOffer seeds an offer directly in the store with a controlled creation
// time, bypassing the handler so cooldown and expiry windows can be set up.
func (e *testEnv) addOffer(t *testing.T, id, listingID, buyerID string, amountCents int64, createdAt time.Time) *domainoffers.Offer {
	t.Helper()
	offer, err := domainoffers.NewOffer(domainoffers.CreateParams{
		ID:                 domainoffers.OfferID(id),
		ListingID:          domainlistings.ListingID(listingID),
		BuyerID:            buyerID,
		SellerID:           "seller-1",
		AmountCents:        amountCents,
		OriginalPriceCents: 10000,
		Now:                createdAt,
	})
	if err != nil {
		t.Fatalf("NewOffer: %v", err)
	}
	offer.ClearEvents()
	if err := e.offers.Save(context.Background(), offer); err != nil {
		t.Fatalf("save offer: %v", err)
	}
	return offer
}

func (e *testEnv) mustOffer(t *testing.T, id string) *domainoffers.Offer {
	t.Helper()
	offer, err := e.offers.ByID(context.Background(), domainoffers.OfferID(id))
	if err != nil {
		t.Fatalf("load offer %s: %v", id, err)
	}
	return offer
}

func (e *testEnv) mustListing(t *testing.T, id string) *domainlistings.Listing {
	t.Helper()
	listing, err := e.listings.ByID(context.Background(), domainlistings.ListingID(id))
	if err != nil {
		t.Fatalf("load listing %s: %v", id, err)
	}
	return listing
}

func TestCreateOfferStaysPendingBetweenThresholds(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true, MinimumCents: 5000, AutoAcceptCents: 9000})

	result, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID:   "offer-1",
		ListingID:   "listing-1",
		BuyerID:     "buyer-1",
		AmountCents: 6000,
		Message:     "would you take 60?",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != string(domainoffers.StatusPending) {
		t.Fatalf("status = %s, want pending", result.Status)
	}

	offer := env.mustOffer(t, "offer-1")
	if offer.MinimumCents != 5000 || offer.AutoAcceptCents != 9000 || offer.OriginalPriceCents != 10000 {
		t.Fatalf("thresholds not snapshotted: %+v", offer)
	}
	if listing := env.mustListing(t, "listing-1"); listing.State != domainlistings.ListingActive {
		t.Fatalf("listing state = %s, want still active", listing.State)
	}
	if records := env.box.Records(); len(records) != 1 {
		t.Fatalf("outbox records = %d, want 1 placed event", len(records))
	}
	notices := env.notifier.all()
	if len(notices) != 1 || notices[0].OfferID != "offer-1" {
		t.Fatalf("notices = %+v, want one for offer-1", notices)
	}
}

func TestCreateOfferAutoAcceptSellsListing(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true, AutoAcceptCents: 9000})
	env.addOffer(t, "rival-offer", "listing-1", "buyer-2", 5000, time.Now().UTC().Add(-2*time.Hour))

	result, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID:   "offer-1",
		ListingID:   "listing-1",
		BuyerID:     "buyer-1",
		AmountCents: 9500,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != string(domainoffers.StatusAccepted) {
		t.Fatalf("status = %s, want accepted", result.Status)
	}

	listing := env.mustListing(t, "listing-1")
	if listing.State != domainlistings.ListingSold || listing.SoldTo != "buyer-1" || listing.SoldPriceCents != 9500 {
		t.Fatalf("listing sale = %s/%s/%d, want sold to buyer-1 at 9500", listing.State, listing.SoldTo, listing.SoldPriceCents)
	}
	if rival := env.mustOffer(t, "rival-offer"); rival.Status != domainoffers.StatusDeclined {
		t.Fatalf("rival status = %s, want declined by cascade", rival.Status)
	}
}

func TestCreateOfferAutoDeclineLeavesListingOpen(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true, MinimumCents: 5000})

	result, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID:   "offer-1",
		ListingID:   "listing-1",
		BuyerID:     "buyer-1",
		AmountCents: 4000,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != string(domainoffers.StatusDeclined) {
		t.Fatalf("status = %s, want declined", result.Status)
	}
	if listing := env.mustListing(t, "listing-1"); listing.State != domainlistings.ListingActive {
		t.Fatalf("listing state = %s, auto-decline must not touch the listing", listing.State)
	}
}

func TestCreateOfferGuards(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "closed", domainlistings.OfferPolicy{AcceptsOffers: false})
	env.addListing(t, "open", domainlistings.OfferPolicy{AcceptsOffers: true})

	_, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID: "offer-1", ListingID: "closed", BuyerID: "buyer-1", AmountCents: 6000,
	})
	if !errors.Is(err, domainoffers.ErrListingUnavailable) {
		t.Fatalf("closed listing error = %v, want %v", err, domainoffers.ErrListingUnavailable)
	}

	_, err = env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID: "offer-2", ListingID: "open", BuyerID: "seller-1", AmountCents: 6000,
	})
	if !errors.Is(err, domainoffers.ErrOwnListing) {
		t.Fatalf("own listing error = %v, want %v", err, domainoffers.ErrOwnListing)
	}

	_, err = env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID: "offer-3", ListingID: "missing", BuyerID: "buyer-1", AmountCents: 6000,
	})
	if !fault.IsKind(err, fault.NotFound) {
		t.Fatalf("missing listing error = %v, want not_found kind", err)
	}
}

func TestCreateOfferRepeatCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "recent", "listing-1", "buyer-1", 5000, time.Now().UTC().Add(-time.Hour))

	_, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID: "offer-2", ListingID: "listing-1", BuyerID: "buyer-1", AmountCents: 6000,
	})
	if !fault.IsKind(err, fault.RateLimited) {
		t.Fatalf("within cooldown error = %v, want rate_limited kind", err)
	}
}

func TestCreateOfferActiveOfferPastCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "stale-active", "listing-1", "buyer-1", 5000, time.Now().UTC().Add(-25*time.Hour))

	_, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID: "offer-2", ListingID: "listing-1", BuyerID: "buyer-1", AmountCents: 6000,
	})
	if !errors.Is(err, domainoffers.ErrActiveOfferExists) {
		t.Fatalf("active offer error = %v, want %v", err, domainoffers.ErrActiveOfferExists)
	}
}

func TestCreateOfferAllowedAfterWithdraw(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	prior := env.addOffer(t, "withdrawn", "listing-1", "buyer-1", 5000, time.Now().UTC().Add(-time.Hour))
	if err := prior.Withdraw("buyer-1", time.Now().UTC()); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	prior.ClearEvents()
	if err := env.offers.Save(context.Background(), prior); err != nil {
		t.Fatalf("save withdrawn offer: %v", err)
	}

	result, err := env.createHandler().Handle(context.Background(), CreateOfferCommand{
		CommandID: "offer-2", ListingID: "listing-1", BuyerID: "buyer-1", AmountCents: 6000,
	})
	if err != nil {
		t.Fatalf("new offer after withdraw: %v", err)
	}
	if result.Status != string(domainoffers.StatusPending) {
		t.Fatalf("status = %s, want pending", result.Status)
	}
}

func TestAcceptOfferCascade(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "winner", "listing-1", "buyer-1", 7000, time.Now().UTC().Add(-2*time.Hour))
	env.addOffer(t, "loser", "listing-1", "buyer-2", 6500, time.Now().UTC().Add(-time.Hour))

	result, err := env.acceptHandler().Handle(context.Background(), AcceptOfferCommand{OfferID: "winner", ActorID: "seller-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != string(domainoffers.StatusAccepted) || result.AmountCents != 7000 {
		t.Fatalf("result = %+v, want accepted at 7000", result)
	}

	listing := env.mustListing(t, "listing-1")
	if listing.State != domainlistings.ListingSold || listing.SoldTo != "buyer-1" || listing.SoldPriceCents != 7000 {
		t.Fatalf("listing sale = %s/%s/%d", listing.State, listing.SoldTo, listing.SoldPriceCents)
	}
	if loser := env.mustOffer(t, "loser"); loser.Status != domainoffers.StatusDeclined {
		t.Fatalf("loser status = %s, want declined", loser.Status)
	}
	if winner := env.mustOffer(t, "winner"); winner.Status != domainoffers.StatusAccepted {
		t.Fatalf("winner status = %s, want accepted", winner.Status)
	}
}

// staleReadFactory serves snapshots captured before a rival commit, so every
// write built on them carries a stale version.
type staleReadFactory struct {
	inner   memory.Factory
	offer   *domainoffers.Offer
	listing *domainlistings.Listing
}

func (f staleReadFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &staleReadUnit{UnitOfWork: unit, offer: f.offer, listing: f.listing}, nil
}

type staleReadUnit struct {
	uow.UnitOfWork
	offer   *domainoffers.Offer
	listing *domainlistings.Listing
}

func (u *staleReadUnit) Offers() domainoffers.Repository {
	return staleOffers{Repository: u.UnitOfWork.Offers(), snap: u.offer}
}

func (u *staleReadUnit) Listings() domainlistings.ListingRepository {
	return staleListings{ListingRepository: u.UnitOfWork.Listings(), snap: u.listing}
}

type staleOffers struct {
	domainoffers.Repository
	snap *domainoffers.Offer
}

func (r staleOffers) ByID(ctx context.Context, id domainoffers.OfferID) (*domainoffers.Offer, error) {
	return r.snap, nil
}

type staleListings struct {
	domainlistings.ListingRepository
	snap *domainlistings.Listing
}

func (r staleListings) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	return r.snap, nil
}

func TestRacingAcceptsExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 7000, time.Now().UTC().Add(-time.Hour))
	ctx := context.Background()

	// Both sides read the same state before either commits.
	staleOffer, err := env.offers.ByID(ctx, "offer-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	staleListing, err := env.listings.ByID(ctx, "listing-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}

	if _, err := env.acceptHandler().Handle(ctx, AcceptOfferCommand{OfferID: "offer-1", ActorID: "seller-1"}); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	rival := &AcceptOfferHandler{
		UoWFactory: staleReadFactory{inner: env.factory, offer: staleOffer, listing: staleListing},
		Outbox:     env.box,
		Notifier:   env.notifier,
	}
	_, err = rival.Handle(ctx, AcceptOfferCommand{OfferID: "offer-1", ActorID: "seller-1"})
	if !errors.Is(err, memory.ErrConcurrentUpdate) {
		t.Fatalf("rival accept error = %v, want %v", err, memory.ErrConcurrentUpdate)
	}
	if !fault.IsKind(err, fault.UpstreamFailure) {
		t.Fatalf("rival accept kind = %v, want upstream failure", err)
	}

	offer := env.mustOffer(t, "offer-1")
	accepted := 0
	for _, entry := range offer.History {
		if entry.Action == domainoffers.ActionAccepted {
			accepted++
		}
	}
	if offer.Status != domainoffers.StatusAccepted || accepted != 1 {
		t.Fatalf("offer = %s with %d accept entries, want one accepted transition", offer.Status, accepted)
	}
	listing := env.mustListing(t, "listing-1")
	if listing.SoldTo != "buyer-1" || listing.SoldPriceCents != 7000 {
		t.Fatalf("listing sale = %s/%d, want buyer-1 at 7000", listing.SoldTo, listing.SoldPriceCents)
	}
}

func TestAcceptOfferRequiresSeller(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 7000, time.Now().UTC().Add(-time.Hour))

	_, err := env.acceptHandler().Handle(context.Background(), AcceptOfferCommand{OfferID: "offer-1", ActorID: "buyer-1"})
	if !errors.Is(err, domainoffers.ErrNotSeller) {
		t.Fatalf("buyer accept error = %v, want %v", err, domainoffers.ErrNotSeller)
	}
	if listing := env.mustListing(t, "listing-1"); listing.State == domainlistings.ListingSold {
		t.Fatal("rejected accept must not sell the listing")
	}
}

func TestCounterThenBuyerAccepts(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-time.Hour))

	counter, err := env.respondHandler().HandleCounter(context.Background(), CounterOfferCommand{
		OfferID: "offer-1", ActorID: "seller-1", AmountCents: 8000, Message: "meet in the middle",
	})
	if err != nil {
		t.Fatalf("HandleCounter: %v", err)
	}
	if counter.Status != string(domainoffers.StatusCountered) {
		t.Fatalf("status = %s, want countered", counter.Status)
	}

	accepted, err := env.respondHandler().HandleRespondCounter(context.Background(), RespondCounterCommand{
		OfferID: "offer-1", ActorID: "buyer-1", Accept: true,
	})
	if err != nil {
		t.Fatalf("HandleRespondCounter: %v", err)
	}
	if accepted.Status != string(domainoffers.StatusAccepted) || accepted.AmountCents != 8000 {
		t.Fatalf("result = %+v, want accepted at counter amount 8000", accepted)
	}

	listing := env.mustListing(t, "listing-1")
	if listing.State != domainlistings.ListingSold || listing.SoldPriceCents != 8000 {
		t.Fatalf("listing = %s at %d, want sold at 8000", listing.State, listing.SoldPriceCents)
	}
}

func TestCounterOutOfRangeKeepsOfferPending(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-time.Hour))

	_, err := env.respondHandler().HandleCounter(context.Background(), CounterOfferCommand{
		OfferID: "offer-1", ActorID: "seller-1", AmountCents: 12000,
	})
	if !errors.Is(err, domainoffers.ErrCounterOutOfRange) {
		t.Fatalf("error = %v, want %v", err, domainoffers.ErrCounterOutOfRange)
	}
	if offer := env.mustOffer(t, "offer-1"); offer.Status != domainoffers.StatusPending {
		t.Fatalf("status = %s, rejected counter must leave the offer pending", offer.Status)
	}
}

func TestBuyerDeclinesCounter(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-time.Hour))

	if _, err := env.respondHandler().HandleCounter(context.Background(), CounterOfferCommand{
		OfferID: "offer-1", ActorID: "seller-1", AmountCents: 8000,
	}); err != nil {
		t.Fatalf("HandleCounter: %v", err)
	}
	result, err := env.respondHandler().HandleRespondCounter(context.Background(), RespondCounterCommand{
		OfferID: "offer-1", ActorID: "buyer-1", Accept: false, Reason: "too rich",
	})
	if err != nil {
		t.Fatalf("HandleRespondCounter: %v", err)
	}
	if result.Status != string(domainoffers.StatusDeclined) {
		t.Fatalf("status = %s, want declined", result.Status)
	}
	if listing := env.mustListing(t, "listing-1"); listing.State != domainlistings.ListingActive {
		t.Fatalf("listing state = %s, declined counter must not sell", listing.State)
	}
}

func TestWithdrawOffer(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-time.Hour))

	result, err := env.respondHandler().HandleWithdraw(context.Background(), WithdrawOfferCommand{OfferID: "offer-1", ActorID: "buyer-1"})
	if err != nil {
		t.Fatalf("HandleWithdraw: %v", err)
	}
	if result.Status != string(domainoffers.StatusWithdrawn) {
		t.Fatalf("status = %s, want withdrawn", result.Status)
	}

	_, err = env.respondHandler().HandleWithdraw(context.Background(), WithdrawOfferCommand{OfferID: "offer-1", ActorID: "buyer-1"})
	if !errors.Is(err, domainoffers.ErrInvalidTransition) {
		t.Fatalf("double withdraw error = %v, want %v", err, domainoffers.ErrInvalidTransition)
	}
}

func TestSweepExpiresStalePendingOffers(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "stale-1", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-72*time.Hour))
	env.addOffer(t, "stale-2", "listing-1", "buyer-2", 6500, time.Now().UTC().Add(-50*time.Hour))
	env.addOffer(t, "fresh", "listing-1", "buyer-3", 7000, time.Now().UTC().Add(-time.Hour))

	result, err := env.sweepHandler().SweepExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if result.Expired != 2 {
		t.Fatalf("expired = %d, want 2", result.Expired)
	}
	if offer := env.mustOffer(t, "stale-1"); offer.Status != domainoffers.StatusExpired {
		t.Fatalf("stale-1 status = %s, want expired", offer.Status)
	}
	if offer := env.mustOffer(t, "fresh"); offer.Status != domainoffers.StatusPending {
		t.Fatalf("fresh status = %s, want pending", offer.Status)
	}

	again, err := env.sweepHandler().SweepExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("second SweepExpired: %v", err)
	}
	if again.Expired != 0 {
		t.Fatalf("second sweep expired = %d, want 0", again.Expired)
	}
}

func TestSweepSkipsCounteredOffersWithoutRequeue(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	countered := env.addOffer(t, "countered", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-90*time.Hour))
	if err := countered.PlaceCounter("seller-1", 8000, "", time.Now().UTC().Add(-50*time.Hour)); err != nil {
		t.Fatalf("PlaceCounter: %v", err)
	}
	countered.ClearEvents()
	if err := env.offers.Save(context.Background(), countered); err != nil {
		t.Fatalf("save countered: %v", err)
	}
	env.addOffer(t, "stale", "listing-1", "buyer-2", 6500, time.Now().UTC().Add(-72*time.Hour))

	result, err := env.sweepHandler().SweepExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if result.Expired != 1 {
		t.Fatalf("expired = %d, want only the pending offer", result.Expired)
	}
	if offer := env.mustOffer(t, "countered"); offer.Status != domainoffers.StatusCountered {
		t.Fatalf("countered status = %s, want untouched", offer.Status)
	}

	// A countered offer past its deadline never re-enters the batch.
	stale, err := env.offers.ExpiredPending(context.Background(), time.Now().UTC(), 100)
	if err != nil {
		t.Fatalf("ExpiredPending: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("stale queue = %d offers, want empty after sweep", len(stale))
	}
}

type sessionMark struct{}

// sessionFactory mimics the mongo factory: its units bind repository work to a
// session context via InjectContext.
type sessionFactory struct {
	inner memory.Factory
	seen  *bool
}

func (f sessionFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sessionUnit{UnitOfWork: unit, seen: f.seen}, nil
}

type sessionUnit struct {
	uow.UnitOfWork
	seen *bool
}

func (u *sessionUnit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionMark{}, struct{}{})
}

func (u *sessionUnit) Offers() domainoffers.Repository {
	return sessionOffers{Repository: u.UnitOfWork.Offers(), seen: u.seen}
}

type sessionOffers struct {
	domainoffers.Repository
	seen *bool
}

func (r sessionOffers) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domainoffers.Offer, error) {
	if ctx.Value(sessionMark{}) != nil {
		*r.seen = true
	}
	return r.Repository.ExpiredPending(ctx, now, limit)
}

func TestSweepRunsInsideSessionContext(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "stale", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-72*time.Hour))

	var seen bool
	handler := &SweepHandler{
		UoWFactory: sessionFactory{inner: env.factory, seen: &seen},
		Outbox:     env.box,
		Notifier:   env.notifier,
	}
	if _, err := handler.SweepExpired(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if !seen {
		t.Fatal("repository calls ran outside the session context opened by the unit")
	}
}

func TestSweepNotifiesBuyers(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "stale", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-72*time.Hour))

	if _, err := env.sweepHandler().SweepExpired(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	notices := env.notifier.all()
	if len(notices) != 1 || notices[0].OfferID != "stale" || notices[0].BuyerID != "buyer-1" {
		t.Fatalf("notices = %+v, want one expiry notice for buyer-1", notices)
	}
}

func TestListQueriesScopeByParty(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-a", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-2*time.Hour))
	env.addOffer(t, "offer-b", "listing-1", "buyer-2", 7000, time.Now().UTC().Add(-time.Hour))

	list := &ListHandler{UoWFactory: env.factory}
	received, err := list.HandleReceived(context.Background(), ListReceivedQuery{SellerID: "seller-1"})
	if err != nil {
		t.Fatalf("HandleReceived: %v", err)
	}
	if received.Total != 2 {
		t.Fatalf("received total = %d, want 2", received.Total)
	}
	if received.Items[0].ID != "offer-b" {
		t.Fatalf("received[0] = %s, want newest first", received.Items[0].ID)
	}

	sent, err := list.HandleSent(context.Background(), ListSentQuery{BuyerID: "buyer-1"})
	if err != nil {
		t.Fatalf("HandleSent: %v", err)
	}
	if sent.Total != 1 || sent.Items[0].ID != "offer-a" {
		t.Fatalf("sent = %+v, want only buyer-1's offer", sent.Items)
	}
}

func TestGetOfferLimitedToParties(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "offer-1", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-time.Hour))

	list := &ListHandler{UoWFactory: env.factory}
	if _, err := list.HandleGet(context.Background(), GetOfferQuery{OfferID: "offer-1", ActorID: "buyer-1"}); err != nil {
		t.Fatalf("buyer view: %v", err)
	}
	if _, err := list.HandleGet(context.Background(), GetOfferQuery{OfferID: "offer-1", ActorID: "seller-1"}); err != nil {
		t.Fatalf("seller view: %v", err)
	}
	_, err := list.HandleGet(context.Background(), GetOfferQuery{OfferID: "offer-1", ActorID: "stranger"})
	if !fault.IsKind(err, fault.Forbidden) {
		t.Fatalf("stranger view error = %v, want forbidden kind", err)
	}
}

func TestStaleOfferReadsAsExpiredBeforeSweep(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "listing-1", domainlistings.OfferPolicy{AcceptsOffers: true})
	env.addOffer(t, "stale", "listing-1", "buyer-1", 6000, time.Now().UTC().Add(-72*time.Hour))

	list := &ListHandler{UoWFactory: env.factory}
	view, err := list.HandleGet(context.Background(), GetOfferQuery{OfferID: "stale", ActorID: "buyer-1"})
	if err != nil {
		t.Fatalf("HandleGet: %v", err)
	}
	if view.Status != string(domainoffers.StatusPending) {
		t.Fatalf("status = %s, sweep has not run yet", view.Status)
	}
	if !view.IsExpired {
		t.Fatal("view must report is_expired from the deadline before the sweep flips status")
	}
}
