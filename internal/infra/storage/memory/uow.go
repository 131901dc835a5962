package memory

import (
	"context"
	"errors"

	"gearyard/internal/app/uow"
	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	domainpromo "gearyard/internal/domain/promo"
	domainuser "gearyard/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	OffersRepo        domainoffers.Repository
	ListingsRepo      domainlistings.ListingRepository
	UsersRepo         domainuser.Repository
	ConversationsRepo domainchat.Repository
	PromosRepo        domainpromo.Repository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. No isolation is provided but
// the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.OffersRepo == nil || f.ListingsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		offers:        f.OffersRepo,
		listings:      f.ListingsRepo,
		users:         f.UsersRepo,
		conversations: f.ConversationsRepo,
		promos:        f.PromosRepo,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	offers        domainoffers.Repository
	listings      domainlistings.ListingRepository
	users         domainuser.Repository
	conversations domainchat.Repository
	promos        domainpromo.Repository
}

func (u *Unit) Offers() domainoffers.Repository {
	return u.offers
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return u.listings
}

func (u *Unit) Users() domainuser.Repository {
	return u.users
}

func (u *Unit) Conversations() domainchat.Repository {
	return u.conversations
}

func (u *Unit) Promos() domainpromo.Repository {
	return u.promos
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
