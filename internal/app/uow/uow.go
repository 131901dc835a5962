package uow

import (
	"context"

	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	domainpromo "gearyard/internal/domain/promo"
	domainuser "gearyard/internal/domain/user"
)

// UnitOfWork coordinates repositories inside a transaction boundary. The
// offer-accept path relies on this so the offer write, the listing sale and
// the sibling declines commit together.
type UnitOfWork interface {
	Offers() domainoffers.Repository
	Listings() domainlistings.ListingRepository
	Users() domainuser.Repository
	Conversations() domainchat.Repository
	Promos() domainpromo.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
