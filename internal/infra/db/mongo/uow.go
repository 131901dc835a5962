package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gearyard/internal/app/uow"
	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	domainpromo "gearyard/internal/domain/promo"
	domainuser "gearyard/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	OffersRepo        domainoffers.Repository
	ListingsRepo      domainlistings.ListingRepository
	UsersRepo         domainuser.Repository
	ConversationsRepo domainchat.Repository
	PromosRepo        domainpromo.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:            f.DB,
		session:       session,
		offers:        f.OffersRepo,
		listings:      f.ListingsRepo,
		users:         f.UsersRepo,
		conversations: f.ConversationsRepo,
		promos:        f.PromosRepo,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

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
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
