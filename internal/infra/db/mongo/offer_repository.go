package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type OfferRepository struct {
	col *mongo.Collection
}

func NewOfferRepository(db *mongo.Database) *OfferRepository {
	return &OfferRepository{col: db.Collection("agg_offer")}
}

func (r *OfferRepository) ByID(ctx context.Context, id domainoffers.OfferID) (*domainoffers.Offer, error) {
	var doc offerDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainoffers.ErrOfferNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *OfferRepository) Save(ctx context.Context, o *domainoffers.Offer) error {
	doc := newOfferDocument(o)
	filter := bson.M{"_id": doc.ID, "version": o.Version}
	doc.Version = o.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	o.Version = doc.Version
	return nil
}

func (r *OfferRepository) ActiveByListingAndBuyer(ctx context.Context, listingID listings.ListingID, buyerID string) (*domainoffers.Offer, error) {
	filter := bson.M{
		"listing_id": string(listingID),
		"buyer_id":   buyerID,
		"status":     bson.M{"$in": []string{string(domainoffers.StatusPending), string(domainoffers.StatusCountered)}},
	}
	return r.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *OfferRepository) PendingByListing(ctx context.Context, listingID listings.ListingID) ([]*domainoffers.Offer, error) {
	filter := bson.M{
		"listing_id": string(listingID),
		"status":     bson.M{"$in": []string{string(domainoffers.StatusPending), string(domainoffers.StatusCountered)}},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *OfferRepository) ListBySeller(ctx context.Context, sellerID string, f domainoffers.ListFilter) ([]*domainoffers.Offer, error) {
	return r.list(ctx, bson.M{"seller_id": sellerID}, f)
}

func (r *OfferRepository) ListByBuyer(ctx context.Context, buyerID string, f domainoffers.ListFilter) ([]*domainoffers.Offer, error) {
	return r.list(ctx, bson.M{"buyer_id": buyerID}, f)
}

func (r *OfferRepository) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domainoffers.Offer, error) {
	filter := bson.M{
		"status":     string(domainoffers.StatusPending),
		"expires_at": bson.M{"$lt": now.UTC().UnixMilli()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *OfferRepository) list(ctx context.Context, filter bson.M, f domainoffers.ListFilter) ([]*domainoffers.Offer, error) {
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.ListingID != "" {
		filter["listing_id"] = string(f.ListingID)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *OfferRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domainoffers.Offer, error) {
	var doc offerDocument
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainoffers.ErrOfferNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *OfferRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainoffers.Offer, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainoffers.Offer
	for cursor.Next(ctx) {
		var doc offerDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type offerDocument struct {
	ID                 string                 `bson:"_id"`
	ListingID          string                 `bson:"listing_id"`
	BuyerID            string                 `bson:"buyer_id"`
	SellerID           string                 `bson:"seller_id"`
	AmountCents        int64                  `bson:"amount_cents"`
	OriginalPriceCents int64                  `bson:"original_price_cents"`
	AutoAcceptCents    int64                  `bson:"auto_accept_cents"`
	MinimumCents       int64                  `bson:"minimum_cents"`
	Status             string                 `bson:"status"`
	Counter            *counterDocument       `bson:"counter,omitempty"`
	ExpiresAt          int64                  `bson:"expires_at"`
	AcceptedAt         int64                  `bson:"accepted_at,omitempty"`
	DeclinedAt         int64                  `bson:"declined_at,omitempty"`
	History            []historyEntryDocument `bson:"history"`
	CreatedAt          int64                  `bson:"created_at"`
	UpdatedAt          int64                  `bson:"updated_at"`
	Version            int64                  `bson:"version"`
}

type counterDocument struct {
	AmountCents int64  `bson:"amount_cents"`
	Message     string `bson:"message,omitempty"`
	CreatedAt   int64  `bson:"created_at"`
}

type historyEntryDocument struct {
	Action      string `bson:"action"`
	AmountCents int64  `bson:"amount_cents"`
	Message     string `bson:"message,omitempty"`
	ActorID     string `bson:"actor_id,omitempty"`
	At          int64  `bson:"at"`
}

func newOfferDocument(o *domainoffers.Offer) offerDocument {
	doc := offerDocument{
		ID:                 string(o.ID),
		ListingID:          string(o.ListingID),
		BuyerID:            o.BuyerID,
		SellerID:           o.SellerID,
		AmountCents:        o.AmountCents,
		OriginalPriceCents: o.OriginalPriceCents,
		AutoAcceptCents:    o.AutoAcceptCents,
		MinimumCents:       o.MinimumCents,
		Status:             string(o.Status),
		ExpiresAt:          o.ExpiresAt.UnixMilli(),
		CreatedAt:          o.CreatedAt.UnixMilli(),
		UpdatedAt:          o.UpdatedAt.UnixMilli(),
		Version:            o.Version,
	}
	if o.Counter != nil {
		doc.Counter = &counterDocument{
			AmountCents: o.Counter.AmountCents,
			Message:     o.Counter.Message,
			CreatedAt:   o.Counter.CreatedAt.UnixMilli(),
		}
	}
	if !o.AcceptedAt.IsZero() {
		doc.AcceptedAt = o.AcceptedAt.UnixMilli()
	}
	if !o.DeclinedAt.IsZero() {
		doc.DeclinedAt = o.DeclinedAt.UnixMilli()
	}
	doc.History = make([]historyEntryDocument, 0, len(o.History))
	for _, entry := range o.History {
		doc.History = append(doc.History, historyEntryDocument{
			Action:      entry.Action,
			AmountCents: entry.AmountCents,
			Message:     entry.Message,
			ActorID:     entry.ActorID,
			At:          entry.At.UnixMilli(),
		})
	}
	return doc
}

func (d offerDocument) toAggregate() *domainoffers.Offer {
	agg := &domainoffers.Offer{
		ID:                 domainoffers.OfferID(d.ID),
		ListingID:          listings.ListingID(d.ListingID),
		BuyerID:            d.BuyerID,
		SellerID:           d.SellerID,
		AmountCents:        d.AmountCents,
		OriginalPriceCents: d.OriginalPriceCents,
		AutoAcceptCents:    d.AutoAcceptCents,
		MinimumCents:       d.MinimumCents,
		Status:             domainoffers.Status(d.Status),
		ExpiresAt:          timestampToTime(d.ExpiresAt),
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
		Version:            d.Version,
	}
	if d.Counter != nil {
		agg.Counter = &domainoffers.CounterOffer{
			AmountCents: d.Counter.AmountCents,
			Message:     d.Counter.Message,
			CreatedAt:   timestampToTime(d.Counter.CreatedAt),
		}
	}
	if d.AcceptedAt != 0 {
		agg.AcceptedAt = timestampToTime(d.AcceptedAt)
	}
	if d.DeclinedAt != 0 {
		agg.DeclinedAt = timestampToTime(d.DeclinedAt)
	}
	agg.History = make([]domainoffers.HistoryEntry, 0, len(d.History))
	for _, entry := range d.History {
		agg.History = append(agg.History, domainoffers.HistoryEntry{
			Action:      entry.Action,
			AmountCents: entry.AmountCents,
			Message:     entry.Message,
			ActorID:     entry.ActorID,
			At:          timestampToTime(entry.At),
		})
	}
	return agg
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
