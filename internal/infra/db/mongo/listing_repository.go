package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "gearyard/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("agg_listing")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := newListingDocument(l)
	filter := bson.M{"_id": doc.ID, "version": l.Version}
	doc.Version = l.Version + 1
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
	l.Version = doc.Version
	return nil
}

func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	params = params.Normalized()
	filter := bson.M{}
	if params.OnlyActive {
		filter["state"] = string(domainlistings.ListingActive)
	}
	if params.AcceptsOnly {
		filter["policy.accepts_offers"] = true
	}
	if params.Category != "" {
		filter["category"] = params.Category
	}
	if params.Brand != "" {
		filter["brand"] = bson.M{"$regex": "^" + params.Brand + "$", "$options": "i"}
	}
	if len(params.Conditions) > 0 {
		conditions := make([]string, 0, len(params.Conditions))
		for _, c := range params.Conditions {
			conditions = append(conditions, string(c))
		}
		filter["condition"] = bson.M{"$in": conditions}
	}
	price := bson.M{}
	if params.MinCents > 0 {
		price["$gte"] = params.MinCents
	}
	if params.MaxCents > 0 {
		price["$lte"] = params.MaxCents
	}
	if len(price) > 0 {
		filter["price_cents"] = price
	}
	if params.Query != "" {
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": params.Query, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": params.Query, "$options": "i"}},
		}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	opts := options.Find().
		SetSort(sortFor(params.Sort)).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))
	items, err := r.find(ctx, filter, opts)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	return domainlistings.SearchResult{Items: items, Total: int(total)}, nil
}

func (r *ListingRepository) ListBySeller(ctx context.Context, seller domainlistings.SellerID) ([]*domainlistings.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"seller_id": string(seller)}, opts)
}

func (r *ListingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainlistings.Listing, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainlistings.Listing
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func sortFor(order domainlistings.SortOrder) bson.D {
	switch order {
	case domainlistings.SortPriceAsc:
		return bson.D{{Key: "price_cents", Value: 1}}
	case domainlistings.SortPriceDesc:
		return bson.D{{Key: "price_cents", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}}
	}
}

type listingDocument struct {
	ID             string         `bson:"_id"`
	SellerID       string         `bson:"seller_id"`
	Title          string         `bson:"title"`
	Description    string         `bson:"description"`
	Category       string         `bson:"category"`
	Brand          string         `bson:"brand,omitempty"`
	Condition      string         `bson:"condition"`
	PriceCents     int64          `bson:"price_cents"`
	Policy         policyDocument `bson:"policy"`
	State          string         `bson:"state"`
	Photos         []string       `bson:"photos,omitempty"`
	SoldTo         string         `bson:"sold_to,omitempty"`
	SoldPriceCents int64          `bson:"sold_price_cents,omitempty"`
	SoldAt         int64          `bson:"sold_at,omitempty"`
	CreatedAt      int64          `bson:"created_at"`
	UpdatedAt      int64          `bson:"updated_at"`
	Version        int64          `bson:"version"`
}

type policyDocument struct {
	AcceptsOffers   bool  `bson:"accepts_offers"`
	MinimumCents    int64 `bson:"minimum_cents,omitempty"`
	AutoAcceptCents int64 `bson:"auto_accept_cents,omitempty"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	doc := listingDocument{
		ID:          string(l.ID),
		SellerID:    string(l.Seller),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Brand:       l.Brand,
		Condition:   string(l.Condition),
		PriceCents:  l.PriceCents,
		Policy: policyDocument{
			AcceptsOffers:   l.Policy.AcceptsOffers,
			MinimumCents:    l.Policy.MinimumCents,
			AutoAcceptCents: l.Policy.AutoAcceptCents,
		},
		State:          string(l.State),
		Photos:         l.Photos,
		SoldTo:         l.SoldTo,
		SoldPriceCents: l.SoldPriceCents,
		CreatedAt:      l.CreatedAt.UnixMilli(),
		UpdatedAt:      l.UpdatedAt.UnixMilli(),
		Version:        l.Version,
	}
	if !l.SoldAt.IsZero() {
		doc.SoldAt = l.SoldAt.UnixMilli()
	}
	return doc
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	agg := &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Seller:      domainlistings.SellerID(d.SellerID),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Brand:       d.Brand,
		Condition:   domainlistings.Condition(d.Condition),
		PriceCents:  d.PriceCents,
		Policy: domainlistings.OfferPolicy{
			AcceptsOffers:   d.Policy.AcceptsOffers,
			MinimumCents:    d.Policy.MinimumCents,
			AutoAcceptCents: d.Policy.AutoAcceptCents,
		},
		State:          domainlistings.ListingState(d.State),
		Photos:         d.Photos,
		SoldTo:         d.SoldTo,
		SoldPriceCents: d.SoldPriceCents,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
		Version:        d.Version,
	}
	if d.SoldAt != 0 {
		agg.SoldAt = timestampToTime(d.SoldAt)
	}
	return agg
}
