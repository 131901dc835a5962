package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpromo "gearyard/internal/domain/promo"
)

type PromoRepository struct {
	col *mongo.Collection
}

func NewPromoRepository(db *mongo.Database) *PromoRepository {
	return &PromoRepository{col: db.Collection("agg_promo")}
}

func (r *PromoRepository) ByCode(ctx context.Context, code string) (*domainpromo.Code, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var doc promoDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpromo.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PromoRepository) Save(ctx context.Context, code *domainpromo.Code) error {
	doc := newPromoDocument(code)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r *PromoRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domainpromo.Code, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"seller_id": sellerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainpromo.Code
	for cursor.Next(ctx) {
		var doc promoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type promoDocument struct {
	ID             string `bson:"_id"`
	SellerID       string `bson:"seller_id"`
	Type           string `bson:"type"`
	PercentOff     int64  `bson:"percent_off,omitempty"`
	AmountOffCents int64  `bson:"amount_off_cents,omitempty"`
	MaxRedemptions int    `bson:"max_redemptions,omitempty"`
	Redeemed       int    `bson:"redeemed"`
	Active         bool   `bson:"active"`
	ExpiresAt      int64  `bson:"expires_at,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
}

func newPromoDocument(c *domainpromo.Code) promoDocument {
	doc := promoDocument{
		ID:             c.Code,
		SellerID:       c.SellerID,
		Type:           string(c.Type),
		PercentOff:     c.PercentOff,
		AmountOffCents: c.AmountOffCents,
		MaxRedemptions: c.MaxRedemptions,
		Redeemed:       c.Redeemed,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt.UnixMilli(),
		UpdatedAt:      c.UpdatedAt.UnixMilli(),
	}
	if !c.ExpiresAt.IsZero() {
		doc.ExpiresAt = c.ExpiresAt.UnixMilli()
	}
	return doc
}

func (d promoDocument) toAggregate() *domainpromo.Code {
	agg := &domainpromo.Code{
		Code:           d.ID,
		SellerID:       d.SellerID,
		Type:           domainpromo.DiscountType(d.Type),
		PercentOff:     d.PercentOff,
		AmountOffCents: d.AmountOffCents,
		MaxRedemptions: d.MaxRedemptions,
		Redeemed:       d.Redeemed,
		Active:         d.Active,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
	if d.ExpiresAt != 0 {
		agg.ExpiresAt = timestampToTime(d.ExpiresAt)
	}
	return agg
}
