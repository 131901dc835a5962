package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "gearyard/internal/domain/chat"
	"gearyard/internal/domain/listings"
)

type ConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	conversations := db.Collection("agg_conversation")
	messages := db.Collection("agg_message")
	_, _ = conversations.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "buyer_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = messages.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return &ConversationRepository{conversations: conversations, messages: messages}
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := r.conversations.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) ByListingAndBuyer(ctx context.Context, listingID listings.ListingID, buyerID string) (*domainchat.Conversation, error) {
	filter := bson.M{"listing_id": string(listingID), "buyer_id": buyerID}
	var doc conversationDocument
	if err := r.conversations.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) Save(ctx context.Context, conv *domainchat.Conversation) error {
	doc := newConversationDocument(conv)
	_, err := r.conversations.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string, limit int) ([]*domainchat.Conversation, error) {
	filter := bson.M{"$or": bson.A{bson.M{"buyer_id": userID}, bson.M{"seller_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainchat.Conversation
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *domainchat.Message) error {
	_, err := r.messages.InsertOne(ctx, newMessageDocument(msg))
	return err
}

func (r *ConversationRepository) Messages(ctx context.Context, id domainchat.ConversationID, limit int, before time.Time) ([]*domainchat.Message, error) {
	filter := bson.M{"conversation_id": string(id)}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before.UTC().UnixMilli()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainchat.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type conversationDocument struct {
	ID             string `bson:"_id"`
	ListingID      string `bson:"listing_id"`
	BuyerID        string `bson:"buyer_id"`
	SellerID       string `bson:"seller_id"`
	UnreadByBuyer  int    `bson:"unread_by_buyer"`
	UnreadBySeller int    `bson:"unread_by_seller"`
	LastMessageAt  int64  `bson:"last_message_at,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
}

func newConversationDocument(c *domainchat.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:             string(c.ID),
		ListingID:      string(c.ListingID),
		BuyerID:        c.BuyerID,
		SellerID:       c.SellerID,
		UnreadByBuyer:  c.UnreadByBuyer,
		UnreadBySeller: c.UnreadBySeller,
		CreatedAt:      c.CreatedAt.UnixMilli(),
		UpdatedAt:      c.UpdatedAt.UnixMilli(),
	}
	if !c.LastMessageAt.IsZero() {
		doc.LastMessageAt = c.LastMessageAt.UnixMilli()
	}
	return doc
}

func (d conversationDocument) toAggregate() *domainchat.Conversation {
	agg := &domainchat.Conversation{
		ID:             domainchat.ConversationID(d.ID),
		ListingID:      listings.ListingID(d.ListingID),
		BuyerID:        d.BuyerID,
		SellerID:       d.SellerID,
		UnreadByBuyer:  d.UnreadByBuyer,
		UnreadBySeller: d.UnreadBySeller,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
	if d.LastMessageAt != 0 {
		agg.LastMessageAt = timestampToTime(d.LastMessageAt)
	}
	return agg
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	Text           string `bson:"text"`
	OfferID        string `bson:"offer_id,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       m.SenderID,
		Text:           m.Text,
		OfferID:        m.OfferID,
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

func (d messageDocument) toAggregate() *domainchat.Message {
	return &domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		SenderID:       d.SenderID,
		Text:           d.Text,
		OfferID:        d.OfferID,
		CreatedAt:      timestampToTime(d.CreatedAt),
	}
}
