package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gearyard/internal/app/policies"
	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
	"gearyard/internal/domain/shared/fault"
)

var ErrNotParticipant = fault.New(fault.Forbidden, "chat: not a participant of this conversation")

const defaultPageSize = 50

type Service struct {
	Conversations domainchat.Repository
	Listings      domainlistings.ListingRepository
	Logger        *slog.Logger
}

type SendParams struct {
	ConversationID domainchat.ConversationID
	SenderID       string
	Text           string
}

// Open returns the thread between the buyer and the listing's seller,
// creating it on first contact.
func (s *Service) Open(ctx context.Context, listingID domainlistings.ListingID, buyerID string) (*domainchat.Conversation, error) {
	conv, err := s.Conversations.ByListingAndBuyer(ctx, listingID, buyerID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domainchat.ErrNotFound) {
		return nil, err
	}
	listing, err := s.Listings.ByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if string(listing.Seller) == buyerID {
		return nil, fault.New(fault.ValidationFailed, "chat: cannot open a conversation with yourself")
	}
	conv, err = domainchat.NewConversation(domainchat.CreateParams{
		ID:        domainchat.ConversationID(uuid.NewString()),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  string(listing.Seller),
		Now:       time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Conversations.Save(ctx, conv); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("conversation opened", "conversation_id", conv.ID, "listing_id", listingID, "buyer_id", buyerID)
	}
	return conv, nil
}

func (s *Service) Send(ctx context.Context, params SendParams) (*domainchat.Message, error) {
	conv, err := s.Conversations.ByID(ctx, params.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Participant(params.SenderID) {
		return nil, ErrNotParticipant
	}
	now := time.Now()
	if err := conv.Append(params.SenderID, params.Text, now); err != nil {
		return nil, err
	}
	msg := &domainchat.Message{
		ID:             domainchat.MessageID(uuid.NewString()),
		ConversationID: conv.ID,
		SenderID:       params.SenderID,
		Text:           strings.TrimSpace(params.Text),
		CreatedAt:      now.UTC(),
	}
	if err := s.Conversations.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.Conversations.Save(ctx, conv); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) List(ctx context.Context, userID string, limit int) ([]*domainchat.Conversation, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.Conversations.ListByParticipant(ctx, userID, limit)
}

func (s *Service) Messages(ctx context.Context, id domainchat.ConversationID, viewerID string, limit int, before time.Time) ([]*domainchat.Message, error) {
	conv, err := s.Conversations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.Participant(viewerID) {
		return nil, ErrNotParticipant
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.Conversations.Messages(ctx, id, limit, before)
}

func (s *Service) MarkRead(ctx context.Context, id domainchat.ConversationID, userID string) (*domainchat.Conversation, error) {
	conv, err := s.Conversations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := conv.MarkRead(userID, time.Now()); err != nil {
		return nil, ErrNotParticipant
	}
	if err := s.Conversations.Save(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// NotifyOffer drops a system message about a negotiation transition into the
// buyer/seller thread, opening the thread if this is the first contact.
func (s *Service) NotifyOffer(ctx context.Context, notice policies.OfferNotice) error {
	conv, err := s.Conversations.ByListingAndBuyer(ctx, notice.ListingID, notice.BuyerID)
	if errors.Is(err, domainchat.ErrNotFound) {
		conv, err = domainchat.NewConversation(domainchat.CreateParams{
			ID:        domainchat.ConversationID(uuid.NewString()),
			ListingID: notice.ListingID,
			BuyerID:   notice.BuyerID,
			SellerID:  notice.SellerID,
			Now:       time.Now(),
		})
		if err == nil {
			err = s.Conversations.Save(ctx, conv)
		}
	}
	if err != nil {
		return err
	}
	now := time.Now()
	if err := conv.Append(domainchat.SystemSender, notice.Text, now); err != nil {
		return err
	}
	msg := &domainchat.Message{
		ID:             domainchat.MessageID(uuid.NewString()),
		ConversationID: conv.ID,
		SenderID:       domainchat.SystemSender,
		Text:           notice.Text,
		OfferID:        string(notice.OfferID),
		CreatedAt:      now.UTC(),
	}
	if err := s.Conversations.AppendMessage(ctx, msg); err != nil {
		return err
	}
	return s.Conversations.Save(ctx, conv)
}

var _ policies.Notifier = (*Service)(nil)
