package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"gearyard/internal/domain/listings"
)

var (
	ErrNotFound       = errors.New("chat: conversation not found")
	ErrNotParticipant = errors.New("chat: sender is not a participant")
	ErrEmptyMessage   = errors.New("chat: message text is required")
)

// SystemSender marks messages appended by the platform itself, such as offer
// negotiation updates.
const SystemSender = "system"

type ConversationID string
type MessageID string

// Conversation is the single thread between one buyer and one seller about
// one listing. Unread counters are bookkept per participant: appending a
// message increments the other party's counter, reading resets your own.
type Conversation struct {
	ID             ConversationID
	ListingID      listings.ListingID
	BuyerID        string
	SellerID       string
	UnreadByBuyer  int
	UnreadBySeller int
	LastMessageAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Text           string
	OfferID        string // set when the message announces an offer transition
	CreatedAt      time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// ByListingAndBuyer finds the thread for one (listing, buyer) pair.
	ByListingAndBuyer(ctx context.Context, listingID listings.ListingID, buyerID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	ListByParticipant(ctx context.Context, userID string, limit int) ([]*Conversation, error)
	AppendMessage(ctx context.Context, msg *Message) error
	Messages(ctx context.Context, id ConversationID, limit int, before time.Time) ([]*Message, error)
}

type CreateParams struct {
	ID        ConversationID
	ListingID listings.ListingID
	BuyerID   string
	SellerID  string
	Now       time.Time
}

func NewConversation(params CreateParams) (*Conversation, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("chat: id is required")
	}
	if strings.TrimSpace(params.BuyerID) == "" || strings.TrimSpace(params.SellerID) == "" {
		return nil, errors.New("chat: both participants are required")
	}
	if params.BuyerID == params.SellerID {
		return nil, errors.New("chat: participants must differ")
	}
	now := params.Now.UTC()
	return &Conversation{
		ID:        params.ID,
		ListingID: params.ListingID,
		BuyerID:   params.BuyerID,
		SellerID:  params.SellerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Participant reports whether the user belongs to this thread. SystemSender
// is always allowed so negotiation updates can land in the conversation.
func (c *Conversation) Participant(userID string) bool {
	return userID == c.BuyerID || userID == c.SellerID || userID == SystemSender
}

// Append validates the sender and bumps unread bookkeeping. System messages
// are unread for both parties.
func (c *Conversation) Append(senderID, text string, now time.Time) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if !c.Participant(senderID) {
		return ErrNotParticipant
	}
	now = now.UTC()
	switch senderID {
	case c.BuyerID:
		c.UnreadBySeller++
	case c.SellerID:
		c.UnreadByBuyer++
	default:
		c.UnreadByBuyer++
		c.UnreadBySeller++
	}
	c.LastMessageAt = now
	c.UpdatedAt = now
	return nil
}

// MarkRead clears the reader's unread counter.
func (c *Conversation) MarkRead(userID string, now time.Time) error {
	switch userID {
	case c.BuyerID:
		c.UnreadByBuyer = 0
	case c.SellerID:
		c.UnreadBySeller = 0
	default:
		return ErrNotParticipant
	}
	c.UpdatedAt = now.UTC()
	return nil
}

// UnreadFor returns the unread counter for the given participant.
func (c *Conversation) UnreadFor(userID string) int {
	switch userID {
	case c.BuyerID:
		return c.UnreadByBuyer
	case c.SellerID:
		return c.UnreadBySeller
	default:
		return 0
	}
}
