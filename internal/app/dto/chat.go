package dto

import (
	"time"

	domainchat "gearyard/internal/domain/chat"
)

// Conversation describes chat metadata for one participant.
type Conversation struct {
	ID            string    `json:"id"`
	ListingID     string    `json:"listing_id"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	Unread        int       `json:"unread"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	OfferID        string    `json:"offer_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}

// MapConversation renders the thread from the viewer's side so the unread
// counter is theirs, not their counterpart's.
func MapConversation(conv *domainchat.Conversation, viewerID string) Conversation {
	if conv == nil {
		return Conversation{}
	}
	return Conversation{
		ID:            string(conv.ID),
		ListingID:     string(conv.ListingID),
		BuyerID:       conv.BuyerID,
		SellerID:      conv.SellerID,
		Unread:        conv.UnreadFor(viewerID),
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
}

func NewConversationList(items []*domainchat.Conversation, viewerID string) *ConversationList {
	list := &ConversationList{Items: make([]Conversation, 0, len(items))}
	for _, item := range items {
		list.Items = append(list.Items, MapConversation(item, viewerID))
	}
	return list
}

func MapChatMessage(msg *domainchat.Message) ChatMessage {
	if msg == nil {
		return ChatMessage{}
	}
	return ChatMessage{
		ID:             string(msg.ID),
		ConversationID: string(msg.ConversationID),
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		OfferID:        msg.OfferID,
		CreatedAt:      msg.CreatedAt,
	}
}

func NewChatMessageList(items []*domainchat.Message) *ChatMessageList {
	list := &ChatMessageList{Items: make([]ChatMessage, 0, len(items))}
	for _, item := range items {
		list.Items = append(list.Items, MapChatMessage(item))
	}
	return list
}
