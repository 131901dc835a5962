package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
)

// ConversationRepository keeps chat threads and messages in memory.
type ConversationRepository struct {
	mu       sync.RWMutex
	threads  map[domainchat.ConversationID]*domainchat.Conversation
	messages map[domainchat.ConversationID][]*domainchat.Message
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		threads:  make(map[domainchat.ConversationID]*domainchat.Conversation),
		messages: make(map[domainchat.ConversationID][]*domainchat.Message),
	}
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.threads[id]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) ByListingAndBuyer(ctx context.Context, listingID domainlistings.ListingID, buyerID string) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conv := range r.threads {
		if conv.ListingID == listingID && conv.BuyerID == buyerID {
			return cloneConversation(conv), nil
		}
	}
	return nil, domainchat.ErrNotFound
}

func (r *ConversationRepository) Save(ctx context.Context, conv *domainchat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[conv.ID] = cloneConversation(conv)
	return nil
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string, limit int) ([]*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainchat.Conversation
	for _, conv := range r.threads {
		if conv.BuyerID == userID || conv.SellerID == userID {
			out = append(out, cloneConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *domainchat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyMsg := *msg
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], &copyMsg)
	return nil
}

func (r *ConversationRepository) Messages(ctx context.Context, id domainchat.ConversationID, limit int, before time.Time) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainchat.Message
	for _, msg := range r.messages[id] {
		if !before.IsZero() && !msg.CreatedAt.Before(before) {
			continue
		}
		copyMsg := *msg
		out = append(out, &copyMsg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	if c == nil {
		return nil
	}
	copyConv := *c
	return &copyConv
}
