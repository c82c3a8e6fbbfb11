package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"dockline_server/models"
)

// UnreadStore is the slice of the conversation service the unread cache
// reconciles against: the store is ground truth, the counters a cache.
type UnreadStore interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	MarkRead(ctx context.Context, conversationID, userID string) ([]string, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int, error)
}

// UnreadService caches per-(user, conversation) unread counts. Counters are
// increment/decrement accumulators bounded below by zero, kept cheap for the
// delivery path and reconciled from the store to correct drift.
type UnreadService struct {
	Store UnreadStore

	mu     sync.Mutex
	counts map[string]map[string]int // userId -> conversationId -> unread
}

// NewUnreadService initializes an UnreadService.
func NewUnreadService(store UnreadStore) *UnreadService {
	return &UnreadService{
		Store:  store,
		counts: make(map[string]map[string]int),
	}
}

// OnMessageDelivered increments the recipient's counter for the
// conversation. The broker calls this only for members not currently
// viewing the conversation.
func (s *UnreadService) OnMessageDelivered(recipientID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counts[recipientID] == nil {
		s.counts[recipientID] = make(map[string]int)
	}
	s.counts[recipientID][conversationID]++
}

// OnConversationOpened marks the conversation read in the store, then zeroes
// the pair counter. The global total is derived as the sum over
// conversations, so it drops by exactly the amount zeroed and can never go
// negative. Returns the message IDs the store actually changed.
func (s *UnreadService) OnConversationOpened(ctx context.Context, userID, conversationID string) ([]string, error) {
	updatedIDs, err := s.Store.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark conversation read: %w", err)
	}

	s.mu.Lock()
	if perConversation, ok := s.counts[userID]; ok {
		delete(perConversation, conversationID)
	}
	s.mu.Unlock()

	return updatedIDs, nil
}

// GetConversationCount returns the cached unread count for one conversation.
func (s *UnreadService) GetConversationCount(userID, conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID][conversationID]
}

// GetGlobalTotal returns the user's unread total across all conversations.
func (s *UnreadService) GetGlobalTotal(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, count := range s.counts[userID] {
		total += count
	}
	return total
}

// Reconcile recomputes the user's counters from the store, replacing
// whatever the cache accumulated. Run on login or cold start to correct
// drift from missed delivery events.
func (s *UnreadService) Reconcile(ctx context.Context, userID string) error {
	conversations, err := s.Store.ListConversations(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list conversations for reconcile: %w", err)
	}

	recomputed := make(map[string]int)
	for _, conversation := range conversations {
		count, err := s.Store.CountUnread(ctx, conversation.ConversationID, userID)
		if err != nil {
			return fmt.Errorf("failed to count unread in %s: %w", conversation.ConversationID, err)
		}
		if count > 0 {
			recomputed[conversation.ConversationID] = count
		}
	}

	s.mu.Lock()
	s.counts[userID] = recomputed
	s.mu.Unlock()

	log.Printf("🔄 Reconciled unread counters for %s across %d conversations", userID, len(conversations))
	return nil
}
