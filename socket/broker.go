package socket

import (
	"context"
	"log"
	"sort"
	"sync"

	"dockline_server/models"
)

// MemberDirectory resolves conversation membership for fan-out and
// subscription checks.
type MemberDirectory interface {
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
}

// UnreadSink receives delivery notifications for members who were not
// viewing the conversation when a message arrived.
type UnreadSink interface {
	OnMessageDelivered(recipientID, conversationID string)
}

// Broker is the single coordination point for realtime fan-out. It owns the
// presence registry (user → live connections) and the per-connection
// subscription sets, and serializes all publishes for a conversation under
// one lock so subscribers observe them in publish order. Cross-conversation
// ordering is not guaranteed.
type Broker struct {
	Members MemberDirectory
	Unread  UnreadSink

	mu       sync.Mutex
	presence map[string]map[string]*Client // userID -> connectionID -> client
	channels map[string]map[string]*Client // conversationID -> connectionID -> client
}

// NewBroker initializes a Broker.
func NewBroker(members MemberDirectory, unread UnreadSink) *Broker {
	return &Broker{
		Members:  members,
		Unread:   unread,
		presence: make(map[string]map[string]*Client),
		channels: make(map[string]map[string]*Client),
	}
}

// Join registers a freshly connected client and broadcasts the updated
// online-user set to every connection. Presence is coarse: online users,
// not per-conversation.
func (b *Broker) Join(client *Client) {
	b.mu.Lock()
	if b.presence[client.UserID] == nil {
		b.presence[client.UserID] = make(map[string]*Client)
	}
	b.presence[client.UserID][client.ID] = client
	b.broadcastPresenceLocked()
	b.mu.Unlock()

	log.Printf("✅ Socket connected: %s (user %s)", client.ID, client.UserID)
}

// Leave removes a disconnected client from the presence registry and every
// channel it joined. Subscriptions are garbage-collected with the
// connection; the online set is re-broadcast only when the user's last
// connection closed.
func (b *Broker) Leave(client *Client) {
	b.mu.Lock()
	for conversationID, subscribers := range b.channels {
		delete(subscribers, client.ID)
		if len(subscribers) == 0 {
			delete(b.channels, conversationID)
		}
	}

	lastConnection := false
	if connections, ok := b.presence[client.UserID]; ok {
		delete(connections, client.ID)
		if len(connections) == 0 {
			delete(b.presence, client.UserID)
			lastConnection = true
		}
	}
	if lastConnection {
		b.broadcastPresenceLocked()
	}
	close(client.send)
	b.mu.Unlock()

	log.Printf("❌ Socket disconnected: %s (user %s)", client.ID, client.UserID)
}

// Subscribe adds the client to the given conversation channels in one call.
// Non-members are skipped so presence and typing state never leak across
// unrelated conversations.
func (b *Broker) Subscribe(ctx context.Context, client *Client, conversationIDs []string) {
	for _, conversationID := range conversationIDs {
		conversation, err := b.Members.GetConversation(ctx, conversationID)
		if err != nil {
			log.Printf("⚠️ Subscribe to %s failed: %v", conversationID, err)
			continue
		}
		if !conversation.HasMember(client.UserID) {
			log.Printf("⚠️ User %s is not a member of %s, subscription denied", client.UserID, conversationID)
			continue
		}

		b.mu.Lock()
		if b.channels[conversationID] == nil {
			b.channels[conversationID] = make(map[string]*Client)
		}
		b.channels[conversationID][client.ID] = client
		b.mu.Unlock()
	}
}

// Unsubscribe removes the client from a conversation channel.
func (b *Broker) Unsubscribe(client *Client, conversationID string) {
	b.mu.Lock()
	if subscribers, ok := b.channels[conversationID]; ok {
		delete(subscribers, client.ID)
		if len(subscribers) == 0 {
			delete(b.channels, conversationID)
		}
	}
	b.mu.Unlock()
}

// OnlineUsers returns the sorted set of users with at least one live
// connection.
func (b *Broker) OnlineUsers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onlineUsersLocked()
}

func (b *Broker) onlineUsersLocked() []string {
	users := make([]string, 0, len(b.presence))
	for userID := range b.presence {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func (b *Broker) broadcastPresenceLocked() {
	event := Event{Type: EventPresence, OnlineUserIDs: b.onlineUsersLocked()}
	for _, connections := range b.presence {
		for _, client := range connections {
			client.enqueue(event)
		}
	}
}

// PublishMessage fans a persisted message out to every connection
// subscribed to the conversation except the sender's own (the sender
// already has it from the REST response). Members with no subscribed
// connection get an unread increment instead: the broker, not the client,
// decides delivered versus viewing.
func (b *Broker) PublishMessage(ctx context.Context, conversationID string, message models.Message) {
	conversation, err := b.Members.GetConversation(ctx, conversationID)
	if err != nil {
		log.Printf("⚠️ PublishMessage: cannot resolve %s: %v", conversationID, err)
		return
	}

	event := Event{Type: EventNewMessage, ConversationID: conversationID, Message: &message}

	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.channels[conversationID]
	for _, memberID := range conversation.MemberIDs {
		if memberID == message.SenderID {
			continue
		}

		viewing := false
		for _, client := range subscribers {
			if client.UserID == memberID {
				client.enqueue(event)
				viewing = true
			}
		}
		if !viewing {
			b.Unread.OnMessageDelivered(memberID, conversationID)
		}
	}
}

// PublishTyping broadcasts a typing indicator to current subscribers.
// Fire-and-forget: no persistence and no delivery guarantee. Receivers clear
// stale indicators themselves (see TypingSet).
func (b *Broker) PublishTyping(conversationID, userID string) {
	b.publishToSubscribers(conversationID, userID, Event{
		Type:           EventTyping,
		ConversationID: conversationID,
		UserID:         userID,
	})
}

// PublishStopTyping broadcasts the end of a typing indicator. Senders are
// expected to debounce this themselves (~1.2s of inactivity).
func (b *Broker) PublishStopTyping(conversationID, userID string) {
	b.publishToSubscribers(conversationID, userID, Event{
		Type:           EventStopTyping,
		ConversationID: conversationID,
		UserID:         userID,
	})
}

// PublishRead informs other members' connections which messages flipped to
// read, so sent-message UI can show the seen tick.
func (b *Broker) PublishRead(conversationID, userID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	b.publishToSubscribers(conversationID, userID, Event{
		Type:           EventMessagesRead,
		ConversationID: conversationID,
		UserID:         userID,
		MessageIDs:     messageIDs,
	})
}

// PublishDelete tells all subscribers to drop the message locally.
func (b *Broker) PublishDelete(conversationID, messageID string) {
	b.publishToSubscribers(conversationID, "", Event{
		Type:           EventMessageDeleted,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

// publishToSubscribers fans an event out to the conversation's subscribers,
// skipping every connection of excludeUserID when set.
func (b *Broker) publishToSubscribers(conversationID, excludeUserID string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, client := range b.channels[conversationID] {
		if excludeUserID != "" && client.UserID == excludeUserID {
			continue
		}
		client.enqueue(event)
	}
}
