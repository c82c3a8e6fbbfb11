package socket

import "dockline_server/models"

// Event types pushed to clients.
const (
	EventPresence       = "presence"
	EventNewMessage     = "newMessage"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventMessagesRead   = "messagesRead"
	EventMessageDeleted = "messageDeleted"
)

// Event types accepted from clients. Typing events reuse the constants
// above; joining happens implicitly when the connection is opened.
const (
	EventSubscribe = "subscribe"
)

// Event is the wire envelope for both directions of the realtime channel.
// Fields are populated per event type; the rest stay empty.
type Event struct {
	Type            string          `json:"type"`
	ConversationID  string          `json:"conversationId,omitempty"`
	ConversationIDs []string        `json:"conversationIds,omitempty"`
	UserID          string          `json:"userId,omitempty"`
	Message         *models.Message `json:"message,omitempty"`
	MessageID       string          `json:"messageId,omitempty"`
	MessageIDs      []string        `json:"messageIds,omitempty"`
	OnlineUserIDs   []string        `json:"onlineUserIds,omitempty"`
}
