package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"dockline_server/models"
	"dockline_server/services"
)

// RealtimePublisher is the slice of the broker the REST write path needs.
// Persistence always happens first; a lost push is recovered by the next
// fetch, a push without persistence never happens.
type RealtimePublisher interface {
	PublishMessage(ctx context.Context, conversationID string, message models.Message)
	PublishRead(conversationID, userID string, messageIDs []string)
	PublishDelete(conversationID, messageID string)
}

// ChatController exposes the message read/write surface.
type ChatController struct {
	Chat     *services.ConversationService
	Unread   *services.UnreadService
	Realtime RealtimePublisher
}

// NewChatController initializes the chat controller
func NewChatController(chat *services.ConversationService, unread *services.UnreadService, realtime RealtimePublisher) *ChatController {
	return &ChatController{Chat: chat, Unread: unread, Realtime: realtime}
}

// messageView decorates a message with the state recomputed on every read.
type messageView struct {
	models.Message
	SenderName string `json:"senderName"`
	Seen       bool   `json:"seen"`
}

// HandleSendMessage persists a message, then publishes it. The sender gets
// the stored message in the response; subscribers get it over the socket.
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string              `json:"conversationId"`
		SenderID       string              `json:"senderId"`
		Text           string              `json:"text"`
		Attachments    []models.Attachment `json:"attachments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	message, err := c.Chat.AppendMessage(r.Context(), request.ConversationID, request.SenderID, request.Text, request.Attachments)
	if err != nil {
		writeError(w, err)
		return
	}

	// Persist-then-publish: the message is durable before anyone hears
	// about it.
	c.Realtime.PublishMessage(r.Context(), request.ConversationID, message)

	writeJSON(w, http.StatusCreated, message)
}

// HandleGetMessages returns a page of messages, each decorated with the
// read tick recomputed for the requesting user.
func (c *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		http.Error(w, `{"error": "conversationId is required"}`, http.StatusBadRequest)
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	cursor := r.URL.Query().Get("cursor")
	oldestFirst := r.URL.Query().Get("order") == "asc"

	conversation, err := c.Chat.GetConversation(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	messages, nextCursor, err := c.Chat.ListMessages(r.Context(), conversationID, limit, cursor, oldestFirst)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]messageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, messageView{
			Message:    message,
			SenderName: message.SenderDisplayName(),
			Seen:       models.Seen(message, conversation),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":   views,
		"nextCursor": nextCursor,
	})
}

// HandleMarkRead opens a conversation for a user: the store records the
// reads, the unread counter drops to zero, and other members learn which
// messages flipped to seen.
func (c *ChatController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
		UserID         string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	updatedIDs, err := c.Unread.OnConversationOpened(r.Context(), request.UserID, request.ConversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	c.Realtime.PublishRead(request.ConversationID, request.UserID, updatedIDs)

	if updatedIDs == nil {
		updatedIDs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updatedMessageIds": updatedIDs})
}

// HandleDeleteMessage removes a message (sender only) and tells subscribers
// to drop it.
func (c *ChatController) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
		RequesterID    string `json:"requesterId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := c.Chat.DeleteMessage(r.Context(), request.ConversationID, request.MessageID, request.RequesterID); err != nil {
		writeError(w, err)
		return
	}

	c.Realtime.PublishDelete(request.ConversationID, request.MessageID)

	writeJSON(w, http.StatusOK, map[string]string{"deletedMessageId": request.MessageID})
}

// HandleDeleteAttachment removes one attachment from a message. When the
// attachment was the only content, the message tombstones and subscribers
// are told to drop it.
func (c *ChatController) HandleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
		Key            string `json:"key"`
		RequesterID    string `json:"requesterId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	message, err := c.Chat.DeleteAttachment(r.Context(), request.ConversationID, request.MessageID, request.Key, request.RequesterID)
	if err != nil {
		writeError(w, err)
		return
	}

	if message.Deleted {
		c.Realtime.PublishDelete(request.ConversationID, request.MessageID)
	}

	writeJSON(w, http.StatusOK, message)
}

// HandleGetUnreadTotal returns the user's global unread count.
func (c *ChatController) HandleGetUnreadTotal(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, `{"error": "userId is required"}`, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"total": c.Unread.GetGlobalTotal(userID)})
}

// HandleReconcileUnread recomputes the user's counters from the store.
// Called on login so the cache starts from ground truth.
func (c *ChatController) HandleReconcileUnread(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.UserID == "" {
		http.Error(w, `{"error": "userId is required"}`, http.StatusBadRequest)
		return
	}

	if err := c.Unread.Reconcile(r.Context(), request.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"total": c.Unread.GetGlobalTotal(request.UserID)})
}
