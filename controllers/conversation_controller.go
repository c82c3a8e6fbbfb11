package controllers

import (
	"encoding/json"
	"net/http"

	"dockline_server/services"
)

// ConversationController exposes conversation creation and listing.
type ConversationController struct {
	Service *services.ConversationService
}

// NewConversationController initializes the conversation controller
func NewConversationController(service *services.ConversationService) *ConversationController {
	return &ConversationController{Service: service}
}

// HandleCreateDirect finds or creates the 1:1 conversation between two
// users. Idempotent: repeated or concurrent calls return the same
// conversation.
func (c *ConversationController) HandleCreateDirect(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID      string `json:"userId"`
		OtherUserID string `json:"otherUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	conversation, err := c.Service.FindOrCreateDirect(r.Context(), request.UserID, request.OtherUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// HandleCreateGroup creates a group conversation; the creator is a member
// implicitly.
func (c *ConversationController) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var request struct {
		CreatorID string   `json:"creatorId"`
		Name      string   `json:"name"`
		MemberIDs []string `json:"memberIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	conversation, err := c.Service.CreateGroup(r.Context(), request.CreatorID, request.Name, request.MemberIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

// HandleListConversations returns the caller's conversations.
func (c *ConversationController) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, `{"error": "userId is required"}`, http.StatusBadRequest)
		return
	}

	conversations, err := c.Service.ListConversations(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}
