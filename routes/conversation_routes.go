package routes

import (
	"dockline_server/controllers"
	"dockline_server/services"

	"github.com/gorilla/mux"
)

// RegisterConversationRoutes sets up routes for conversation management
// under /api/conversations
func RegisterConversationRoutes(r *mux.Router, conversationService *services.ConversationService) {
	controller := controllers.NewConversationController(conversationService)

	conversationRouter := r.PathPrefix("/api/conversations").Subrouter()
	conversationRouter.HandleFunc("/direct", controller.HandleCreateDirect).Methods("POST")
	conversationRouter.HandleFunc("/group", controller.HandleCreateGroup).Methods("POST")
	conversationRouter.HandleFunc("", controller.HandleListConversations).Methods("GET")
}
