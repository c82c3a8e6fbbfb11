package routes

import (
	"dockline_server/controllers"
	"dockline_server/services"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for chat-related operations under
// /api/chat
func RegisterChatRoutes(r *mux.Router, chatService *services.ConversationService, unreadService *services.UnreadService, realtime controllers.RealtimePublisher) {
	controller := controllers.NewChatController(chatService, unreadService, realtime)

	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.HandleFunc("/message", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/message", controller.HandleDeleteMessage).Methods("DELETE")
	chatRouter.HandleFunc("/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/messages/mark-read", controller.HandleMarkRead).Methods("POST")
	chatRouter.HandleFunc("/attachment/delete", controller.HandleDeleteAttachment).Methods("POST")
	chatRouter.HandleFunc("/unread", controller.HandleGetUnreadTotal).Methods("GET")
	chatRouter.HandleFunc("/unread/reconcile", controller.HandleReconcileUnread).Methods("POST")
}
