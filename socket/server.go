package socket

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Authentication happens upstream; the realtime endpoint trusts the
	// supplied identity and serves any origin, like the REST surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server upgrades HTTP requests into realtime connections and hands them to
// the broker.
type Server struct {
	Broker *Broker
}

// NewServer initializes the realtime server.
func NewServer(broker *Broker) *Server {
	return &Server{Broker: broker}
}

// HandleConnection upgrades the request and registers the connection.
// Opening the socket is the join: the user is online from here until the
// connection closes.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, `{"error": "userId is required"}`, http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ Websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan Event, sendBufferSize),
		broker: s.Broker,
	}

	s.Broker.Join(client)
	go client.writeLoop()
	go client.readLoop()
}
