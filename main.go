package main

import (
	"log"
	"net/http"
	"os"

	"dockline_server/routes"
	"dockline_server/services"
	"dockline_server/socket"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Initialize DynamoDB client and service
	log.Println("Initializing DynamoDB client...")
	dynamoClient := services.InitializeDynamoDBClient()
	dynamoService := &services.DynamoService{Client: dynamoClient}
	log.Println("DynamoDB client initialized.")

	// Initialize S3-backed storage client
	storageClient, err := services.NewS3Client()
	if err != nil {
		log.Fatalf("Failed to initialize S3 client: %v", err)
	}

	// Initialize services
	conversationService := services.NewConversationService(dynamoService, storageClient)
	unreadService := services.NewUnreadService(conversationService)
	uploadService := services.NewUploadService(storageClient)

	// Realtime broker and websocket endpoint
	broker := socket.NewBroker(conversationService, unreadService)
	socketServer := socket.NewServer(broker)

	// Set up the server port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	// Register routes
	routes.RegisterRoutes(r)
	routes.RegisterConversationRoutes(r, conversationService)
	routes.RegisterChatRoutes(r, conversationService, unreadService, broker)
	routes.RegisterUploadRoutes(r, uploadService)
	r.HandleFunc("/ws", socketServer.HandleConnection)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
