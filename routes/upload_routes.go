package routes

import (
	"dockline_server/controllers"
	"dockline_server/services"

	"github.com/gorilla/mux"
)

// RegisterUploadRoutes sets up routes for the upload lifecycle under
// /api/uploads
func RegisterUploadRoutes(r *mux.Router, uploadService *services.UploadService) {
	controller := controllers.NewUploadController(uploadService)

	uploadRouter := r.PathPrefix("/api/uploads").Subrouter()
	uploadRouter.HandleFunc("/start", controller.HandleStartUpload).Methods("POST")
	uploadRouter.HandleFunc("/sign-part", controller.HandleSignPart).Methods("POST")
	uploadRouter.HandleFunc("/complete", controller.HandleCompleteUpload).Methods("POST")
	uploadRouter.HandleFunc("/abort", controller.HandleAbortUpload).Methods("POST")
	uploadRouter.HandleFunc("/presigned-url", controller.HandlePresignedPut).Methods("POST")
	uploadRouter.HandleFunc("/read-url", controller.HandleReadURL).Methods("POST")
}
