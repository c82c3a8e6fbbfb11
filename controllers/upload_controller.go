package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"dockline_server/models"
	"dockline_server/services"
)

// UploadController exposes the multipart upload lifecycle. Except for the
// single complete retry below, retry and backoff are the client's job.
type UploadController struct {
	Uploads *services.UploadService
}

// NewUploadController initializes the upload controller
func NewUploadController(uploads *services.UploadService) *UploadController {
	return &UploadController{Uploads: uploads}
}

// HandleStartUpload opens a multipart upload session.
func (c *UploadController) HandleStartUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	session, err := c.Uploads.Start(r.Context(), request.FileName, request.FileType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"uploadId": session.UploadID,
		"key":      session.Key,
	})
}

// HandleSignPart mints a time-limited URL for one part. A failed part
// upload is retried by requesting a fresh URL; the session is untouched.
func (c *UploadController) HandleSignPart(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UploadID   string `json:"uploadId"`
		Key        string `json:"key"`
		PartNumber int32  `json:"partNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	signedURL, err := c.Uploads.SignPart(r.Context(), request.UploadID, request.Key, request.PartNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": signedURL})
}

// HandleCompleteUpload assembles the object. Complete is idempotent, so a
// storage-side failure gets exactly one retry before surfacing.
func (c *UploadController) HandleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UploadID string            `json:"uploadId"`
		Key      string            `json:"key"`
		Parts    []models.PartETag `json:"parts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	location, err := c.Uploads.Complete(r.Context(), request.UploadID, request.Key, request.Parts)
	var uploadErr *models.UploadError
	if errors.As(err, &uploadErr) {
		log.Printf("🔁 Retrying complete for upload %s after: %v", request.UploadID, err)
		location, err = c.Uploads.Complete(r.Context(), request.UploadID, request.Key, request.Parts)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"location": location,
		"key":      request.Key,
	})
}

// HandleAbortUpload discards an in-flight upload.
func (c *UploadController) HandleAbortUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UploadID string `json:"uploadId"`
		Key      string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := c.Uploads.Abort(r.Context(), request.UploadID, request.Key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

// HandlePresignedPut is the small-file path: one signed PUT, no session.
func (c *UploadController) HandlePresignedPut(w http.ResponseWriter, r *http.Request) {
	var request struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	key, signedURL, err := c.Uploads.PresignedPut(r.Context(), request.FileName, request.FileType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key": key,
		"url": signedURL,
	})
}

// HandleReadURL mints a presigned download URL for an attachment key.
func (c *UploadController) HandleReadURL(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	signedURL, err := c.Uploads.ReadURL(r.Context(), request.Key)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": signedURL})
}
