package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dockline_server/models"

	"github.com/google/uuid"
)

// MultipartThreshold is the size in bytes above which clients should use
// the multipart path instead of a single presigned PUT.
const MultipartThreshold = 5 * 1024 * 1024

// maxPartNumber mirrors the storage backend's multipart limit.
const maxPartNumber = 10000

// UploadService brokers the multipart upload lifecycle against object
// storage: Started → (signPart)* → Completed | Aborted. Sessions are
// transient, in-memory state; the service never transports file bytes.
type UploadService struct {
	Storage StorageClient

	mu       sync.Mutex
	sessions map[string]*models.UploadSession
	// uploadIds with a complete call in flight; the terminal-state
	// check-and-set below is the sole concurrency guard.
	completing map[string]bool
}

// NewUploadService initializes an UploadService.
func NewUploadService(storage StorageClient) *UploadService {
	return &UploadService{
		Storage:    storage,
		sessions:   make(map[string]*models.UploadSession),
		completing: make(map[string]bool),
	}
}

// objectKey mints a unique storage key from a random token. The client
// filename contributes only a sanitized extension, never path segments.
func objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	var clean strings.Builder
	for _, r := range ext {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			clean.WriteRune(r)
		}
	}
	suffix := clean.String()
	if len(suffix) > 10 {
		suffix = suffix[:10]
	}
	return "attachments/" + uuid.New().String() + suffix
}

// Start opens a multipart upload and records the session.
func (s *UploadService) Start(ctx context.Context, filename, contentType string) (*models.UploadSession, error) {
	if filename == "" || contentType == "" {
		return nil, &models.ValidationError{Reason: "filename and contentType are required"}
	}

	key := objectKey(filename)
	uploadID, err := s.Storage.CreateMultipartUpload(ctx, key, contentType)
	if err != nil {
		return nil, &models.UploadError{Op: "start", Err: err}
	}

	session := &models.UploadSession{
		UploadID:    uploadID,
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		State:       models.UploadStarted,
		SignedParts: make(map[int32]bool),
	}

	s.mu.Lock()
	s.sessions[uploadID] = session
	s.mu.Unlock()

	log.Printf("📦 Started multipart upload %s for key %s", uploadID, key)
	return session, nil
}

// SignPart returns a time-limited URL for the client to PUT one part
// directly to storage. Parts may be signed concurrently and in any order;
// signing is legal only while the session is non-terminal.
func (s *UploadService) SignPart(ctx context.Context, uploadID, key string, partNumber int32) (string, error) {
	if partNumber < 1 || partNumber > maxPartNumber {
		return "", &models.ValidationError{Reason: fmt.Sprintf("part number must be between 1 and %d", maxPartNumber)}
	}

	s.mu.Lock()
	session, ok := s.sessions[uploadID]
	if !ok || session.Key != key {
		s.mu.Unlock()
		return "", &models.NotFoundError{Resource: "upload", ID: uploadID}
	}
	if session.State.Terminal() || s.completing[uploadID] {
		state := session.State
		s.mu.Unlock()
		return "", &models.ConflictError{Reason: fmt.Sprintf("upload is %s, no further parts can be signed", state)}
	}
	s.mu.Unlock()

	signedURL, err := s.Storage.PresignUploadPart(ctx, key, uploadID, partNumber)
	if err != nil {
		return "", &models.UploadError{Op: "signPart", Err: err}
	}

	s.mu.Lock()
	session.SignedParts[partNumber] = true
	s.mu.Unlock()

	return signedURL, nil
}

// Complete assembles the object from its parts and returns a durable
// location. Idempotent: a repeat call with the same parts returns the
// cached location without re-assembling.
func (s *UploadService) Complete(ctx context.Context, uploadID, key string, parts []models.PartETag) (string, error) {
	if len(parts) == 0 {
		return "", &models.ValidationError{Reason: "complete requires at least one part"}
	}

	ordered := append([]models.PartETag{}, parts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	s.mu.Lock()
	session, ok := s.sessions[uploadID]
	if !ok || session.Key != key {
		s.mu.Unlock()
		return "", &models.NotFoundError{Resource: "upload", ID: uploadID}
	}
	if session.State == models.UploadCompleted {
		location := session.Location
		same := samePartSet(session.Parts, ordered)
		s.mu.Unlock()
		if !same {
			return "", &models.ConflictError{Reason: "upload already completed with a different part set"}
		}
		return location, nil
	}
	if session.State == models.UploadAborted {
		s.mu.Unlock()
		return "", &models.ConflictError{Reason: "upload was aborted"}
	}
	if s.completing[uploadID] {
		s.mu.Unlock()
		return "", &models.ConflictError{Reason: "complete already in progress"}
	}
	for _, part := range ordered {
		if !session.SignedParts[part.PartNumber] {
			s.mu.Unlock()
			return "", &models.ValidationError{Reason: fmt.Sprintf("part %d was never signed", part.PartNumber)}
		}
	}
	s.completing[uploadID] = true
	s.mu.Unlock()

	location, err := s.Storage.CompleteMultipartUpload(ctx, key, uploadID, ordered)

	s.mu.Lock()
	delete(s.completing, uploadID)
	if err != nil {
		s.mu.Unlock()
		return "", &models.UploadError{Op: "complete", Err: err}
	}
	session.State = models.UploadCompleted
	session.Parts = ordered
	session.Location = location
	s.mu.Unlock()

	log.Printf("✅ Completed upload %s: %s", uploadID, location)
	return location, nil
}

// Abort discards in-flight parts and terminates the session. Legal from any
// non-terminal state, including before any part was signed.
func (s *UploadService) Abort(ctx context.Context, uploadID, key string) error {
	s.mu.Lock()
	session, ok := s.sessions[uploadID]
	if !ok || session.Key != key {
		s.mu.Unlock()
		return &models.NotFoundError{Resource: "upload", ID: uploadID}
	}
	if session.State.Terminal() || s.completing[uploadID] {
		state := session.State
		s.mu.Unlock()
		return &models.ConflictError{Reason: fmt.Sprintf("upload is %s and cannot be aborted", state)}
	}
	s.mu.Unlock()

	if err := s.Storage.AbortMultipartUpload(ctx, key, uploadID); err != nil {
		return &models.UploadError{Op: "abort", Err: err}
	}

	s.mu.Lock()
	session.State = models.UploadAborted
	s.mu.Unlock()

	log.Printf("🛑 Aborted upload %s for key %s", uploadID, key)
	return nil
}

// PresignedPut is the small-file path: a single signed PUT, no multipart
// session at all.
func (s *UploadService) PresignedPut(ctx context.Context, filename, contentType string) (key, signedURL string, err error) {
	if filename == "" || contentType == "" {
		return "", "", &models.ValidationError{Reason: "filename and contentType are required"}
	}

	key = objectKey(filename)
	signedURL, err = s.Storage.PresignPutObject(ctx, key, contentType)
	if err != nil {
		return "", "", &models.UploadError{Op: "presignedPut", Err: err}
	}
	return key, signedURL, nil
}

// ReadURL mints a time-limited download URL for an attachment key.
func (s *UploadService) ReadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", &models.ValidationError{Reason: "key is required"}
	}
	signedURL, err := s.Storage.PresignGetObject(ctx, key)
	if err != nil {
		return "", &models.UploadError{Op: "readURL", Err: err}
	}
	return signedURL, nil
}

// Session returns a snapshot of an upload session, mostly for handlers and
// tests.
func (s *UploadService) Session(uploadID string) (models.UploadSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[uploadID]
	if !ok {
		return models.UploadSession{}, false
	}
	return *session, true
}

func samePartSet(a, b []models.PartETag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
