package models

// UploadState tracks where a multipart upload sits in its lifecycle.
type UploadState string

const (
	UploadStarted   UploadState = "STARTED"
	UploadCompleted UploadState = "COMPLETED"
	UploadAborted   UploadState = "ABORTED"
)

// Terminal reports whether no further transition is legal from the state.
func (s UploadState) Terminal() bool {
	return s == UploadCompleted || s == UploadAborted
}

// PartETag identifies one completed part of a multipart upload.
type PartETag struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"eTag"`
}

// UploadSession is the transient state machine for one multipart upload.
// It lives only in memory for the duration of the upload; the manager never
// sees file bytes, only keys and part metadata.
type UploadSession struct {
	UploadID    string         `json:"uploadId"`
	Key         string         `json:"key"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"contentType"`
	State       UploadState    `json:"state"`
	SignedParts map[int32]bool `json:"-"`
	Parts       []PartETag     `json:"-"` // recorded at completion, for idempotent repeats
	Location    string         `json:"location,omitempty"`
}
