package models

import "fmt"

// ValidationError indicates a malformed or missing required field. Never
// retried; surfaced to the caller verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ForbiddenError indicates the actor is not allowed to perform the
// operation (not a member, not the sender).
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// NotFoundError indicates an unknown conversation, message or upload ID.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError indicates the operation lost a race or hit an illegal state
// transition (duplicate direct conversation, terminal upload session).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// UploadError wraps a failed object-storage call with the operation that
// issued it. Retry policy belongs to the caller.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload operation %q failed: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
