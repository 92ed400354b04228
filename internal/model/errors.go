package model

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers. Transport failures never appear
// here: they are absorbed by the connection manager and reported as
// StateChanged events.
var (
	// ErrNotConnected is returned by the connection manager when a send
	// is attempted without an open socket. Nothing is buffered or
	// replayed; the caller must re-drive the operation.
	ErrNotConnected = errors.New("socket not connected")

	// ErrSendRejected is returned by the outgoing pipeline when a compose
	// action cannot be dispatched. No local message is created.
	ErrSendRejected = errors.New("send rejected: not connected")

	// ErrConversationNotFound is returned by store reads for unknown ids.
	ErrConversationNotFound = errors.New("conversation not found")
)

// UploadError aborts an entire send: partial uploads are never linked to
// a message.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
