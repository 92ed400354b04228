// Package service implements the engine's pipelines: outgoing messages,
// read-receipt reconciliation, and presence propagation.
package service

import (
	"context"

	"github.com/pulsechat/pulsechat-go/internal/model"
)

// Sender dispatches outbound wire commands. Implemented by the socket
// manager; stubbed in tests.
type Sender interface {
	Send(ctx context.Context, cmd model.Command) error
	State() model.ConnectionState
}

// File is a compose-box attachment pending upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores attachments and returns their references. Implemented by
// the REST collaborator.
type Uploader interface {
	UploadAttachment(ctx context.Context, file File) (model.Attachment, error)
}
