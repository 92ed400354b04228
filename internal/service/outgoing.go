package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
	"github.com/pulsechat/pulsechat-go/pkg/metrics"
)

// Outgoing turns a compose action into a wire send. There is no optimistic
// local append: the server's broadcast echo is the sole writer of the
// message list, and the store's id dedup absorbs the echo exactly once.
type Outgoing struct {
	sender   Sender
	uploader Uploader
	selfID   int64
	log      *logger.Logger
}

// NewOutgoing creates the outgoing message pipeline.
func NewOutgoing(sender Sender, uploader Uploader, selfID int64, log *logger.Logger) *Outgoing {
	return &Outgoing{
		sender:   sender,
		uploader: uploader,
		selfID:   selfID,
		log:      log,
	}
}

// Send uploads any attachments (all-or-nothing), builds the message
// payload, and dispatches it. It returns ErrSendRejected when the socket
// is not connected and an UploadError when any upload fails; in both
// cases no message is created anywhere. A successful return means the
// caller may clear its compose state; the message itself becomes visible
// only when the server echoes it back.
func (o *Outgoing) Send(ctx context.Context, conversationID int64, content string, files []File) error {
	attachments, err := o.uploadAll(ctx, files)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return err
	}

	msgType := model.MessageText
	attachmentIDs := make([]int64, 0, len(attachments))
	for _, a := range attachments {
		attachmentIDs = append(attachmentIDs, a.ID)
	}
	if len(attachments) > 0 {
		msgType = model.MessageFile
	}

	// Client-local correlation key; never sent to the server.
	correlationID := uuid.Must(uuid.NewV7()).String()

	cmd := model.SendMessage{Message: model.OutgoingMessage{
		ConversationID: conversationID,
		SenderID:       o.selfID,
		Content:        content,
		Type:           msgType,
		AttachmentIDs:  attachmentIDs,
	}}

	if err := o.sender.Send(ctx, cmd); err != nil {
		if errors.Is(err, model.ErrNotConnected) {
			metrics.SendsRejectedTotal.Inc()
			o.log.Warn("send rejected",
				zap.Int64("conversation_id", conversationID),
				zap.String("correlation_id", correlationID),
			)
			return model.ErrSendRejected
		}
		return err
	}

	metrics.MessagesSentTotal.WithLabelValues(string(msgType)).Inc()
	o.log.Debug("message dispatched",
		zap.Int64("conversation_id", conversationID),
		zap.String("correlation_id", correlationID),
		zap.String("message_type", string(msgType)),
	)
	return nil
}

// uploadAll uploads every file concurrently. One failure aborts the whole
// send; partial uploads are never linked to a message.
func (o *Outgoing) uploadAll(ctx context.Context, files []File) ([]model.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	attachments := make([]model.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			att, err := o.uploader.UploadAttachment(gctx, f)
			if err != nil {
				return &model.UploadError{FileName: f.Name, Err: err}
			}
			attachments[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues("ok").Add(float64(len(files)))
	return attachments, nil
}
