// Package router runs the per-message pipeline: buffer, classify, dispatch.
package router

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"tomcat/internal/alias"
	"tomcat/internal/contextbuf"
	"tomcat/internal/metrics"
	"tomcat/internal/model"
)

// Classifier turns a buffered row into an intent.
type Classifier interface {
	Classify(ctx context.Context, row model.MachineRow, msg model.Message) model.Intent
}

// Dispatcher acts on an intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, in model.Intent, msg model.Message)
}

// Router wires the context buffer, classifier and dispatcher together.
type Router struct {
	buf  *contextbuf.Buffer
	cls  Classifier
	disp Dispatcher
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Router.
func New(buf *contextbuf.Buffer, cls Classifier, disp Dispatcher, log *slog.Logger) *Router {
	return &Router{buf: buf, cls: cls, disp: disp, log: log, now: time.Now}
}

// HandleMessage processes one inbound message and returns the intent it was classified as.
// A panic anywhere in the pipeline is logged and the message dropped.
func (r *Router) HandleMessage(ctx context.Context, msg model.Message) (in model.Intent) {
	defer func() {
		if p := recover(); p != nil {
			metrics.MessagesHandled.WithLabelValues("panic").Inc()
			r.log.Error("message handler panic",
				"message_id", msg.ID,
				"channel_id", msg.ChannelID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			in = model.Intent{}
		}
	}()

	row := BuildRow(msg, r.now())
	r.buf.Push(row)

	in = r.cls.Classify(ctx, row, msg)
	metrics.IntentsClassified.WithLabelValues(in.Kind.String()).Inc()
	if in.Kind == model.IntentNone {
		metrics.MessagesHandled.WithLabelValues("ignored").Inc()
		return in
	}

	r.disp.Dispatch(ctx, in, msg)
	metrics.MessagesHandled.WithLabelValues("dispatched").Inc()
	return in
}

// BuildRow converts a message to its buffered form. now is used when the message has no timestamp.
func BuildRow(msg model.Message, now time.Time) model.MachineRow {
	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = now
	}
	images := msg.ImageAttachments()
	ids := make([]string, 0, len(images))
	for _, a := range images {
		ids = append(ids, a.ID)
	}
	return model.MachineRow{
		Timestamp:     ts,
		ChannelID:     msg.ChannelID,
		UserID:        msg.UserID,
		MessageID:     msg.ID,
		ReplyToID:     msg.ReplyToID,
		Text:          msg.Content,
		TextNorm:      alias.Normalize(msg.Content),
		HasImage:      len(images) > 0,
		AttachmentIDs: ids,
	}
}
