package editor

import (
	"context"

	"editbot/internal/transport"
)

// Context is the response capability handed to a command handler. It is
// bound to one request and shares the Service's cache.
type Context struct {
	svc *Service
	req Request
}

// For binds a Context to req.
func (s *Service) For(req Request) *Context {
	return &Context{svc: s, req: req}
}

// RequestFromMessage derives the request of an incoming (or edited) message.
// Edits of the same message map to the same request.
func RequestFromMessage(m *transport.Message) Request {
	return Request{
		ID:      RequestID{ChatID: m.ChatID, MessageID: m.ID},
		Chat:    transport.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID},
		ActorID: m.FromID,
	}
}

// RequestFromCallback derives the request of an inline button press. The
// message carrying the button is the invoking message.
func RequestFromCallback(cb *transport.Callback) Request {
	return Request{
		ID:          RequestID{ChatID: cb.ChatID, MessageID: cb.MessageID},
		Chat:        transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		ActorID:     cb.FromID,
		Interaction: true,
	}
}

func (c *Context) Request() Request { return c.req }

// Send answers with plain text using default options.
func (c *Context) Send(ctx context.Context, text string) (*Artifact, error) {
	return c.svc.Respond(ctx, c.req, transport.Content{Text: text}, Options{})
}

// SendHTML answers with HTML formatted text.
func (c *Context) SendHTML(ctx context.Context, html string) (*Artifact, error) {
	return c.svc.Respond(ctx, c.req, transport.Content{Text: html, ParseMode: "HTML", DisablePreview: true}, Options{})
}

// SendContent answers with arbitrary content and options.
func (c *Context) SendContent(ctx context.Context, content transport.Content, opts Options) (*Artifact, error) {
	return c.svc.Respond(ctx, c.req, content, opts)
}

// Reply is SendContent quoting the invoking message on fresh sends.
func (c *Context) Reply(ctx context.Context, content transport.Content, opts Options) (*Artifact, error) {
	opts.Reply = true
	return c.svc.Respond(ctx, c.req, content, opts)
}

// Forget drops the cached response so the next answer is sent fresh.
func (c *Context) Forget() { c.svc.cache.Remove(c.req.ID) }
