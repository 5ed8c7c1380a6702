package editor

import (
	"context"
	"errors"
	"time"

	"editbot/internal/eventbus"
	"editbot/internal/transport"
	logx "editbot/pkg/logx"
)

// Request is one command invocation as seen by the response layer.
type Request struct {
	ID      RequestID
	Chat    transport.ChatTarget
	ActorID int64
	// Interaction marks invocations from inline buttons. The platform
	// enforces chat rights for those itself, so the pre-check is skipped.
	Interaction bool
}

// InvokeRef addresses the invoking message.
func (r Request) InvokeRef() transport.MessageRef {
	return transport.MessageRef{ChatID: r.ID.ChatID, ThreadID: r.Chat.ThreadID, MessageID: r.ID.MessageID}
}

// Respond outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeEdited  = "edited"
	OutcomeResent  = "resent"
	OutcomeUnsaved = "unsaved"
	OutcomeDenied  = "denied"
	OutcomeFailed  = "failed"
)

// RespondEvent is published after every Respond call.
type RespondEvent struct {
	Request RequestID
	Outcome string
	Ref     transport.MessageRef
	Took    time.Duration
	Error   string
}

// Respond answers req with c.
//
// Without a cached response it sends and records one. With a cached
// response it edits it in place, falling back to a fresh send when the old
// response is gone. A nil artifact with a nil error means the edit succeeded
// but the fresh copy could not be read back.
func (s *Service) Respond(ctx context.Context, req Request, c transport.Content, opts Options) (*Artifact, error) {
	start := s.now()
	if err := s.checkPermissions(ctx, req, c); err != nil {
		s.publishRespond(req, OutcomeDenied, nil, start, err)
		return nil, err
	}
	// Attachments cannot be edited in place.
	if c.HasFiles() {
		opts.NoEdit = true
	}

	var (
		a       *Artifact
		outcome string
		err     error
	)
	if opts.NoSave {
		a, err = s.send(ctx, req, c, opts)
		outcome = OutcomeUnsaved
	} else {
		a, outcome, err = s.respond(ctx, req, c, opts)
	}
	if err != nil {
		s.publishRespond(req, OutcomeFailed, nil, start, err)
		return nil, err
	}
	s.publishRespond(req, outcome, a, start, nil)

	if a != nil {
		if opts.DeleteAfter > 0 {
			s.deleteAfter(*a, opts.DeleteAfter)
		}
		if !opts.NoSave {
			s.watchDelete(req, *a, opts)
		}
	}
	return a, nil
}

func (s *Service) respond(ctx context.Context, req Request, c transport.Content, opts Options) (*Artifact, string, error) {
	cached, ok := s.cache.Get(req.ID)
	if !ok {
		a, err := s.send(ctx, req, c, opts)
		if err != nil {
			return nil, "", err
		}
		s.cache.Put(req.ID, *a)
		return a, OutcomeSent, nil
	}

	if opts.NoEdit {
		s.cache.Remove(req.ID)
		opts.NoEdit = false
		a, _, err := s.respond(ctx, req, c, opts)
		return a, OutcomeResent, err
	}

	s.clearReactions(ctx, req, cached, opts)

	// Edits never carry a reply reference.
	opts.Reply = false
	m, err := s.msgr.Edit(ctx, cached.Ref, c)
	if errors.Is(err, transport.ErrNotFound) {
		s.log.Debug("cached response vanished, resending", logx.Chat(req.ID.ChatID), logx.Int("msg", cached.Ref.MessageID))
		s.cache.Remove(req.ID)
		a, _, err := s.respond(ctx, req, c, opts)
		return a, OutcomeResent, err
	}
	if err != nil {
		return nil, "", err
	}

	edited := cached
	edited.Content = c
	edited.EditedAt = s.now()
	if m != nil && !m.EditedAt.IsZero() {
		edited.EditedAt = m.EditedAt
	}
	s.cache.Put(req.ID, edited)

	if s.fetcher != nil {
		fresh, err := s.fetcher.Fetch(ctx, cached.Ref)
		if err != nil {
			s.log.Debug("refetch after edit failed", logx.Err(err))
			// The edit dropped the old affordance state; rewatch the edited copy.
			s.watchDelete(req, edited, opts)
			return nil, OutcomeEdited, nil
		}
		edited.Ref = fresh.Ref()
	}
	return &edited, OutcomeEdited, nil
}

func (s *Service) send(ctx context.Context, req Request, c transport.Content, opts Options) (*Artifact, error) {
	var so *transport.SendOptions
	if opts.Reply && req.ID.MessageID != 0 {
		so = &transport.SendOptions{ReplyTo: req.ID.MessageID}
	}
	m, err := s.msgr.Send(ctx, req.Chat, c, so)
	if err != nil && so != nil && errors.Is(err, transport.ErrBadReference) {
		m, err = s.msgr.Send(ctx, req.Chat, c, nil)
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &Artifact{Ref: m.Ref(), Content: c, CreatedAt: now}, nil
}

func (s *Service) checkPermissions(ctx context.Context, req Request, c transport.Content) error {
	if req.Interaction {
		return nil
	}
	p, err := s.msgr.Permissions(ctx, req.Chat.ChatID, s.msgr.Self())
	if err != nil {
		// Unknown rights: let the transport decide.
		s.log.Debug("permission lookup failed", logx.Chat(req.Chat.ChatID), logx.Err(err))
		return nil
	}
	switch {
	case !p.Send:
		return &PermissionError{Action: "send messages", ChatID: req.Chat.ChatID}
	case c.HasEmbeds() && !p.Embed:
		return &PermissionError{Action: "embed links", ChatID: req.Chat.ChatID}
	case c.HasFiles() && !p.Attach:
		return &PermissionError{Action: "attach files", ChatID: req.Chat.ChatID}
	}
	return nil
}

func (s *Service) clearReactions(ctx context.Context, req Request, cached Artifact, opts Options) {
	if s.reactor == nil || (opts.KeepInvokeReactions && opts.KeepResponseReactions) {
		return
	}
	p, err := s.msgr.Permissions(ctx, req.Chat.ChatID, s.msgr.Self())
	if err != nil || !p.Manage {
		return
	}
	if !opts.KeepInvokeReactions {
		if err := s.reactor.ClearReactions(ctx, req.InvokeRef()); err != nil {
			s.log.Trace("clear invoke reactions failed", logx.Err(err))
		}
	}
	if !opts.KeepResponseReactions {
		if err := s.reactor.ClearReactions(ctx, cached.Ref); err != nil {
			s.log.Trace("clear response reactions failed", logx.Err(err))
		}
	}
}

func (s *Service) deleteAfter(a Artifact, d time.Duration) {
	s.go0("editor.delete_after", func(ctx context.Context) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := s.msgr.Delete(ctx, a.Ref); err != nil && !errors.Is(err, transport.ErrNotFound) {
			s.log.Warn("scheduled delete failed", logx.Chat(a.Ref.ChatID), logx.Err(err))
			return
		}
		s.cache.RemoveRef(a.Ref)
	})
}

func (s *Service) publishRespond(req Request, outcome string, a *Artifact, start time.Time, err error) {
	ev := RespondEvent{Request: req.ID, Outcome: outcome, Took: s.now().Sub(start)}
	if a != nil {
		ev.Ref = a.Ref
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: EventResponded, Data: ev})
}
