package editor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"editbot/internal/eventbus"
	"editbot/internal/transport"
	logx "editbot/pkg/logx"
	"editbot/pkg/tgui"
)

// DeleteCallbackData is the callback payload of the delete button.
const DeleteCallbackData = "editor:del"

// NotOwnerText is shown to users pressing someone else's delete button.
const NotOwnerText = "You can only delete your own command responses."

const expiredText = "This button has expired."

type AffordanceState int

const (
	StateAttached AffordanceState = iota
	StateWaiting
	StateDeleted
	StateExpired
	StateFailed
)

func (s AffordanceState) String() string {
	switch s {
	case StateAttached:
		return "attached"
	case StateWaiting:
		return "waiting"
	case StateDeleted:
		return "deleted"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AffordanceEvent is published when a delete watch reaches a terminal state.
type AffordanceEvent struct {
	Request RequestID
	Ref     transport.MessageRef
	Kind    AffordanceKind
	State   AffordanceState
	ActorID int64 // who triggered the delete (0 unless Deleted)
	Waited  time.Duration
	Error   string
}

type watch struct {
	seq    uint64
	cancel context.CancelFunc
}

var watchSeq atomic.Uint64

// watchDelete runs the delete affordance for a in the background. A newer
// watch on the same message replaces the older one.
func (s *Service) watchDelete(req Request, a Artifact, opts Options) {
	s.go0("editor.affordance", func(ctx context.Context) {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		key := watchKey(a.Ref)
		w := &watch{seq: watchSeq.Add(1), cancel: cancel}
		s.watchMu.Lock()
		if old := s.watches[key]; old != nil {
			old.cancel()
		}
		s.watches[key] = w
		s.watchMu.Unlock()

		defer func() {
			s.watchMu.Lock()
			if cur := s.watches[key]; cur != nil && cur.seq == w.seq {
				delete(s.watches, key)
			}
			s.watchMu.Unlock()
		}()

		s.runAffordance(wctx, req, a, opts)
	})
}

// watchKey drops the thread id; incoming updates do not always carry it.
func watchKey(ref transport.MessageRef) transport.MessageRef {
	return transport.MessageRef{ChatID: ref.ChatID, MessageID: ref.MessageID}
}

func (s *Service) watching(ref transport.MessageRef) bool {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	_, ok := s.watches[watchKey(ref)]
	return ok
}

// Watching reports the number of active delete watches.
func (s *Service) Watching() int {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return len(s.watches)
}

func (s *Service) affordanceFor(ctx context.Context, opts Options) Affordance {
	cfg := s.Config()
	var spec any = cfg.DeleteAffordance
	if opts.DeleteAffordance != nil {
		spec = opts.DeleteAffordance
	}
	aff := s.resolver.Resolve(ctx, spec)
	switch opts.Trigger {
	case TriggerButton:
		return aff.AsButton()
	case TriggerReaction:
		return aff
	default:
		if cfg.UseButton {
			return aff.AsButton()
		}
		return aff
	}
}

func (s *Service) runAffordance(ctx context.Context, req Request, a Artifact, opts Options) {
	aff := s.affordanceFor(ctx, opts)
	if !aff.Enabled() {
		return
	}
	timeout := opts.DeleteTimeout
	if timeout <= 0 {
		timeout = s.Config().DeleteTimeout
	}
	log := s.log.With(logx.Chat(a.Ref.ChatID), logx.Int("msg", a.Ref.MessageID), logx.String("affordance", aff.Kind.String()))

	// Subscribe before attaching so an early trigger is not missed.
	ch, unsub := s.bus.Subscribe(32, EventUpdate)
	defer unsub()

	start := s.now()
	if err := s.attach(ctx, a, aff); err != nil {
		log.Debug("delete affordance not attached", logx.Err(err))
		s.finish(req, a, aff, StateFailed, 0, start, err)
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			// Shutdown or replaced by a newer watch.
			return
		case <-timer.C:
			s.detach(ctx, a, aff)
			s.finish(req, a, aff, StateExpired, 0, start, nil)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			t, hit := s.matchTrigger(ev, a.Ref, aff)
			if !hit {
				continue
			}
			if !s.authorized(ctx, req, t) {
				if t.callbackID != "" {
					_ = s.msgr.AnswerCallback(ctx, t.callbackID, NotOwnerText, false)
				}
				continue
			}
			if t.callbackID != "" {
				_ = s.msgr.AnswerCallback(ctx, t.callbackID, "", false)
			}
			err := s.msgr.Delete(ctx, a.Ref)
			if err != nil && !errors.Is(err, transport.ErrNotFound) {
				log.Warn("delete via affordance failed", logx.Err(err))
				s.finish(req, a, aff, StateFailed, t.actorID, start, err)
				return
			}
			s.cache.RemoveRef(a.Ref)
			log.Debug("response deleted", logx.Int64("actor", t.actorID))
			s.finish(req, a, aff, StateDeleted, t.actorID, start, nil)
			return
		}
	}
}

func (s *Service) attach(ctx context.Context, a Artifact, aff Affordance) error {
	if aff.Kind == AffordanceButton {
		c := a.Content
		c.Buttons = append(append([][]transport.Button(nil), c.Buttons...), []transport.Button{tgui.Btn(aff.Label(), DeleteCallbackData)})
		_, err := s.msgr.Edit(ctx, a.Ref, c)
		return err
	}
	if s.reactor == nil {
		return transport.ErrUnsupported
	}
	return s.reactor.React(ctx, a.Ref, aff.Emoji)
}

// detach removes our own affordance only; reactions added by others stay.
func (s *Service) detach(ctx context.Context, a Artifact, aff Affordance) {
	var err error
	if aff.Kind == AffordanceButton {
		_, err = s.msgr.Edit(ctx, a.Ref, a.Content)
	} else if s.reactor != nil {
		err = s.reactor.Unreact(ctx, a.Ref, aff.Emoji)
	}
	if err != nil && !errors.Is(err, transport.ErrNotFound) {
		s.log.Debug("delete affordance cleanup failed", logx.Err(err))
	}
}

type trigger struct {
	actorID    int64
	actorBot   bool
	callbackID string
}

func (s *Service) matchTrigger(ev eventbus.Event, ref transport.MessageRef, aff Affordance) (trigger, bool) {
	if ev.Type != EventUpdate {
		return trigger{}, false
	}
	u, ok := ev.Data.(transport.Update)
	if !ok {
		return trigger{}, false
	}
	switch {
	case aff.Kind == AffordanceButton && u.Kind == transport.UpdateCallback && u.Callback != nil:
		cb := u.Callback
		if cb.ChatID != ref.ChatID || cb.MessageID != ref.MessageID || cb.Data != DeleteCallbackData {
			return trigger{}, false
		}
		return trigger{actorID: cb.FromID, actorBot: cb.FromBot, callbackID: cb.ID}, true
	case aff.Kind != AffordanceButton && u.Kind == transport.UpdateReaction && u.Reaction != nil:
		r := u.Reaction
		if r.ChatID != ref.ChatID || r.MessageID != ref.MessageID || r.ActorID == s.msgr.Self() {
			return trigger{}, false
		}
		for _, e := range r.Added {
			if e.Matches(aff.Emoji) {
				return trigger{actorID: r.ActorID, actorBot: r.ActorBot}, true
			}
		}
	}
	return trigger{}, false
}

func (s *Service) authorized(ctx context.Context, req Request, t trigger) bool {
	if t.actorBot {
		return false
	}
	if t.actorID == req.ActorID {
		return true
	}
	p, err := s.msgr.Permissions(ctx, req.Chat.ChatID, t.actorID)
	return err == nil && p.Manage
}

func (s *Service) finish(req Request, a Artifact, aff Affordance, st AffordanceState, actor int64, start time.Time, err error) {
	ev := AffordanceEvent{
		Request: req.ID,
		Ref:     a.Ref,
		Kind:    aff.Kind,
		State:   st,
		ActorID: actor,
		Waited:  s.now().Sub(start),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: EventAffordance, Data: ev})
}
