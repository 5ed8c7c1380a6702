package editor

import (
	"context"
	"strings"
	"time"

	"editbot/internal/eventbus"
	"editbot/internal/transport"
	logx "editbot/pkg/logx"
)

// ShouldRedispatch decides whether an edited message is run as a command
// again: it must have been edited within the edit window, come from a human
// and land in a chat the bot can still write to.
func (s *Service) ShouldRedispatch(ctx context.Context, m *transport.Message) bool {
	if m == nil || m.FromBot || m.EditedAt.IsZero() || strings.TrimSpace(m.Text) == "" {
		return false
	}
	if s.now().Sub(m.EditedAt) >= s.Config().EditWindow {
		return false
	}
	p, err := s.msgr.Permissions(ctx, m.ChatID, s.msgr.Self())
	return err == nil && p.Send
}

// HandleDelete drops cache entries for deleted messages after a short
// debounce so in-flight sends and edits settle first. Both invoking messages
// and responses are matched.
func (s *Service) HandleDelete(d *transport.Deleted) {
	if d == nil || len(d.MessageIDs) == 0 {
		return
	}
	ids := append([]int(nil), d.MessageIDs...)
	chatID := d.ChatID
	delay := s.Config().DeleteDebounce
	s.go0("editor.delete_debounce", func(ctx context.Context) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		n := 0
		for _, id := range ids {
			key := RequestID{ChatID: chatID, MessageID: id}
			if _, ok := s.cache.Get(key); ok {
				s.cache.Remove(key)
				n++
			}
			n += s.cache.RemoveRef(transport.MessageRef{ChatID: chatID, MessageID: id})
		}
		if n > 0 {
			s.log.Debug("cache entries dropped after delete", logx.Chat(chatID), logx.Int("count", n))
		}
	})
}

// Observe feeds reactions and delete-button presses to pending delete
// watches. It reports whether the update was meant for the response layer
// and must not be routed further.
func (s *Service) Observe(ctx context.Context, u transport.Update) bool {
	switch u.Kind {
	case transport.UpdateReaction:
		if u.Reaction == nil {
			return false
		}
		ref := transport.MessageRef{ChatID: u.Reaction.ChatID, MessageID: u.Reaction.MessageID}
		if s.watching(ref) {
			s.bus.Publish(eventbus.Event{Type: EventUpdate, Data: u})
		}
		return true
	case transport.UpdateCallback:
		cb := u.Callback
		if cb == nil || cb.Data != DeleteCallbackData {
			return false
		}
		if s.watching(transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}) {
			s.bus.Publish(eventbus.Event{Type: EventUpdate, Data: u})
			return true
		}
		if err := s.msgr.AnswerCallback(ctx, cb.ID, expiredText, false); err != nil {
			s.log.Debug("answer stale delete button failed", logx.Err(err))
		}
		return true
	}
	return false
}
