package storage

import (
	"context"
	"time"

	"editbot/internal/editor"
	"editbot/internal/eventbus"
	"editbot/pkg/logx"
)

// Record copies editor events from bus into st until ctx ends. Run it under
// a supervisor.
func Record(ctx context.Context, bus eventbus.Bus, st Store, log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	ch, unsub := bus.Subscribe(256, editor.EventResponded, editor.EventAffordance)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			e, ok := entryFromEvent(ev)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := st.Append(wctx, e)
			cancel()
			if err != nil {
				log.Warn("audit append failed", logx.String("kind", e.Kind), logx.Err(err))
			}
		}
	}
}

func entryFromEvent(ev eventbus.Event) (Entry, bool) {
	switch d := ev.Data.(type) {
	case editor.RespondEvent:
		return Entry{
			At:         ev.Time,
			Kind:       KindRespond,
			ChatID:     d.Request.ChatID,
			RequestID:  d.Request.MessageID,
			ResponseID: d.Ref.MessageID,
			Outcome:    d.Outcome,
			TookMS:     d.Took.Milliseconds(),
			Error:      d.Error,
		}, true
	case editor.AffordanceEvent:
		return Entry{
			At:         ev.Time,
			Kind:       KindAffordance,
			ChatID:     d.Request.ChatID,
			RequestID:  d.Request.MessageID,
			ResponseID: d.Ref.MessageID,
			Outcome:    d.State.String(),
			Detail:     d.Kind.String(),
			ActorID:    d.ActorID,
			TookMS:     d.Waited.Milliseconds(),
			Error:      d.Error,
		}, true
	}
	return Entry{}, false
}
