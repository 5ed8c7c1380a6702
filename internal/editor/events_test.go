package editor

import (
	"context"
	"testing"
	"time"

	"editbot/internal/transport"
)

func TestShouldRedispatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := transport.Message{ID: 1, ChatID: chatID, FromID: requesterID, Text: "/echo hi", EditedAt: now.Add(-time.Second)}

	tests := []struct {
		name   string
		mutate func(m *transport.Message)
		perms  *transport.Perms
		want   bool
	}{
		{"fresh edit", func(*transport.Message) {}, nil, true},
		{"stale edit", func(m *transport.Message) { m.EditedAt = now.Add(-3 * time.Second) }, nil, false},
		{"never edited", func(m *transport.Message) { m.EditedAt = time.Time{} }, nil, false},
		{"bot author", func(m *transport.Message) { m.FromBot = true }, nil, false},
		{"empty text", func(m *transport.Message) { m.Text = " " }, nil, false},
		{"cannot send", func(*transport.Message) {}, &transport.Perms{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			if tt.perms != nil {
				f.perms[botID] = *tt.perms
			}
			s := newService(t, f, noAffordance())
			s.now = func() time.Time { return now }

			m := base
			tt.mutate(&m)
			if got := s.ShouldRedispatch(context.Background(), &m); got != tt.want {
				t.Fatalf("ShouldRedispatch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleDeleteDebounced(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, Config{DeleteAffordance: "false", DeleteDebounce: 30 * time.Millisecond})
	ctx := context.Background()

	s.Respond(ctx, request(1), text("a"), Options{})
	b, _ := s.Respond(ctx, request(2), text("b"), Options{})
	s.Respond(ctx, request(3), text("c"), Options{})

	// Invoking message 1 and the response to request 2 are deleted.
	s.HandleDelete(&transport.Deleted{ChatID: chatID, MessageIDs: []int{1, b.Ref.MessageID}})
	if s.Cache().Len() != 3 {
		t.Fatal("cache changed before the debounce elapsed")
	}

	deadline := time.Now().Add(time.Second)
	for s.Cache().Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := s.Cache().Get(RequestID{ChatID: chatID, MessageID: 3}); !ok || s.Cache().Len() != 1 {
		t.Fatalf("cache keys = %v, want only request 3", s.Cache().Keys())
	}
}
