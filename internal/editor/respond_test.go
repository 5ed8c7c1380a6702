package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"editbot/internal/transport"
)

func text(s string) transport.Content { return transport.Content{Text: s} }

func TestRespondEditsCachedResponse(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	first, err := s.Respond(ctx, req, text("hello"), Options{})
	if err != nil {
		t.Fatalf("Respond(hello) = %v", err)
	}
	second, err := s.Respond(ctx, req, text("world"), Options{})
	if err != nil {
		t.Fatalf("Respond(world) = %v", err)
	}

	if second.Ref != first.Ref {
		t.Fatalf("second response %v, want edit of %v", second.Ref, first.Ref)
	}
	sends, edits, _ := f.counts()
	if sends != 1 || edits != 1 {
		t.Fatalf("sends=%d edits=%d, want 1 and 1", sends, edits)
	}
	if c, _ := f.content(first.Ref); c.Text != "world" {
		t.Fatalf("message text = %q, want world", c.Text)
	}
	cached, ok := s.Cache().Get(req.ID)
	if !ok || cached.Ref != first.Ref || cached.Content.Text != "world" {
		t.Fatalf("cache = %+v, %v", cached, ok)
	}
}

func TestRespondNoSaveSkipsCache(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	if _, err := s.Respond(ctx, req, text("hi"), Options{NoSave: true}); err != nil {
		t.Fatal(err)
	}
	if s.Cache().Len() != 0 {
		t.Fatalf("cache Len() = %d, want 0", s.Cache().Len())
	}

	// A cached response is left alone too.
	s.Respond(ctx, req, text("saved"), Options{})
	before, _ := s.Cache().Get(req.ID)
	if _, err := s.Respond(ctx, req, text("again"), Options{NoSave: true}); err != nil {
		t.Fatal(err)
	}
	after, _ := s.Cache().Get(req.ID)
	if before.Ref != after.Ref || after.Content.Text != "saved" {
		t.Fatalf("no-save call touched the cache: %+v -> %+v", before, after)
	}
	if sends, edits, _ := f.counts(); sends != 3 || edits != 0 {
		t.Fatalf("sends=%d edits=%d, want 3 and 0", sends, edits)
	}
}

func TestRespondNoEditReplacesEntry(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	old, _ := s.Respond(ctx, req, text("one"), Options{})
	fresh, err := s.Respond(ctx, req, text("two"), Options{NoEdit: true})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Ref == old.Ref {
		t.Fatal("NoEdit edited the old response")
	}
	cached, _ := s.Cache().Get(req.ID)
	if cached.Ref != fresh.Ref {
		t.Fatalf("cache points at %v, want %v", cached.Ref, fresh.Ref)
	}
	if c, _ := f.content(old.Ref); c.Text != "one" {
		t.Fatalf("old response changed to %q", c.Text)
	}
}

func TestRespondFilesForceFreshSend(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	old, _ := s.Respond(ctx, req, text("one"), Options{})
	withFile := transport.Content{Text: "log", Files: []transport.File{{Name: "a.txt", Data: []byte("x")}}}
	fresh, err := s.Respond(ctx, req, withFile, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Ref == old.Ref {
		t.Fatal("attachment was edited in place")
	}
	if _, edits, _ := f.counts(); edits != 0 {
		t.Fatalf("edits = %d, want 0", edits)
	}
}

func TestRespondRecoversVanishedResponse(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	old, _ := s.Respond(ctx, req, text("hi"), Options{})
	f.vanish(old.Ref)

	fresh, err := s.Respond(ctx, req, text("again"), Options{})
	if err != nil {
		t.Fatalf("Respond after vanish = %v", err)
	}
	if fresh == nil || fresh.Ref == old.Ref {
		t.Fatalf("fresh = %+v, want a new response", fresh)
	}
	cached, _ := s.Cache().Get(req.ID)
	if cached.Ref != fresh.Ref {
		t.Fatalf("cache points at %v, want %v", cached.Ref, fresh.Ref)
	}
}

func TestRespondPermissionChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		perms   transport.Perms
		content transport.Content
		action  string
	}{
		{"no send", transport.Perms{}, text("x"), "send messages"},
		{"no embed", transport.Perms{Send: true, Attach: true}, transport.Content{Embeds: []transport.Embed{{Title: "t"}}}, "embed links"},
		{"no attach", transport.Perms{Send: true, Embed: true}, transport.Content{Files: []transport.File{{Name: "f"}}}, "attach files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			f.perms[botID] = tt.perms
			s := newService(t, f, noAffordance())

			_, err := s.Respond(context.Background(), request(1), tt.content, Options{})
			var pe *PermissionError
			if !errors.As(err, &pe) || pe.Action != tt.action {
				t.Fatalf("err = %v, want PermissionError(%s)", err, tt.action)
			}
			if sends, _, _ := f.counts(); sends != 0 {
				t.Fatalf("sends = %d, want 0", sends)
			}

			// Button presses skip the check.
			req := request(1)
			req.Interaction = true
			if _, err := s.Respond(context.Background(), req, tt.content, Options{}); err != nil {
				t.Fatalf("interaction Respond = %v", err)
			}
		})
	}
}

func TestRespondPropagatesTransportFailure(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.sendErr = errors.New("network down")
	s := newService(t, f, noAffordance())

	a, err := s.Respond(context.Background(), request(1), text("x"), Options{})
	if err == nil || a != nil {
		t.Fatalf("Respond = %v, %v; want error", a, err)
	}
	if IsPermission(err) {
		t.Fatal("transport failure reported as permission error")
	}
	if s.Cache().Len() != 0 {
		t.Fatal("failed send was cached")
	}
}

func TestReplyFallsBackWithoutReference(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.badRef = true
	s := newService(t, f, noAffordance())

	a, err := s.For(request(7)).Reply(context.Background(), text("x"), Options{})
	if err != nil || a == nil {
		t.Fatalf("Reply = %v, %v", a, err)
	}
	if sends, _, _ := f.counts(); sends != 1 {
		t.Fatalf("sends = %d, want 1", sends)
	}
}

func TestReplyQuotesInvokingMessage(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())

	if _, err := s.For(request(7)).Reply(context.Background(), text("x"), Options{}); err != nil {
		t.Fatal(err)
	}
	if len(f.replyTo) != 1 || f.replyTo[0] != 7 {
		t.Fatalf("replyTo = %v, want [7]", f.replyTo)
	}
}

func TestRespondClearsReactionsWhenManaging(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	first, _ := s.Respond(ctx, req, text("a"), Options{})
	s.Respond(ctx, req, text("b"), Options{})
	if len(f.cleared) != 2 || f.cleared[0] != req.InvokeRef() || f.cleared[1] != first.Ref {
		t.Fatalf("cleared = %v, want invoke and response", f.cleared)
	}

	s.Respond(ctx, req, text("c"), Options{KeepInvokeReactions: true})
	if len(f.cleared) != 3 || f.cleared[2] != first.Ref {
		t.Fatalf("cleared = %v, want only the response cleared", f.cleared)
	}

	f.perms[botID] = transport.Perms{Send: true, Embed: true, Attach: true}
	s.Respond(ctx, req, text("d"), Options{})
	if len(f.cleared) != 3 {
		t.Fatalf("cleared without manage rights: %v", f.cleared)
	}
}

func TestRespondRefetchFailureReturnsNil(t *testing.T) {
	t.Parallel()

	f := &fetchingMessenger{fakeMessenger: newFake()}
	s := newService(t, f, noAffordance())
	ctx := context.Background()
	req := request(1)

	s.Respond(ctx, req, text("a"), Options{})

	a, err := s.Respond(ctx, req, text("b"), Options{})
	if err != nil || a == nil || a.Content.Text != "b" {
		t.Fatalf("Respond = %+v, %v", a, err)
	}

	f.fetchErr = errors.New("boom")
	a, err = s.Respond(ctx, req, text("c"), Options{})
	if err != nil || a != nil {
		t.Fatalf("Respond = %+v, %v; want nil, nil", a, err)
	}
	if c, _ := f.content(s.mustGet(t, req.ID).Ref); c.Text != "c" {
		t.Fatalf("edit not applied: %q", c.Text)
	}
}

func TestRespondRefetchFailureKeepsEditedContent(t *testing.T) {
	t.Parallel()

	f := &fetchingMessenger{fakeMessenger: newFake()}
	s := newService(t, f, buttonCfg(150*time.Millisecond))
	events, unsub := s.Bus().Subscribe(4, EventAffordance)
	defer unsub()
	ctx := context.Background()
	req := request(1)

	first, err := s.Respond(ctx, req, text("a"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	waitSignal(t, f.fakeMessenger, "edit")

	f.fetchErr = errors.New("boom")
	if a, err := s.Respond(ctx, req, text("b"), Options{}); err != nil || a != nil {
		t.Fatalf("Respond = %+v, %v; want nil, nil", a, err)
	}

	if ev := waitAffordance(t, events); ev.State != StateExpired {
		t.Fatalf("state = %v, want %v", ev.State, StateExpired)
	}
	c, ok := f.content(first.Ref)
	if !ok || c.Text != "b" || len(c.Buttons) != 0 {
		t.Fatalf("content = %+v, want %q without buttons", c, "b")
	}
}

func TestRespondPublishesOutcome(t *testing.T) {
	t.Parallel()

	f := newFake()
	s := newService(t, f, noAffordance())
	ch, unsub := s.Bus().Subscribe(8, EventResponded)
	defer unsub()

	ctx := context.Background()
	s.Respond(ctx, request(1), text("a"), Options{})
	s.Respond(ctx, request(1), text("b"), Options{})

	for _, want := range []string{OutcomeSent, OutcomeEdited} {
		ev := (<-ch).Data.(RespondEvent)
		if ev.Outcome != want {
			t.Fatalf("outcome = %q, want %q", ev.Outcome, want)
		}
	}
}

func (s *Service) mustGet(t *testing.T, id RequestID) Artifact {
	t.Helper()
	a, ok := s.Cache().Get(id)
	if !ok {
		t.Fatalf("cache miss for %v", id)
	}
	return a
}
