package util

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"editbot/internal/editor"
	"editbot/internal/router"
	"editbot/internal/runtime/supervisor"
	"editbot/internal/storage"
	"editbot/internal/transport"
	"editbot/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const chat int64 = -7

type call struct {
	edit bool
	ref  transport.MessageRef
	c    transport.Content
	so   *transport.SendOptions
}

type fakeMessenger struct {
	mu    sync.Mutex
	next  int
	calls []call
}

func (f *fakeMessenger) Self() int64 { return 1 }

func (f *fakeMessenger) Send(_ context.Context, to transport.ChatTarget, c transport.Content, so *transport.SendOptions) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ref := transport.MessageRef{ChatID: to.ChatID, MessageID: 900 + f.next}
	f.calls = append(f.calls, call{ref: ref, c: c, so: so})
	return &transport.Message{ID: ref.MessageID, ChatID: to.ChatID, FromID: 1, FromBot: true, Text: c.Text}, nil
}

func (f *fakeMessenger) Edit(_ context.Context, ref transport.MessageRef, c transport.Content) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{edit: true, ref: ref, c: c})
	return &transport.Message{ID: ref.MessageID, ChatID: ref.ChatID, Text: c.Text}, nil
}

func (f *fakeMessenger) Delete(context.Context, transport.MessageRef) error { return nil }

func (f *fakeMessenger) AnswerCallback(context.Context, string, string, bool) error { return nil }

func (f *fakeMessenger) Permissions(context.Context, int64, int64) (transport.Perms, error) {
	return transport.AllPerms, nil
}

func (f *fakeMessenger) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("nothing sent")
	}
	return f.calls[len(f.calls)-1]
}

type fixture struct {
	f   *fakeMessenger
	svc *editor.Service
	p   *Plugin
}

func newFixture(t *testing.T, d Deps) *fixture {
	t.Helper()
	f := &fakeMessenger{}
	sup := supervisor.New(context.Background())
	t.Cleanup(func() {
		sup.Cancel()
		_ = sup.Wait(context.Background())
	})
	svc := editor.New(editor.Config{DeleteAffordance: "false", EditWindow: time.Minute}, editor.Deps{Messenger: f, Spawner: sup})
	d.Editor = svc
	return &fixture{f: f, svc: svc, p: New(d)}
}

// request builds a command request for invoking message id.
func (fx *fixture) request(id int, args []string, flags map[string]string, bools map[string]bool) *router.Request {
	if flags == nil {
		flags = map[string]string{}
	}
	if bools == nil {
		bools = map[string]bool{}
	}
	er := editor.Request{ID: editor.RequestID{ChatID: chat, MessageID: id}, Chat: transport.ChatTarget{ChatID: chat}, ActorID: 5}
	return &router.Request{
		Chat:      er.Chat,
		FromID:    5,
		Args:      args,
		Flags:     flags,
		BoolFlags: bools,
		Messenger: fx.f,
		Logger:    logx.Nop(),
		Editor:    fx.svc.For(er),
	}
}

func (fx *fixture) command(t *testing.T, route string) router.HandlerFunc {
	t.Helper()
	for _, c := range fx.p.Commands() {
		if c.Route == route {
			return c.Handle
		}
	}
	t.Fatalf("no command %q", route)
	return nil
}

func TestOptionsFrom(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]string
		bools   map[string]bool
		check   func(editor.Options) bool
		wantErr bool
	}{
		{"none", nil, nil, func(o editor.Options) bool { return o == editor.Options{} }, false},
		{"bare delete", nil, map[string]bool{"delete": true}, func(o editor.Options) bool { return o.DeleteAffordance == true }, false},
		{"delete off", map[string]string{"delete": "no"}, nil, func(o editor.Options) bool { return o.DeleteAffordance == false }, false},
		{"delete emoji", map[string]string{"delete": "❌"}, nil, func(o editor.Options) bool {
			return o.DeleteAffordance == transport.Emoji{Unicode: "❌"}
		}, false},
		{"delete custom", map[string]string{"delete": "5368324170671202286"}, nil, func(o editor.Options) bool {
			return o.DeleteAffordance == transport.Emoji{CustomID: "5368324170671202286"}
		}, false},
		{"delete word", map[string]string{"delete": "hello"}, nil, nil, true},
		{"timeouts", map[string]string{"timeout": "2m", "after": "30"}, nil, func(o editor.Options) bool {
			return o.DeleteTimeout == 2*time.Minute && o.DeleteAfter == 30*time.Second
		}, false},
		{"bad timeout", map[string]string{"timeout": "soon"}, nil, nil, true},
		{"reply button", nil, map[string]bool{"reply": true, "button": true}, func(o editor.Options) bool {
			return o.Reply && o.Trigger == editor.TriggerButton
		}, false},
		{"react", nil, map[string]bool{"react": true, "keep-reactions": true}, func(o editor.Options) bool {
			return o.Trigger == editor.TriggerReaction && o.KeepInvokeReactions
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &router.Request{Flags: tt.flags, BoolFlags: tt.bools}
			if req.Flags == nil {
				req.Flags = map[string]string{}
			}
			if req.BoolFlags == nil {
				req.BoolFlags = map[string]bool{}
			}
			opts, err := optionsFrom(req)
			if tt.wantErr {
				var ue *router.UsageError
				if !errors.As(err, &ue) {
					t.Fatalf("err = %v, want usage error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if !tt.check(opts) {
				t.Fatalf("opts = %+v", opts)
			}
		})
	}
}

func TestEchoModes(t *testing.T) {
	fx := newFixture(t, Deps{})
	ctx := context.Background()
	echo, fresh, once := fx.command(t, "echo"), fx.command(t, "echo fresh"), fx.command(t, "echo once")

	if err := echo(ctx, fx.request(1, []string{"hi"}, nil, nil)); err != nil {
		t.Fatal(err)
	}
	first := fx.f.last(t)
	if first.edit || first.c.Text != "hi" {
		t.Fatalf("first = %+v", first)
	}

	if err := echo(ctx, fx.request(1, []string{"hi", "again"}, nil, nil)); err != nil {
		t.Fatal(err)
	}
	if got := fx.f.last(t); !got.edit || got.ref != first.ref || got.c.Text != "hi again" {
		t.Fatalf("edit = %+v", got)
	}

	if err := fresh(ctx, fx.request(1, []string{"new"}, nil, nil)); err != nil {
		t.Fatal(err)
	}
	renewed := fx.f.last(t)
	if renewed.edit || renewed.ref == first.ref {
		t.Fatalf("fresh = %+v", renewed)
	}
	if a, ok := fx.svc.Cache().Get(editor.RequestID{ChatID: chat, MessageID: 1}); !ok || a.Ref != renewed.ref {
		t.Fatalf("cache not replaced: %+v %v", a, ok)
	}

	before := fx.svc.Cache().Len()
	if err := once(ctx, fx.request(2, []string{"x"}, nil, map[string]bool{"reply": true})); err != nil {
		t.Fatal(err)
	}
	if got := fx.f.last(t); got.edit || got.so == nil || got.so.ReplyTo != 2 {
		t.Fatalf("once = %+v", got)
	}
	if fx.svc.Cache().Len() != before {
		t.Fatal("echo once was cached")
	}

	var ue *router.UsageError
	if err := echo(ctx, fx.request(3, nil, nil, nil)); !errors.As(err, &ue) {
		t.Fatalf("empty echo err = %v", err)
	}
}

func TestEchoPrefixFromConfig(t *testing.T) {
	fx := newFixture(t, Deps{})
	if err := fx.p.OnConfigChange(context.Background(), []byte(`{"prefix":"> "}`)); err != nil {
		t.Fatal(err)
	}
	if err := fx.p.OnConfigChange(context.Background(), []byte(`{`)); err == nil {
		t.Fatal("bad config accepted")
	}
	if err := fx.command(t, "echo")(context.Background(), fx.request(1, []string{"yo"}, nil, nil)); err != nil {
		t.Fatal(err)
	}
	if got := fx.f.last(t).c.Text; got != "> yo" {
		t.Fatalf("text = %q", got)
	}
}

func TestDuration(t *testing.T) {
	fx := newFixture(t, Deps{})
	cmd := fx.command(t, "duration")
	ctx := context.Background()

	if err := cmd(ctx, fx.request(1, []string{"1h30m5s"}, nil, nil)); err != nil {
		t.Fatal(err)
	}
	got := fx.f.last(t).c
	for _, want := range []string{"5,405", "1 hour, 30 minutes and 5 seconds", "1h, 30m and 5s", "01:30:05"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("output missing %q:\n%s", want, got.Text)
		}
	}
	if got.ParseMode != "HTML" {
		t.Errorf("parse mode = %q", got.ParseMode)
	}

	if err := cmd(ctx, fx.request(1, []string{"2w"}, nil, nil)); err != nil {
		t.Fatal(err)
	}
	if got := fx.f.last(t); !got.edit || !strings.Contains(got.c.Text, "n/a") {
		t.Fatalf("long span = %+v", got)
	}

	var ue *router.UsageError
	for _, args := range [][]string{nil, {"soon"}} {
		if err := cmd(ctx, fx.request(2, args, nil, nil)); !errors.As(err, &ue) {
			t.Fatalf("args %v: err = %v", args, err)
		}
	}
}

func TestCacheAndHealth(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	_ = st.Append(ctx, storage.Entry{At: time.Now(), Kind: storage.KindRespond, Outcome: "edited"})
	_ = st.Append(ctx, storage.Entry{At: time.Now(), Kind: storage.KindAffordance, Outcome: "deleted", Detail: "button"})

	sups := router.NewSupervisorRegistry()
	worker := supervisor.New(ctx)
	t.Cleanup(func() {
		worker.Cancel()
		_ = worker.Wait(context.Background())
	})
	sups.Set("router", worker)

	fx := newFixture(t, Deps{Store: st, Supervisors: sups})
	if err := fx.command(t, "echo")(ctx, fx.request(1, []string{"a"}, nil, nil)); err != nil {
		t.Fatal(err)
	}

	if err := fx.command(t, "cache")(ctx, fx.request(2, nil, nil, nil)); err != nil {
		t.Fatal(err)
	}
	out := fx.f.last(t).c.Text
	for _, want := range []string{"Entries</b>: 1", "Capacity</b>: 500", "edited</b>: 1", "delete deleted</b>: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("/cache missing %q:\n%s", want, out)
		}
	}

	var ue *router.UsageError
	if err := fx.command(t, "cache")(ctx, fx.request(3, nil, map[string]string{"since": "x"}, nil)); !errors.As(err, &ue) {
		t.Fatalf("bad --since err = %v", err)
	}

	if err := fx.command(t, "health")(ctx, fx.request(4, nil, nil, nil)); err != nil {
		t.Fatal(err)
	}
	out = fx.f.last(t).c.Text
	for _, want := range []string{"Goroutines", "Heap", "router</b>: 0 active"} {
		if !strings.Contains(out, want) {
			t.Errorf("/health missing %q:\n%s", want, out)
		}
	}
}

func TestPingEditsItsReply(t *testing.T) {
	fx := newFixture(t, Deps{})
	if err := fx.command(t, "ping")(context.Background(), fx.request(1, nil, nil, nil)); err != nil {
		t.Fatal(err)
	}
	fx.f.mu.Lock()
	calls := append([]call(nil), fx.f.calls...)
	fx.f.mu.Unlock()
	if len(calls) != 2 || calls[0].edit || !calls[1].edit || !strings.HasPrefix(calls[1].c.Text, "pong (") {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestMention(t *testing.T) {
	fx := newFixture(t, Deps{})
	cmd := fx.command(t, "mention")
	ctx := context.Background()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"42"}, `<a href="tg://user?id=42">42</a>`},
		{[]string{"42", "Bob", "&", "co"}, `<a href="tg://user?id=42">Bob &amp; co</a>`},
		{[]string{"@gopher_fan"}, "@gopher_fan"},
		{[]string{"@gopher_fan", "Gopher"}, "Gopher <i>(@gopher_fan)</i>"},
	}
	for i, tt := range tests {
		if err := cmd(ctx, fx.request(10+i, tt.args, nil, nil)); err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if got := fx.f.last(t).c.Text; got != tt.want {
			t.Errorf("%v: text = %q, want %q", tt.args, got, tt.want)
		}
	}

	var ue *router.UsageError
	for _, args := range [][]string{nil, {"@x"}, {"nobody"}} {
		if err := cmd(ctx, fx.request(30, args, nil, nil)); !errors.As(err, &ue) {
			t.Errorf("%v: err = %v, want usage error", args, err)
		}
	}
}

func TestEchoQuote(t *testing.T) {
	fx := newFixture(t, Deps{})
	if err := fx.command(t, "echo")(context.Background(), fx.request(1, []string{"<b>"}, nil, map[string]bool{"quote": true})); err != nil {
		t.Fatal(err)
	}
	got := fx.f.last(t).c
	if got.Text != "<blockquote>&lt;b&gt;</blockquote>" || got.ParseMode != "HTML" {
		t.Fatalf("content = %+v", got)
	}
}
