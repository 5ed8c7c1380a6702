package adapter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"editbot/internal/transport"
	"editbot/pkg/logx"
	"editbot/pkg/tgui"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"edit gone", "telegram: Bad Request: message to edit not found (400)", transport.ErrNotFound},
		{"delete gone", "telegram: Bad Request: message to delete not found (400)", transport.ErrNotFound},
		{"invalid id", "telegram: Bad Request: MESSAGE_ID_INVALID (400)", transport.ErrNotFound},
		{"bad reply", "telegram: Bad Request: message to be replied not found (400)", transport.ErrBadReference},
		{"rights", "telegram: Bad Request: not enough rights to send text messages to the chat (400)", transport.ErrForbidden},
		{"kicked", "telegram: Forbidden: bot was kicked from the group chat (403)", transport.ErrForbidden},
		{"other", "telegram: Too Many Requests: retry after 5 (429)", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := errors.New(tt.msg)
			got := mapError(src)
			if !errors.Is(got, src) {
				t.Fatalf("original error lost: %v", got)
			}
			for _, s := range []error{transport.ErrNotFound, transport.ErrBadReference, transport.ErrForbidden} {
				if errors.Is(got, s) != (s == tt.want) {
					t.Fatalf("mapError(%q) = %v, want sentinel %v", tt.msg, got, tt.want)
				}
			}
		})
	}
	if mapError(nil) != nil {
		t.Fatal("mapError(nil) != nil")
	}
}

func TestIsNotModified(t *testing.T) {
	if !isNotModified(errors.New("telegram: Bad Request: message is not modified: specified new message content and reply markup are exactly the same (400)")) {
		t.Fatal("not-modified not detected")
	}
	if isNotModified(errors.New("message to edit not found")) {
		t.Fatal("false positive")
	}
}

func TestEditTextFitsOneMessage(t *testing.T) {
	long := strings.Repeat("a", tgui.MaxTextLen+10)
	tagged := strings.Repeat("x", tgui.MaxTextLen-3) + "<b>bold</b>"
	tests := []struct {
		name string
		text string
		mode string
		want string
	}{
		{"short", "hello", "", "hello"},
		{"exact", strings.Repeat("a", tgui.MaxTextLen), "", strings.Repeat("a", tgui.MaxTextLen)},
		{"long", long, "", strings.Repeat("a", tgui.MaxTextLen-1) + "…"},
		{"html tag kept whole", tagged, "HTML", strings.Repeat("x", tgui.MaxTextLen-3) + "…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := editText(tt.text, tt.mode)
			if got != tt.want {
				t.Fatalf("editText() = %d runes, want %d runes", len([]rune(got)), len([]rune(tt.want)))
			}
			if n := len([]rune(got)); n > tgui.MaxTextLen {
				t.Fatalf("editText() = %d runes, want <= %d", n, tgui.MaxTextLen)
			}
		})
	}
}

func TestReactionFromWire(t *testing.T) {
	raw := `{
		"chat": {"id": -100},
		"message_id": 7,
		"user": {"id": 55, "is_bot": false},
		"date": 1700000000,
		"old_reaction": [{"type": "emoji", "emoji": "👍"}],
		"new_reaction": [
			{"type": "emoji", "emoji": "👍"},
			{"type": "emoji", "emoji": "🗑"},
			{"type": "custom_emoji", "custom_emoji_id": "5368324170671202286"}
		]
	}`
	var w wireReaction
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatal(err)
	}
	r := reactionFromWire(&w)
	if r == nil {
		t.Fatal("nil reaction")
	}
	if r.ChatID != -100 || r.MessageID != 7 || r.ActorID != 55 {
		t.Fatalf("reaction = %+v", r)
	}
	if len(r.Added) != 2 {
		t.Fatalf("added = %+v, want the two new reactions only", r.Added)
	}
	if !r.Added[0].Matches(transport.Emoji{Unicode: "🗑️"}) {
		t.Fatalf("trash reaction must match regardless of variation selector: %+v", r.Added[0])
	}
	if r.Added[1].CustomID != "5368324170671202286" {
		t.Fatalf("custom = %+v", r.Added[1])
	}

	w.User = nil
	if reactionFromWire(&w) != nil {
		t.Fatal("anonymous reaction should be dropped")
	}
}

func TestDecodeMember(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want transport.Perms
	}{
		{"creator", `{"ok":true,"result":{"status":"creator"}}`, transport.AllPerms},
		{"admin without delete", `{"ok":true,"result":{"status":"administrator","can_delete_messages":false}}`,
			transport.Perms{Send: true, Embed: true, Attach: true}},
		{"admin with delete", `{"ok":true,"result":{"status":"administrator","can_delete_messages":true}}`,
			transport.Perms{Send: true, Embed: true, Attach: true, Manage: true}},
		{"restricted", `{"ok":true,"result":{"status":"restricted","can_send_messages":true,"can_add_web_page_previews":false,"can_send_documents":false}}`,
			transport.Perms{Send: true}},
		{"member", `{"ok":true,"result":{"status":"member"}}`, transport.Perms{Send: true, Embed: true, Attach: true}},
		{"left", `{"ok":true,"result":{"status":"left"}}`, transport.Perms{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMember([]byte(tt.raw))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("perms = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPermCacheExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newPermCache(time.Minute)
	c.now = func() time.Time { return now }

	c.put(-1, 2, transport.AllPerms)
	if p, ok := c.get(-1, 2); !ok || p != transport.AllPerms {
		t.Fatalf("get = %+v, %v", p, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.get(-1, 2); ok {
		t.Fatal("expired entry returned")
	}
}

func TestMenuPayload(t *testing.T) {
	cmds := []transport.BotCommand{
		{Command: "echo", Description: "repeat text"},
		{Command: ""},
		{Command: "ping"},
		{Command: "long", Description: strings.Repeat("x", 300)},
	}
	out, sum := menuPayload(cmds)
	if len(out) != 3 {
		t.Fatalf("payload = %+v", out)
	}
	if out[1].Description != "ping" || len(out[2].Description) != 256 {
		t.Fatalf("payload = %+v", out)
	}
	if _, again := menuPayload(cmds); again != sum {
		t.Fatal("hash not stable")
	}
	if _, other := menuPayload(cmds[:1]); other == sum {
		t.Fatal("hash ignores changes")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("New() accepted an empty token")
	}
	a, err := New(Config{Token: "123:abc", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if a.Self() != 0 {
		t.Fatalf("Self() = %d in offline mode", a.Self())
	}
}
