package tgui

import (
	"errors"
	"strings"
	"testing"

	"editbot/internal/transport"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		limit     int
		parseMode string
		want      []string
	}{
		{"short", "hello", 10, "", []string{"hello"}},
		{"hard cut", "abcdefghij", 4, "", []string{"abcd", "efgh", "ij"}},
		{"newline", "aaaa\nbbbbbb", 8, "", []string{"aaaa", "bbbbbb"}},
		{"html tag", "abcde<b>x</b>", 7, "HTML", []string{"abcde", "<b>x", "</b>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.in, tt.limit, tt.parseMode)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("SplitText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncRunes(t *testing.T) {
	if got := TruncRunes("héllo", 2); got != "hé…" {
		t.Fatalf("TruncRunes = %q", got)
	}
	if got := TruncRunes("hi", 5); got != "hi" {
		t.Fatalf("TruncRunes = %q", got)
	}
}

func TestRenderEmbeds(t *testing.T) {
	text, mode := RenderEmbeds(transport.Content{
		Text:   "a < b",
		Embeds: []transport.Embed{{Title: "T", URL: "https://x.test", Description: "d&d"}},
	})
	if mode != "HTML" {
		t.Fatalf("mode = %q", mode)
	}
	want := "a &lt; b\n\n<blockquote><b><a href=\"https://x.test\">T</a></b>\nd&amp;d</blockquote>"
	if text != want {
		t.Fatalf("text = %q\nwant %q", text, want)
	}

	text, mode = RenderEmbeds(transport.Content{Text: "plain"})
	if text != "plain" || mode != "" {
		t.Fatalf("no embeds: %q %q", text, mode)
	}
}

func TestBuilder(t *testing.T) {
	c := New().
		Title("🗑️", "A & B").
		KV("size", "<3>").
		Row(Btn("x", "editor:del")).
		Build()
	if c.Text != "🗑️ <b>A &amp; B</b>\n• <b>size</b>: &lt;3&gt;" {
		t.Fatalf("text = %q", c.Text)
	}
	if c.ParseMode != "HTML" || len(c.Buttons) != 1 {
		t.Fatalf("content = %+v", c)
	}
}

func TestMarkup(t *testing.T) {
	if Markup(nil) != nil {
		t.Fatal("empty layout should produce nil markup")
	}
	rows := [][]transport.Button{{Btn("a", "1"), Btn("b", "2")}, {{Text: "c", URL: "https://c.test"}}}
	rm := Markup(rows)
	if rm == nil || len(rm.InlineKeyboard) != 2 {
		t.Fatalf("Markup = %+v", rm)
	}
	if rm.InlineKeyboard[0][1].Data != "2" || rm.InlineKeyboard[1][0].URL != "https://c.test" {
		t.Fatalf("buttons = %+v", rm.InlineKeyboard)
	}
}

func TestCheckCallbackData(t *testing.T) {
	long := strings.Repeat("x", MaxCallbackDataLen+1)
	err := CheckCallbackData([][]transport.Button{{Btn("ok", "a")}, {Btn("bad", long)}})
	if !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("err = %v", err)
	}
	if err := CheckCallbackData([][]transport.Button{{Btn("ok", "a")}}); err != nil {
		t.Fatal(err)
	}
}
