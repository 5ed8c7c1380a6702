package tgui

import (
	"fmt"
	"html"
	"strings"

	"editbot/internal/transport"
)

// H represents HTML that is safe to pass to Telegram when ParseMode="HTML".
// Values of type H should be treated as already-escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H     { return wrap("b", Esc(s)) }
func I(s string) H     { return wrap("i", Esc(s)) }
func Code(s string) H  { return wrap("code", Esc(s)) }
func Quote(s string) H { return wrap("blockquote", Esc(s)) }

func Pre(s string) H {
	return H("<pre><code>" + html.EscapeString(s) + "</code></pre>")
}

func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// Mention links to a Telegram user ID.
func Mention(name string, userID int64) H {
	return Link(name, fmt.Sprintf("tg://user?id=%d", userID))
}

// JoinH joins non-blank parts with sep.
func JoinH(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, sep))
}

// RenderEmbeds folds embeds into the message text. Telegram has no embed
// object, so each one becomes a quoted block below the text. Plain text is
// escaped and the result is always HTML.
func RenderEmbeds(c transport.Content) (string, string) {
	if !c.HasEmbeds() {
		return c.Text, c.ParseMode
	}
	body := H(c.Text)
	if !strings.EqualFold(c.ParseMode, "HTML") {
		// Markdown cannot be mixed with HTML embeds, so it is shown verbatim.
		body = Esc(c.Text)
	}
	parts := []H{body}
	for _, e := range c.Embeds {
		var lines []H
		switch {
		case e.Title != "" && e.URL != "":
			lines = append(lines, H("<b>"+Link(e.Title, e.URL).String()+"</b>"))
		case e.Title != "":
			lines = append(lines, B(e.Title))
		case e.URL != "":
			lines = append(lines, Link(e.URL, e.URL))
		}
		if e.Description != "" {
			lines = append(lines, Esc(e.Description))
		}
		if len(lines) == 0 {
			continue
		}
		parts = append(parts, H("<blockquote>"+JoinH("\n", lines...).String()+"</blockquote>"))
	}
	return JoinH("\n\n", parts...).String(), "HTML"
}
