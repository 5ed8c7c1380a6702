package tgui

import (
	"strings"

	"editbot/internal/transport"
)

// Builder assembles a transport.Content line by line.
// Default: ParseMode=HTML, DisablePreview=true.
type Builder struct {
	parseMode      string
	disablePreview bool
	lines          []string
	rows           [][]transport.Button
	embeds         []transport.Embed
	files          []transport.File
}

func New() *Builder {
	return &Builder{parseMode: "HTML", disablePreview: true}
}

// ParseMode overrides Telegram parse mode ("HTML", "Markdown", or empty).
func (b *Builder) ParseMode(mode string) *Builder {
	b.parseMode = strings.TrimSpace(mode)
	return b
}

func (b *Builder) DisablePreview(v bool) *Builder {
	b.disablePreview = v
	return b
}

func (b *Builder) html() bool { return strings.EqualFold(b.parseMode, "HTML") }

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e, t := strings.TrimSpace(emoji), strings.TrimSpace(title)
	if t == "" {
		return b
	}
	line := t
	if b.html() {
		line = B(t).String()
	}
	if e != "" {
		line = e + " " + line
	}
	b.lines = append(b.lines, line)
	return b
}

// Line adds a single line, escaping when ParseMode is HTML.
func (b *Builder) Line(s string) *Builder {
	if b.html() {
		s = Esc(s).String()
	}
	b.lines = append(b.lines, s)
	return b
}

// HTML appends already-safe markup.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

// KV adds a "key: value" bullet.
func (b *Builder) KV(key, value string) *Builder {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return b
	}
	if b.html() {
		b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(value).String())
		return b
	}
	b.lines = append(b.lines, "• "+key+": "+value)
	return b
}

func (b *Builder) Pre(code string) *Builder {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return b
	}
	if b.html() {
		b.lines = append(b.lines, Pre(code).String())
		return b
	}
	b.lines = append(b.lines, code)
	return b
}

// Row appends a row of inline buttons.
func (b *Builder) Row(btns ...transport.Button) *Builder {
	if len(btns) > 0 {
		b.rows = append(b.rows, btns)
	}
	return b
}

func (b *Builder) Embed(e transport.Embed) *Builder {
	b.embeds = append(b.embeds, e)
	return b
}

func (b *Builder) File(f transport.File) *Builder {
	b.files = append(b.files, f)
	return b
}

// Build produces the content. Leading and trailing blank lines are dropped.
func (b *Builder) Build() transport.Content {
	return transport.Content{
		Text:           strings.Trim(strings.Join(b.lines, "\n"), "\n"),
		ParseMode:      b.parseMode,
		DisablePreview: b.disablePreview,
		Embeds:         b.embeds,
		Files:          b.files,
		Buttons:        b.rows,
	}
}
