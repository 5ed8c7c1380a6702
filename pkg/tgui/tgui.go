package tgui

import (
	tele "gopkg.in/telebot.v4"

	"editbot/internal/transport"
)

// Markup converts transport button rows into a Telegram inline keyboard.
// It returns nil for an empty layout so edits can drop an existing keyboard
// by passing an empty markup instead.
func Markup(rows [][]transport.Button) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	if len(rows) == 0 {
		return nil
	}
	out := make([]tele.Row, 0, len(rows))
	for _, r := range rows {
		btns := make([]tele.Btn, 0, len(r))
		for _, b := range r {
			if b.Text == "" {
				continue
			}
			btns = append(btns, tele.Btn{Text: b.Text, Data: b.Data, URL: b.URL})
		}
		if len(btns) > 0 {
			out = append(out, rm.Row(btns...))
		}
	}
	if len(out) == 0 {
		return nil
	}
	rm.Inline(out...)
	return rm
}

// Btn creates a callback button. Data is sent as-is.
func Btn(text, data string) transport.Button {
	return transport.Button{Text: text, Data: data}
}
