package adapter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"editbot/internal/transport"
	"editbot/pkg/tgui"
)

// Send delivers c to the chat. Long text is split; the first part carries
// the reply reference and the keyboard and is the message returned. Files go
// out as documents, the first one captioned with the text when it fits.
func (a *Adapter) Send(ctx context.Context, to transport.ChatTarget, c transport.Content, opt *transport.SendOptions) (*transport.Message, error) {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	if err := tgui.CheckCallbackData(c.Buttons); err != nil {
		return nil, err
	}
	if c.HasFiles() {
		return a.sendFiles(ctx, to, c, opt)
	}

	text, mode := tgui.RenderEmbeds(c)
	chunks := tgui.SplitText(text, tgui.MaxTextLen, mode)
	chat := &tele.Chat{ID: to.ChatID}

	var first *transport.Message
	for i, chunk := range chunks {
		if err := a.wait(ctx); err != nil {
			return first, err
		}
		so := &tele.SendOptions{
			ParseMode:             mode,
			DisableWebPagePreview: c.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		if i == 0 {
			so.ReplyMarkup = tgui.Markup(c.Buttons)
			if opt.ReplyTo != 0 {
				so.ReplyTo = &tele.Message{ID: opt.ReplyTo, Chat: chat}
			}
		}
		msg, err := a.bot.Send(chat, chunk, so)
		if err != nil {
			return first, mapError(err)
		}
		if i == 0 {
			first = fromTele(msg)
		}
	}
	return first, nil
}

func (a *Adapter) sendFiles(ctx context.Context, to transport.ChatTarget, c transport.Content, opt *transport.SendOptions) (*transport.Message, error) {
	chat := &tele.Chat{ID: to.ChatID}
	text, mode := tgui.RenderEmbeds(c)

	var first *transport.Message
	captioned := false
	if len([]rune(text)) > tgui.MaxCaptionLen {
		sent, err := a.Send(ctx, to, transport.Content{Text: text, ParseMode: mode, DisablePreview: c.DisablePreview, Buttons: c.Buttons}, opt)
		if err != nil {
			return nil, err
		}
		first, captioned = sent, true
	}
	for i, f := range c.Files {
		if err := a.wait(ctx); err != nil {
			return first, err
		}
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(f.Data)),
			FileName: f.Name,
			Caption:  f.Caption,
		}
		so := &tele.SendOptions{ParseMode: mode, ThreadID: to.ThreadID}
		if i == 0 && !captioned {
			if text != "" {
				doc.Caption = text
			}
			so.ReplyMarkup = tgui.Markup(c.Buttons)
			if opt.ReplyTo != 0 {
				so.ReplyTo = &tele.Message{ID: opt.ReplyTo, Chat: chat}
			}
		}
		msg, err := a.bot.Send(chat, doc, so)
		if err != nil {
			return first, mapError(err)
		}
		if first == nil {
			first = fromTele(msg)
		}
	}
	return first, nil
}

// Edit replaces the text and keyboard of ref. An unchanged message counts as
// success. Text that no longer fits one message is cut short.
func (a *Adapter) Edit(ctx context.Context, ref transport.MessageRef, c transport.Content) (*transport.Message, error) {
	if c.HasFiles() {
		return nil, transport.ErrUnsupported
	}
	if err := tgui.CheckCallbackData(c.Buttons); err != nil {
		return nil, err
	}
	text, mode := tgui.RenderEmbeds(c)
	text = editText(text, mode)

	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	so := &tele.SendOptions{
		ParseMode:             mode,
		DisableWebPagePreview: c.DisablePreview,
		ReplyMarkup:           tgui.Markup(c.Buttons),
	}
	msg, err := a.bot.Edit(m, text, so)
	var out *transport.Message
	switch {
	case err == nil:
		out = fromTele(msg)
	case isNotModified(err):
		out = &transport.Message{ID: ref.MessageID, ChatID: ref.ChatID, ThreadID: ref.ThreadID, Text: text}
	default:
		return nil, mapError(err)
	}
	if out != nil && out.ThreadID == 0 {
		out.ThreadID = ref.ThreadID
	}
	return out, nil
}

// editText keeps the first chunk of text. An edit targets one message, so
// continuation chunks would be resent on every edit.
func editText(text, mode string) string {
	if utf8.RuneCountInString(text) <= tgui.MaxTextLen {
		return text
	}
	return tgui.SplitText(text, tgui.MaxTextLen-1, mode)[0] + "…"
}

func (a *Adapter) Delete(ctx context.Context, ref transport.MessageRef) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	err := a.bot.Delete(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}})
	return mapError(err)
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	err := a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
	return mapError(err)
}

// Permissions reports what userID may do in chatID. Private chats grant
// everything. Lookups are cached briefly since every response checks them.
func (a *Adapter) Permissions(ctx context.Context, chatID int64, userID int64) (transport.Perms, error) {
	if chatID > 0 {
		return transport.AllPerms, nil
	}
	if p, ok := a.perms.get(chatID, userID); ok {
		return p, nil
	}
	if err := a.wait(ctx); err != nil {
		return transport.Perms{}, err
	}
	raw, err := a.bot.Raw("getChatMember", map[string]any{"chat_id": chatID, "user_id": userID})
	if err != nil {
		return transport.Perms{}, mapError(err)
	}
	p, err := decodeMember(raw)
	if err != nil {
		return transport.Perms{}, err
	}
	a.perms.put(chatID, userID, p)
	return p, nil
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

var (
	notFoundMarkers = []string{
		"message to edit not found",
		"message to delete not found",
		"message_id_invalid",
		"message can't be edited",
		"message can't be deleted",
	}
	badRefMarkers = []string{
		"message to be replied not found",
		"replied message not found",
		"reply message not found",
	}
	forbiddenMarkers = []string{
		"not enough rights",
		"have no rights",
		"chat_write_forbidden",
		"bot was kicked",
		"forbidden:",
	}
)

// mapError translates Telegram API failures into transport sentinels. The
// original error stays in the chain for logging.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrNotFound) || errors.Is(err, transport.ErrBadReference) || errors.Is(err, transport.ErrForbidden) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, set := range []struct {
		markers  []string
		sentinel error
	}{
		{badRefMarkers, transport.ErrBadReference},
		{notFoundMarkers, transport.ErrNotFound},
		{forbiddenMarkers, transport.ErrForbidden},
	} {
		for _, m := range set.markers {
			if strings.Contains(msg, m) {
				return errors.Join(set.sentinel, err)
			}
		}
	}
	return err
}
