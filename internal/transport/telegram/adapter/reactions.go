package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"editbot/internal/transport"
)

type reactionType struct {
	Type          string `json:"type"`
	Emoji         string `json:"emoji,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

func toReactionType(e transport.Emoji) reactionType {
	if e.CustomID != "" {
		return reactionType{Type: "custom_emoji", CustomEmojiID: e.CustomID}
	}
	return reactionType{Type: "emoji", Emoji: e.Unicode}
}

func (r reactionType) emoji() transport.Emoji {
	if r.Type == "custom_emoji" {
		return transport.Emoji{CustomID: r.CustomEmojiID}
	}
	return transport.Emoji{Unicode: r.Emoji}
}

// React sets the bot's reaction. Telegram lets a bot hold one reaction per
// message, so this replaces any earlier one.
func (a *Adapter) React(ctx context.Context, ref transport.MessageRef, e transport.Emoji) error {
	return a.setReactions(ctx, ref, []reactionType{toReactionType(e)})
}

// Unreact removes the bot's reaction.
func (a *Adapter) Unreact(ctx context.Context, ref transport.MessageRef, _ transport.Emoji) error {
	return a.setReactions(ctx, ref, []reactionType{})
}

// ClearReactions can only clear the bot's own reaction; Telegram offers no
// call to remove other users' reactions.
func (a *Adapter) ClearReactions(ctx context.Context, ref transport.MessageRef) error {
	return a.setReactions(ctx, ref, []reactionType{})
}

func (a *Adapter) setReactions(ctx context.Context, ref transport.MessageRef, rs []reactionType) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	_, err := a.bot.Raw("setMessageReaction", map[string]any{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
		"reaction":   rs,
	})
	return mapError(err)
}

// CustomEmoji looks up a custom emoji id and returns it with its unicode
// fallback.
func (a *Adapter) CustomEmoji(ctx context.Context, id string) (transport.Emoji, error) {
	if err := a.wait(ctx); err != nil {
		return transport.Emoji{}, err
	}
	raw, err := a.bot.Raw("getCustomEmojiStickers", map[string]any{"custom_emoji_ids": []string{id}})
	if err != nil {
		return transport.Emoji{}, mapError(err)
	}
	var resp struct {
		Result []struct {
			Emoji         string `json:"emoji"`
			CustomEmojiID string `json:"custom_emoji_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return transport.Emoji{}, fmt.Errorf("getCustomEmojiStickers: %w", err)
	}
	for _, s := range resp.Result {
		if s.CustomEmojiID == id {
			return transport.Emoji{Unicode: s.Emoji, CustomID: id}, nil
		}
	}
	return transport.Emoji{}, fmt.Errorf("custom emoji %s: %w", id, transport.ErrNotFound)
}

type wireReaction struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	MessageID int `json:"message_id"`
	User      *struct {
		ID    int64 `json:"id"`
		IsBot bool  `json:"is_bot"`
	} `json:"user"`
	OldReaction []reactionType `json:"old_reaction"`
	NewReaction []reactionType `json:"new_reaction"`
}

// decodeReactionUpdate extracts a message_reaction update. It goes through
// JSON so it only depends on the Bot API field names.
func decodeReactionUpdate(u *tele.Update) *transport.Reaction {
	b, err := json.Marshal(u)
	if err != nil {
		return nil
	}
	var env struct {
		MessageReaction *wireReaction `json:"message_reaction"`
	}
	if err := json.Unmarshal(b, &env); err != nil || env.MessageReaction == nil {
		return nil
	}
	return reactionFromWire(env.MessageReaction)
}

// reactionFromWire reports only newly added reactions. Anonymous reactions
// (sent on behalf of a chat) carry no user and are dropped.
func reactionFromWire(w *wireReaction) *transport.Reaction {
	if w == nil || w.User == nil {
		return nil
	}
	old := make([]transport.Emoji, 0, len(w.OldReaction))
	for _, r := range w.OldReaction {
		old = append(old, r.emoji())
	}
	out := &transport.Reaction{
		ChatID:    w.Chat.ID,
		MessageID: w.MessageID,
		ActorID:   w.User.ID,
		ActorBot:  w.User.IsBot,
	}
next:
	for _, r := range w.NewReaction {
		e := r.emoji()
		for _, o := range old {
			if o.Matches(e) {
				continue next
			}
		}
		out.Added = append(out.Added, e)
	}
	return out
}
