package transport

import (
	"context"
	"strings"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateEdited   UpdateKind = "edited"
	UpdateCallback UpdateKind = "callback"
	UpdateReaction UpdateKind = "reaction"
	UpdateDeleted  UpdateKind = "deleted"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
	Reaction *Reaction
	Deleted  *Deleted
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	FromBot      bool
	Text         string
	IsGroup      bool
	Date         time.Time
	EditedAt     time.Time // zero unless the message was edited
}

// Ref returns the address of m.
func (m *Message) Ref() MessageRef {
	return MessageRef{ChatID: m.ChatID, ThreadID: m.ThreadID, MessageID: m.ID}
}

type Callback struct {
	ID        string
	FromID    int64
	FromBot   bool
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

// Reaction reports a change of one user's reactions on a message.
type Reaction struct {
	ChatID    int64
	MessageID int
	ActorID   int64
	ActorBot  bool
	Added     []Emoji
}

// Deleted reports messages removed by someone other than the bot.
type Deleted struct {
	ChatID     int64
	MessageIDs []int
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) Chat() ChatTarget { return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID} }

// Emoji is either a unicode emoji or a custom emoji id (with its unicode
// fallback when known).
type Emoji struct {
	Unicode  string
	CustomID string
}

func (e Emoji) IsZero() bool { return e.Unicode == "" && e.CustomID == "" }

// Matches reports whether two emoji name the same reaction.
func (e Emoji) Matches(o Emoji) bool {
	if e.CustomID != "" || o.CustomID != "" {
		return e.CustomID == o.CustomID
	}
	return stripVariation(e.Unicode) == stripVariation(o.Unicode)
}

// stripVariation drops emoji presentation selectors; platforms disagree on them.
func stripVariation(s string) string { return strings.ReplaceAll(s, "\uFE0F", "") }

func (e Emoji) String() string {
	if e.Unicode != "" {
		return e.Unicode
	}
	return e.CustomID
}

// Content is everything that makes up one outgoing message.
type Content struct {
	Text           string
	ParseMode      string
	DisablePreview bool
	Embeds         []Embed
	Files          []File
	Buttons        [][]Button
}

// Embed is a rich link preview block rendered below the text.
type Embed struct {
	Title       string
	Description string
	URL         string
}

type File struct {
	Name    string
	Data    []byte
	Caption string
}

// Button is an inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

func (c Content) HasFiles() bool  { return len(c.Files) > 0 }
func (c Content) HasEmbeds() bool { return len(c.Embeds) > 0 }

type SendOptions struct {
	// ReplyTo references the message being answered (0 = none).
	ReplyTo int
}

// Perms is the subset of chat permissions the bot cares about.
type Perms struct {
	Send   bool
	Embed  bool
	Attach bool
	Manage bool // delete other users' messages, manage reactions
}

// AllPerms is what a user holds in a private chat.
var AllPerms = Perms{Send: true, Embed: true, Attach: true, Manage: true}

// Messenger sends and manages messages. It is the part of the adapter the
// response layer depends on.
type Messenger interface {
	Self() int64
	Send(ctx context.Context, to ChatTarget, c Content, opt *SendOptions) (*Message, error)
	Edit(ctx context.Context, ref MessageRef, c Content) (*Message, error)
	Delete(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error
	Permissions(ctx context.Context, chatID int64, userID int64) (Perms, error)
}

type Adapter interface {
	Messenger
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// Reactor is implemented by transports that support message reactions.
type Reactor interface {
	React(ctx context.Context, ref MessageRef, e Emoji) error
	Unreact(ctx context.Context, ref MessageRef, e Emoji) error
	ClearReactions(ctx context.Context, ref MessageRef) error
}

// Fetcher is implemented by transports that can re-read a message by id.
type Fetcher interface {
	Fetch(ctx context.Context, ref MessageRef) (*Message, error)
}

// EmojiRegistry resolves custom emoji ids known to the platform.
type EmojiRegistry interface {
	CustomEmoji(ctx context.Context, id string) (Emoji, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
