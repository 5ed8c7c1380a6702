package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editbot/internal/config"
	"editbot/internal/editor"
	"editbot/internal/transport"
	"editbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Route is a space-separated command path, e.g. "echo" or "echo fresh".
	Route       string
	Aliases     []string // root-level aliases
	Description string
	Usage       string
	Access      Access

	Plugin  string
	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackAccess controls who can trigger an inline-button callback.
// Default is owner-only; public UI callbacks opt in explicitly.
type CallbackAccess int

const (
	CallbackAccessOwnerOnly CallbackAccess = iota
	CallbackAccessEveryone
)

// CallbackRoute handles callback data of the form "plugin:action:payload".
type CallbackRoute struct {
	Plugin      string
	Action      string
	Description string
	Access      CallbackAccess
	Timeout     time.Duration
	Handle      CallbackHandlerFunc
}

type Request struct {
	Update  transport.Update
	Chat    transport.ChatTarget
	FromID  int64
	Path    []string // matched command path tokens
	Command string   // route or callback key
	Args    []string
	Payload string // callback payload
	// Edited is set when the request comes from a re-dispatched edit.
	Edited bool

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Messenger   transport.Messenger
	Config      *config.Config
	Logger      logx.Logger
	Owners      []int64
	Supervisors *SupervisorRegistry

	// Editor is attached by the context hook. Nil when no hook is registered.
	Editor *editor.Context
}

// Reply answers the request. With an editor attached the answer is
// cache-aware (edits replace it); otherwise it is a plain send.
func (r *Request) Reply(ctx context.Context, text string) error {
	return r.ReplyContent(ctx, transport.Content{Text: text}, editor.Options{})
}

// ReplyHTML is Reply with HTML parse mode and previews disabled.
func (r *Request) ReplyHTML(ctx context.Context, html string) error {
	return r.ReplyContent(ctx, transport.Content{Text: html, ParseMode: "HTML", DisablePreview: true}, editor.Options{})
}

func (r *Request) ReplyContent(ctx context.Context, c transport.Content, opts editor.Options) error {
	if r.Editor != nil {
		_, err := r.Editor.SendContent(ctx, c, opts)
		return err
	}
	if r.Messenger == nil {
		return errors.New("router: request has no messenger")
	}
	_, err := r.Messenger.Send(ctx, r.Chat, c, nil)
	return err
}

func (r *Request) IsOwner() bool { return isOwner(r.FromID, r.Owners) }

// UsageError makes the router answer with the command's usage line.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// Interceptor sees every update before routing. Returning true consumes it.
type Interceptor func(ctx context.Context, up transport.Update) bool

// ContextHook decorates a request before its handler runs.
type ContextHook func(ctx context.Context, req *Request)

// EditFilter decides whether an edited message is dispatched again.
type EditFilter func(ctx context.Context, m *transport.Message) bool

// DeleteHook is told about messages deleted by someone else.
type DeleteHook func(d *transport.Deleted)

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
