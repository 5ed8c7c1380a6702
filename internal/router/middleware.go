package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"editbot/internal/editor"
	"editbot/internal/transport"
	"editbot/pkg/logx"
)

// Requests slower than this are logged at info level.
const slowRequest = 750 * time.Millisecond

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that mws[0] runs first.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Timeout bounds the handler's context. d <= 0 leaves it unbounded.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// Recover turns a handler panic into an error.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("handler panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// LogRequests logs each handled request with its duration. Fast successes
// stay at debug.
func LogRequests() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.Bool("redispatched", req.Edited),
				logx.Duration("took", took),
			}
			var ue *UsageError
			switch {
			case errors.As(err, &ue):
				req.Logger.Debug("request rejected", append(fields, logx.String("usage", ue.Msg))...)
			case err != nil:
				req.Logger.Warn("request failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				req.Logger.Info("request slow", fields...)
			default:
				req.Logger.Debug("request ok", fields...)
			}
			return err
		}
	}
}

// ReplyErrors answers user-facing errors in the chat. A permission error
// bypasses the editor, which just refused to send; a usage error is an
// ordinary editable answer so fixing the command replaces it.
func ReplyErrors(usage string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			var pe *editor.PermissionError
			var ue *UsageError
			switch {
			case err == nil:
			case errors.As(err, &pe):
				if req.Messenger != nil {
					_, _ = req.Messenger.Send(ctx, req.Chat, transport.Content{Text: pe.Error()}, nil)
				}
			case errors.As(err, &ue):
				text := ue.Msg
				if usage != "" {
					text += "\nUsage: " + usage
				}
				if rerr := req.Reply(ctx, text); rerr != nil {
					req.Logger.Debug("usage reply failed", logx.Err(rerr))
				}
			}
			return err
		}
	}
}
