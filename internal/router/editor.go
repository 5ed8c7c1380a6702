package router

import (
	"context"

	"editbot/internal/editor"
)

// EditorHook attaches an editor context to each request. Messages and edits
// of the same message share one editor request, so the answer is edited in
// place. Button presses are interactions on the message carrying the button.
func EditorHook(svc *editor.Service) ContextHook {
	return func(_ context.Context, req *Request) {
		switch {
		case req.Update.Callback != nil:
			req.Editor = svc.For(editor.RequestFromCallback(req.Update.Callback))
		case req.Update.Message != nil:
			req.Editor = svc.For(editor.RequestFromMessage(req.Update.Message))
		}
	}
}

// AttachEditor registers every editor integration point on m.
func AttachEditor(m *CommandManager, svc *editor.Service) {
	m.Use(svc.Observe)
	m.SetEditFilter(svc.ShouldRedispatch)
	m.SetDeleteHook(svc.HandleDelete)
	m.SetContextHook(EditorHook(svc))
}
