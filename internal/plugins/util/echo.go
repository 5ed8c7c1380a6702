package util

import (
	"context"

	"editbot/internal/convert"
	"editbot/internal/router"
	"editbot/internal/transport"
	"editbot/pkg/tgui"
)

type echoMode int

const (
	echoEditable echoMode = iota
	echoFresh             // a new message each time, replacing the cached one
	echoOnce              // bypass the cache entirely
)

func (p *Plugin) cmdEcho(mode echoMode) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		txt := joinArgs(req.Args)
		if txt == "" {
			return router.Usagef("nothing to echo")
		}
		opts, err := optionsFrom(req)
		if err != nil {
			return err
		}
		switch mode {
		case echoFresh:
			opts.NoEdit = true
		case echoOnce:
			opts.NoSave = true
		}
		c := transport.Content{Text: p.cfgSnapshot().Prefix + txt}
		if req.BoolFlags["quote"] {
			c = transport.Content{Text: tgui.Quote(c.Text).String(), ParseMode: "HTML", DisablePreview: true}
		}
		return req.ReplyContent(ctx, c, opts)
	}
}

func (p *Plugin) cmdMention(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return router.Usagef("missing user")
	}
	m, err := convert.Parse(convert.MentionArg, req.Args[0])
	if err != nil {
		return router.Usagef("%v", err)
	}
	label := joinArgs(req.Args[1:])
	var h tgui.H
	switch {
	case m.ID != 0:
		if label == "" {
			label = m.String()
		}
		h = tgui.Mention(label, m.ID)
	case label != "":
		h = tgui.JoinH(" ", tgui.Esc(label), tgui.I("("+m.String()+")"))
	default:
		h = tgui.Esc(m.String())
	}
	return req.ReplyHTML(ctx, h.String())
}
