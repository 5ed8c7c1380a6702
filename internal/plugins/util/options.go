package util

import (
	"errors"

	"editbot/internal/convert"
	"editbot/internal/editor"
	"editbot/internal/router"
	"editbot/internal/transport"
)

// affordanceArg accepts a yes/no word or an emoji.
var affordanceArg = convert.FirstOf(
	convert.Map(convert.Bool, func(b bool) any { return b }),
	convert.Map(convert.EmojiArg, func(e transport.Emoji) any { return e }),
)

// optionsFrom maps command flags to response options:
//
//	--delete[=yes|no|emoji|id]  delete affordance override
//	--timeout=<span>            how long the affordance waits
//	--after=<span>              delete the reply unconditionally
//	--reply                     quote the command on fresh sends
//	--button / --react          affordance trigger
func optionsFrom(req *router.Request) (editor.Options, error) {
	var opts editor.Options

	if req.BoolFlags["delete"] {
		opts.DeleteAffordance = true
	}
	if v, ok := req.Flags["delete"]; ok {
		spec, err := convert.Parse(affordanceArg, v)
		if err != nil {
			if errors.Is(err, convert.ErrNoMatch) {
				return opts, router.Usagef("--delete expects yes, no or an emoji, got %q", v)
			}
			return opts, router.Usagef("--delete: %v", err)
		}
		opts.DeleteAffordance = spec
	}

	if v, ok := req.Flags["timeout"]; ok {
		d, err := convert.Parse(convert.Duration, v)
		if err != nil {
			return opts, router.Usagef("--timeout: %v", err)
		}
		opts.DeleteTimeout = d.Std()
	}
	if v, ok := req.Flags["after"]; ok {
		d, err := convert.Parse(convert.Duration, v)
		if err != nil {
			return opts, router.Usagef("--after: %v", err)
		}
		opts.DeleteAfter = d.Std()
	}

	opts.Reply = req.BoolFlags["reply"]
	switch {
	case req.BoolFlags["button"]:
		opts.Trigger = editor.TriggerButton
	case req.BoolFlags["react"]:
		opts.Trigger = editor.TriggerReaction
	}
	opts.KeepInvokeReactions = req.BoolFlags["keep-reactions"]
	return opts, nil
}
