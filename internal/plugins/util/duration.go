package util

import (
	"context"
	"errors"
	"strconv"

	"github.com/dustin/go-humanize"

	"editbot/internal/convert"
	"editbot/internal/duration"
	"editbot/internal/router"
	"editbot/internal/transport"
	"editbot/pkg/tgui"
)

func (p *Plugin) cmdDuration(ctx context.Context, req *router.Request) error {
	in := joinArgs(req.Args)
	if in == "" {
		return router.Usagef("missing duration")
	}
	d, err := convert.Parse(convert.Duration, in)
	if err != nil {
		var bad *duration.InvalidFormatError
		if errors.As(err, &bad) {
			return router.Usagef("%q is not a duration", bad.Input)
		}
		return err
	}
	opts, err := optionsFrom(req)
	if err != nil {
		return err
	}
	return req.ReplyContent(ctx, renderDuration(d), opts)
}

func renderDuration(d duration.Duration) transport.Content {
	compact, err := duration.Format(d.Seconds, duration.Compact)
	if errors.Is(err, duration.ErrCompactTooLong) {
		compact = "n/a (7 days or more)"
	}
	return tgui.New().
		Title("⏱", "Duration").
		KV("Input", d.Original).
		KV("Seconds", humanize.Comma(d.Seconds)).
		KV("Long", duration.MustFormat(d.Seconds, duration.Long)).
		KV("Letters", duration.MustFormat(d.Seconds, duration.Letter)).
		KV("Clock", compact).
		KV("Go", strconv.Quote(d.Std().String())).
		Build()
}
