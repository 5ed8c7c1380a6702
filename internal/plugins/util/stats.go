package util

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"editbot/internal/convert"
	"editbot/internal/editor"
	"editbot/internal/router"
	"editbot/internal/storage"
	"editbot/pkg/tgui"
)

func (p *Plugin) cmdPing(ctx context.Context, req *router.Request) error {
	start := p.now()
	if err := req.Reply(ctx, "pong"); err != nil {
		return err
	}
	// The first reply is edited with the round trip; an edited /ping measures again.
	return req.Reply(ctx, fmt.Sprintf("pong (%s)", p.now().Sub(start).Round(time.Millisecond)))
}

func (p *Plugin) cmdCache(ctx context.Context, req *router.Request) error {
	since := 24 * time.Hour
	if v, ok := req.Flags["since"]; ok {
		d, err := convert.Parse(convert.Duration, v)
		if err != nil || d.IsZero() {
			return router.Usagef("--since expects a span like 24h")
		}
		since = d.Std()
	}

	b := tgui.New().Title("🗂", "Response cache")
	if svc := p.d.Editor; svc != nil {
		c := svc.Cache()
		cfg := svc.Config()
		b.KV("Entries", humanize.Comma(int64(c.Len()))).
			KV("Capacity", humanize.Comma(int64(c.Capacity()))).
			KV("Evicted", humanize.Comma(int64(c.Evicted()))).
			KV("Delete watches", humanize.Comma(int64(svc.Watching()))).
			KV("Edit window", cfg.EditWindow.String()).
			KV("Delete timeout", cfg.DeleteTimeout.String())
	} else {
		b.Line("editor is not attached")
	}

	if st := p.d.Store; st != nil {
		from := p.now().Add(-since)
		counts, err := st.Counts(ctx, from)
		b.Blank().HTML(tgui.B("Audit since " + humanize.Time(from)))
		switch {
		case err != nil:
			b.Line("unavailable: " + err.Error())
		case len(counts) == 0:
			b.HTML(tgui.I("no entries"))
		default:
			for _, c := range counts {
				b.KV(auditLabel(c), humanize.Comma(c.N))
			}
		}
	}
	return req.ReplyContent(ctx, b.Build(), editor.Options{})
}

func auditLabel(c storage.Count) string {
	if c.Kind == storage.KindAffordance {
		return "delete " + c.Outcome
	}
	return c.Outcome
}

func (p *Plugin) cmdHealth(ctx context.Context, req *router.Request) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	b := tgui.New().Title("🩺", "Health").
		KV("Uptime", humanize.RelTime(p.startedAt, p.now(), "", "")).
		KV("Goroutines", humanize.Comma(int64(runtime.NumGoroutine()))).
		KV("Heap", humanize.IBytes(m.HeapAlloc)).
		KV("GC cycles", humanize.Comma(int64(m.NumGC)))

	sups := p.d.Supervisors.Snapshot()
	names := make([]string, 0, len(sups))
	for name := range sups {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		b.Blank().HTML(tgui.B("Tasks"))
	}
	for _, name := range names {
		snap := sups[name].Snapshot()
		line := fmt.Sprintf("%d active, %d started", snap.Active, snap.Started)
		if snap.Restarts > 0 {
			line += fmt.Sprintf(", %d restarts", snap.Restarts)
		}
		if snap.Panics > 0 {
			line += fmt.Sprintf(", %d panics", snap.Panics)
		}
		if snap.FirstError != "" {
			line += ", error: " + tgui.TruncRunes(strings.TrimSpace(snap.FirstError), 160)
		}
		b.KV(name, line)
	}
	return req.ReplyContent(ctx, b.Build(), editor.Options{})
}
