package app

import (
	"context"
	"slices"
	"strings"

	"editbot/internal/config"
	"editbot/internal/plugins/util"
	"editbot/pkg/logx"
)

// restartOnly are sections read once at startup.
var restartOnly = []string{"router", "telegram"}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.apply(ctx, last, next)
			last = next
		}
	}
}

// apply pushes a validated config into the running components.
func (a *App) apply(ctx context.Context, prev, cfg *config.Config) {
	sections, attrs, plugins := config.SummarizeChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	a.logs.Apply(mapLogConfig(cfg))

	if ed, err := mapEditorConfig(cfg); err != nil {
		a.log.Warn("invalid editor config; keeping previous", logx.Err(err))
	} else {
		a.editor.Apply(ed)
	}

	a.cmdm.SetOwners(cfg.Telegram.OwnerUserIDs)

	if slices.Contains(sections, "storage") {
		plan, err := mapStorageConfig(cfg)
		switch {
		case err != nil:
			a.log.Warn("invalid storage config; keeping previous", logx.Err(err))
		case plan.Store != a.storeCfg:
			a.log.Warn("storage backend changed; restart required for changes to take effect")
		default:
			a.startRetention(ctx, cfg)
		}
	}

	if slices.Contains(sections, "observability") {
		a.http.Reconfigure(ctx, mapHTTPConfig(cfg))
		a.sups.Set("http", a.http.Supervisor())
	}

	if slices.Contains(plugins, util.Name) {
		if pc, ok := cfg.Plugins[util.Name]; ok {
			if err := a.util.OnConfigChange(ctx, pc.Config); err != nil {
				a.log.Warn("invalid plugin config; keeping previous", logx.String("plugin", util.Name), logx.Err(err))
			}
		}
		if pluginEnabled(cfg, util.Name) != a.utilOn {
			a.setRegistry(ctx, cfg)
			a.log.Info("plugin toggled", logx.String("plugin", util.Name), logx.Bool("enabled", a.utilOn))
		}
	}

	for _, s := range restartOnly {
		if slices.Contains(sections, s) {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}
	a.log.Info("config reloaded", fields...)
}
