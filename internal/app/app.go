// Package app wires configuration, transport, the editor and the command
// router into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editbot/internal/config"
	"editbot/internal/editor"
	"editbot/internal/eventbus"
	"editbot/internal/observability/httpserver"
	"editbot/internal/observability/metrics"
	"editbot/internal/plugins/util"
	"editbot/internal/router"
	"editbot/internal/runtime/supervisor"
	"editbot/internal/storage"
	"editbot/internal/transport"
	telegram "editbot/internal/transport/telegram/adapter"
	"editbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor
	sups *router.SupervisorRegistry

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store     storage.Store
	storeCfg  storage.Config
	retention *storage.Retention

	adapter *telegram.Adapter
	editor  *editor.Service
	cmdm    *router.CommandManager
	metrics *metrics.Metrics
	http    *httpserver.Service
	util    *util.Plugin
	utilOn  bool

	updates chan transport.Update
}

// New loads the config and prepares every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(adCfg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(func(ctx context.Context, chatID int64, html string) error {
		_, err := ad.Send(ctx, transport.ChatTarget{ChatID: chatID}, transport.Content{Text: html, ParseMode: "HTML", DisablePreview: true}, nil)
		return err
	})

	edCfg, err := mapEditorConfig(cfg)
	if err != nil {
		return nil, err
	}
	rcfg, err := cfg.Router.Resolve()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		sups:    router.NewSupervisorRegistry(),
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     eventbus.New(),
		adapter: ad,
		updates: make(chan transport.Update, 256),
	}

	plan, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if plan.Enabled {
		st, err := storage.Open(plan.Store, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store, a.storeCfg = st, plan.Store
		a.retention = storage.NewRetention(st, log)
		a.log.Info("storage enabled", logx.String("driver", plan.Store.Driver))
	}

	a.editor = editor.New(edCfg, editor.Deps{
		Messenger: ad,
		Bus:       a.bus,
		Spawner:   a,
		Logger:    log,
	})
	a.cmdm = router.NewCommandManager(log.With(logx.String("comp", "router")),
		ad, cfgm, a.sups, cfg.Telegram.OwnerUserIDs, router.OptionsFrom(rcfg))
	a.metrics = metrics.New(metrics.Sources{Editor: a.editor, Bus: a.bus, Dropped: ad.Dropped})
	a.http = httpserver.New(log, a.metrics.Handler(), a.health)
	a.util = util.New(util.Deps{Editor: a.editor, Store: a.store, Supervisors: a.sups})
	if pc, ok := cfg.Plugins[util.Name]; ok {
		if err := a.util.OnConfigChange(context.Background(), pc.Config); err != nil {
			return nil, fmt.Errorf("plugins.%s: %w", util.Name, err)
		}
	}

	// Metrics see every update first and never consume it.
	a.cmdm.Use(a.metrics.ObserveUpdate)
	router.AttachEditor(a.cmdm, a.editor)
	return a, nil
}

// Go0 runs editor background work under the app supervisor. Work spawned
// before Start or after Stop is dropped.
func (a *App) Go0(name string, fn func(ctx context.Context)) {
	if a.sup == nil || a.sup.Context().Err() != nil {
		a.log.Debug("background task dropped (app not running)", logx.String("task", name))
		return
	}
	a.sup.Go0(name, fn)
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.sups.Set("app", a.sup)
	cfg := a.cfgm.Get()

	// Reloads are validated before they are committed.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		_, err := mapStorageConfig(c)
		return err
	})

	a.setRegistry(a.sup.Context(), cfg)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sups.Set("telegram", a.adapter.Supervisor())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("metrics.events", func(c context.Context) {
		a.metrics.Run(c, a.bus)
	})

	if a.store != nil {
		a.sup.Go0("storage.record", func(c context.Context) {
			storage.Record(c, a.bus, a.store, a.log.With(logx.String("comp", "storage.recorder")))
		})
		a.startRetention(a.sup.Context(), cfg)
	}

	a.http.Reconfigure(a.sup.Context(), mapHTTPConfig(cfg))
	a.sups.Set("http", a.http.Supervisor())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.Bool("audit", a.store != nil), logx.Bool("http", cfg.Observability.Enabled))
	return nil
}

// setRegistry publishes the enabled commands to the router.
func (a *App) setRegistry(ctx context.Context, cfg *config.Config) {
	on := pluginEnabled(cfg, util.Name)
	var cmds []router.Command
	if on {
		cmds = append(cmds, a.util.Commands()...)
	}
	a.cmdm.SetRegistry(ctx, cmds, nil)
	a.utilOn = on
}

// pluginEnabled treats a missing plugin section as enabled.
func pluginEnabled(cfg *config.Config, name string) bool {
	pc, ok := cfg.Plugins[name]
	return !ok || pc.Enabled
}

func (a *App) startRetention(ctx context.Context, cfg *config.Config) {
	if a.retention == nil {
		return
	}
	plan, err := mapStorageConfig(cfg)
	if err != nil {
		a.log.Warn("invalid storage config; keeping previous retention", logx.Err(err))
		return
	}
	if err := a.retention.Start(ctx, plan.Schedule, plan.Retention); err != nil {
		a.log.Warn("audit retention not scheduled", logx.Err(err))
	}
}

func (a *App) health(context.Context) error {
	if a.sup == nil {
		return errors.New("not started")
	}
	if err := a.sup.Err(); err != nil {
		return err
	}
	if a.adapter.Supervisor() == nil {
		return errors.New("telegram adapter stopped")
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "http", time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	a.step(ctx, "retention", time.Second, func(context.Context) error {
		if a.retention != nil {
			a.retention.Stop()
		}
		return nil
	})
	// Wait for supervised goroutines (dispatcher, config watch, editor timers).
	a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step with an upper bound so one component can't
// stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		// never extend the caller's deadline
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
