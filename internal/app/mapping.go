package app

import (
	"fmt"
	"strings"
	"time"

	"editbot/internal/config"
	"editbot/internal/editor"
	"editbot/internal/observability/httpserver"
	"editbot/internal/storage"
	telegram "editbot/internal/transport/telegram/adapter"
	"editbot/pkg/logx"
)

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Chat.Enabled,
			ChatID:     l.Chat.ChatID,
			MinLevel:   l.Chat.MinLevel,
			RatePerSec: l.Chat.RatePerSec,
		},
	}
}

func mapEditorConfig(cfg *config.Config) (editor.Config, error) {
	e, err := cfg.Editor.Resolve()
	if err != nil {
		return editor.Config{}, err
	}
	return editor.Config{
		CacheSize:        e.CacheSize,
		DeleteAffordance: e.DeleteEmoji,
		UseButton:        e.UseButton,
		DeleteTimeout:    e.DeleteTimeout,
		EditWindow:       e.EditWindow,
		DeleteDebounce:   e.DeleteDebounce,
	}, nil
}

// storagePlan is the resolved storage section.
type storagePlan struct {
	Enabled   bool
	Store     storage.Config
	Retention time.Duration
	Schedule  string
}

func mapStorageConfig(cfg *config.Config) (storagePlan, error) {
	if cfg == nil || cfg.Storage == nil {
		return storagePlan{}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storagePlan{}, nil
	}
	path := strings.TrimSpace(sc.Path)

	plan := storagePlan{Enabled: true, Schedule: strings.TrimSpace(sc.PruneSchedule)}
	var err error
	if plan.Retention, err = config.ParseDurationField("storage.retention", sc.Retention); err != nil {
		return storagePlan{}, err
	}

	switch driver {
	case "file":
		if path == "" {
			return storagePlan{}, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		plan.Store = storage.Config{Driver: "file", Path: path}
	case "sqlite", "sqlite3":
		if path == "" {
			return storagePlan{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storagePlan{}, err
		}
		plan.Store = storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}
	default:
		return storagePlan{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	return plan, nil
}

func mapHTTPConfig(cfg *config.Config) httpserver.Config {
	o := cfg.Observability
	return httpserver.Config{
		Enabled:       o.Enabled,
		Addr:          o.Addr,
		Token:         o.Token,
		AllowInsecure: o.AllowInsecure,
		Pprof:         o.Pprof,
		// Profiles stream for up to 30s by default.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}
