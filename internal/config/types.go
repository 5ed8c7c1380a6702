package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram      TelegramConfig             `json:"telegram"`
	Logging       LoggingConfig              `json:"logging"`
	Editor        EditorConfig               `json:"editor"`
	Router        RouterConfig               `json:"router,omitempty"`
	Storage       *StorageConfig             `json:"storage,omitempty"`
	Observability ObservabilityConfig        `json:"observability,omitempty"`
	Plugins       map[string]PluginConfigRaw `json:"plugins"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat forwards warnings (or the configured min level) to a chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// EditorConfig controls editable responses.
//
// Defaults (when fields are omitted/zero):
//   - cache_size: 500
//   - delete_emoji: "true" (trash can); the CTX_DELETE_EMOJI env var wins when set
//   - use_button: true
//   - delete_timeout: "120s"
//   - edit_window: "3s"
//   - delete_debounce: "1s"
type EditorConfig struct {
	CacheSize int `json:"cache_size,omitempty"`
	// DeleteEmoji accepts a bool-like word, a unicode emoji or a custom emoji id.
	DeleteEmoji    string `json:"delete_emoji,omitempty"`
	UseButton      *bool  `json:"use_button,omitempty"`
	DeleteTimeout  string `json:"delete_timeout,omitempty"`
	EditWindow     string `json:"edit_window,omitempty"`
	DeleteDebounce string `json:"delete_debounce,omitempty"`
}

// RouterConfig controls command dispatch.
type RouterConfig struct {
	Workers        int    `json:"workers,omitempty"`         // default 4
	QueueSize      int    `json:"queue_size,omitempty"`      // default 256
	CommandTimeout string `json:"command_timeout,omitempty"` // default "30s"
}

// StorageConfig controls the optional audit store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./editbot.db", "retention": "720h" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Retention drops audit rows older than this (Go duration, "0s" keeps everything).
	Retention string `json:"retention,omitempty"`
	// PruneSchedule is a cron spec for the retention job. Default "@hourly".
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// ObservabilityConfig controls the debug HTTP server (/metrics, /healthz, pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:9090").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type ObservabilityConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9090"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}

type PluginConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so typos are caught during reload.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}
