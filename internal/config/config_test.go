package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: 10s
logging:
  level: debug
  console: true
editor:
  cache_size: 50
  delete_emoji: "🗑️"
  use_button: false
  delete_timeout: 30s
plugins:
  util:
    enabled: true
`

func TestDecodeYAML(t *testing.T) {
	t.Setenv(EnvDeleteEmoji, "")
	t.Setenv(EnvToken, "")

	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "123:abc" || len(cfg.Telegram.OwnerUserIDs) != 1 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	ed, err := cfg.Editor.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	want := Editor{
		CacheSize:      50,
		DeleteEmoji:    "🗑️",
		UseButton:      false,
		DeleteTimeout:  30 * time.Second,
		EditWindow:     3 * time.Second,
		DeleteDebounce: time.Second,
	}
	if ed != want {
		t.Fatalf("editor = %+v, want %+v", ed, want)
	}
	if !cfg.Plugins["util"].Enabled {
		t.Fatal("util plugin not enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown field", "c.json", `{"telegram":{"token":"x"},"bogus":1}`},
		{"trailing data", "c.json", `{"telegram":{"token":"x"}}{}`},
		{"unknown plugin field", "c.json", `{"plugins":{"util":{"enabled":true,"extra":1}}}`},
		{"bad yaml", "c.yml", "telegram: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.file, []byte(tt.body)); err == nil {
				t.Fatal("Decode() succeeded, want error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDeleteEmoji, " 5368324170671202286 ")
	t.Setenv(EnvToken, "from-env")

	cfg, err := Decode("c.json", []byte(`{"telegram":{"token":"file"},"editor":{"delete_emoji":"false"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Editor.DeleteEmoji != "5368324170671202286" {
		t.Fatalf("delete_emoji = %q", cfg.Editor.DeleteEmoji)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadDotenv() = %v, want nil for a missing file", err)
	}
}

func TestEditorDefaults(t *testing.T) {
	ed, err := EditorConfig{}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if ed.CacheSize != 500 || ed.DeleteEmoji != "true" || !ed.UseButton || ed.DeleteTimeout != 120*time.Second {
		t.Fatalf("defaults = %+v", ed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing token", Config{}, "telegram.token"},
		{"bad duration", Config{Telegram: TelegramConfig{Token: "x"}, Editor: EditorConfig{EditWindow: "soon"}}, "editor.edit_window"},
		{"negative duration", Config{Telegram: TelegramConfig{Token: "x"}, Router: RouterConfig{CommandTimeout: "-1s"}}, "router.command_timeout"},
		{"bad driver", Config{Telegram: TelegramConfig{Token: "x"}, Storage: &StorageConfig{Driver: "mongo"}}, "storage.driver"},
		{"bad cron", Config{Telegram: TelegramConfig{Token: "x"}, Storage: &StorageConfig{Driver: "sqlite", PruneSchedule: "whenever"}}, "storage.prune_schedule"},
		{"ok", Config{Telegram: TelegramConfig{Token: "x"}, Storage: &StorageConfig{Driver: "sqlite", PruneSchedule: "@daily"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	on := true
	oldCfg := &Config{
		Telegram: TelegramConfig{Token: "a"},
		Plugins:  map[string]PluginConfigRaw{"util": {Enabled: true, Config: []byte(`{"a":1,"b":2}`)}},
	}
	newCfg := &Config{
		Telegram: TelegramConfig{Token: "a"},
		Editor:   EditorConfig{UseButton: &on},
		Plugins:  map[string]PluginConfigRaw{"util": {Enabled: true, Config: []byte(`{ "b":2, "a":1 }`)}, "extra": {}},
	}
	changed, attrs, plugins := SummarizeChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "editor,plugins" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if strings.Join(plugins, ",") != "extra" {
		t.Fatalf("plugins = %v, key order must not count as a change", plugins)
	}
}

func TestManagerWatchPublishes(t *testing.T) {
	t.Setenv(EnvDeleteEmoji, "")
	t.Setenv(EnvToken, "")

	path := filepath.Join(t.TempDir(), "config.json")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(`{"telegram":{"token":"x"},"editor":{"cache_size":10}}`)

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error { return cfg.Validate() })
	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)
	// Invalid configs are rejected and never published.
	write(`{"telegram":{"token":""},"editor":{"cache_size":20}}`)
	time.Sleep(400 * time.Millisecond)
	write(`{"telegram":{"token":"x"},"editor":{"cache_size":30}}`)

	select {
	case cfg := <-updates:
		if cfg.Editor.CacheSize != 30 {
			t.Fatalf("cache_size = %d, want 30", cfg.Editor.CacheSize)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no config published")
	}
	if got := m.Get().Editor.CacheSize; got != 30 {
		t.Fatalf("Get() cache_size = %d", got)
	}
}

func TestParseDurationField(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "90s", want: 90 * time.Second},
		{raw: "500ms", want: 500 * time.Millisecond},
		{raw: "30d", want: 30 * 24 * time.Hour},
		{raw: "1w2d", want: 9 * 24 * time.Hour},
		{raw: "1.5h", want: 90 * time.Minute},
		{raw: "90", wantErr: true},
		{raw: "-1s", wantErr: true},
		{raw: "soon", wantErr: true},
		{raw: "x1d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDurationField("f", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	if d, _ := ParseDurationOrDefault("f", "", time.Minute); d != time.Minute {
		t.Fatalf("default = %v", d)
	}
}
