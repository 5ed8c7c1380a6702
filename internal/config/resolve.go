package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Editor is the parsed form of EditorConfig.
type Editor struct {
	CacheSize      int
	DeleteEmoji    string
	UseButton      bool
	DeleteTimeout  time.Duration
	EditWindow     time.Duration
	DeleteDebounce time.Duration
}

func (c EditorConfig) Resolve() (Editor, error) {
	out := Editor{
		CacheSize:   c.CacheSize,
		DeleteEmoji: strings.TrimSpace(c.DeleteEmoji),
		UseButton:   true,
	}
	if out.CacheSize <= 0 {
		out.CacheSize = 500
	}
	if out.DeleteEmoji == "" {
		out.DeleteEmoji = "true"
	}
	if c.UseButton != nil {
		out.UseButton = *c.UseButton
	}
	var err error
	if out.DeleteTimeout, err = ParseDurationOrDefault("editor.delete_timeout", c.DeleteTimeout, 120*time.Second); err != nil {
		return Editor{}, err
	}
	if out.EditWindow, err = ParseDurationOrDefault("editor.edit_window", c.EditWindow, 3*time.Second); err != nil {
		return Editor{}, err
	}
	if out.DeleteDebounce, err = ParseDurationOrDefault("editor.delete_debounce", c.DeleteDebounce, time.Second); err != nil {
		return Editor{}, err
	}
	return out, nil
}

// Router is the parsed form of RouterConfig.
type Router struct {
	Workers        int
	QueueSize      int
	CommandTimeout time.Duration
}

func (c RouterConfig) Resolve() (Router, error) {
	out := Router{Workers: c.Workers, QueueSize: c.QueueSize}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	var err error
	if out.CommandTimeout, err = ParseDurationOrDefault("router.command_timeout", c.CommandTimeout, 30*time.Second); err != nil {
		return Router{}, err
	}
	return out, nil
}

// Validate checks everything that can be checked without touching the network.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Editor.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Router.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
			errs = append(errs, err)
		}
		if spec := strings.TrimSpace(s.PruneSchedule); spec != "" {
			if _, err := cron.ParseStandard(spec); err != nil {
				errs = append(errs, fmt.Errorf("storage.prune_schedule: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
