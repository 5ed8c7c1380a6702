// Package util provides everyday commands built on editable responses:
// echo, duration conversion, cache stats and liveness checks.
package util

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"editbot/internal/editor"
	"editbot/internal/router"
	"editbot/internal/storage"
)

const Name = "util"

type Config struct {
	// Prefix is prepended to echoed text.
	Prefix string `json:"prefix"`
}

type Deps struct {
	Editor      *editor.Service
	Store       storage.Store // nil when auditing is off
	Supervisors *router.SupervisorRegistry
}

type Plugin struct {
	d Deps

	mu  sync.RWMutex
	cfg Config

	startedAt time.Time
	now       func() time.Time
}

func New(d Deps) *Plugin {
	return &Plugin{d: d, startedAt: time.Now(), now: time.Now}
}

func (p *Plugin) Name() string { return Name }

// OnConfigChange applies the plugin's raw config section. An empty section
// keeps the current settings.
func (p *Plugin) OnConfigChange(_ context.Context, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = c
	p.mu.Unlock()
	return nil
}

func (p *Plugin) cfgSnapshot() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Plugin) Commands() []router.Command {
	const optsUsage = " [--delete[=emoji]] [--timeout=2m] [--after=30s] [--reply] [--button] [--quote]"
	return []router.Command{
		{
			Route:       "echo",
			Aliases:     []string{"say"},
			Description: "repeat text; edit your message to edit the reply",
			Usage:       "/echo <text>" + optsUsage,
			Plugin:      Name,
			Handle:      p.cmdEcho(echoEditable),
		},
		{
			Route:       "echo fresh",
			Description: "repeat text, always as a new message",
			Usage:       "/echo fresh <text>" + optsUsage,
			Plugin:      Name,
			Handle:      p.cmdEcho(echoFresh),
		},
		{
			Route:       "echo once",
			Description: "repeat text without remembering the reply",
			Usage:       "/echo once <text> [--reply]",
			Plugin:      Name,
			Handle:      p.cmdEcho(echoOnce),
		},
		{
			Route:       "mention",
			Description: "mention a user by username or id",
			Usage:       "/mention <@username | user id> [label]",
			Plugin:      Name,
			Handle:      p.cmdMention,
		},
		{
			Route:       "duration",
			Aliases:     []string{"dur"},
			Description: "convert a span like 1h30m into words",
			Usage:       "/duration <1w2d3h4m5s | seconds>",
			Plugin:      Name,
			Handle:      p.cmdDuration,
		},
		{
			Route:       "ping",
			Description: "liveness check",
			Usage:       "/ping",
			Plugin:      Name,
			Handle:      p.cmdPing,
		},
		{
			Route:       "cache",
			Description: "response cache and audit stats",
			Usage:       "/cache [--since=24h]",
			Access:      router.AccessOwnerOnly,
			Plugin:      Name,
			Handle:      p.cmdCache,
		},
		{
			Route:       "health",
			Description: "runtime and background task status",
			Usage:       "/health",
			Access:      router.AccessOwnerOnly,
			Plugin:      Name,
			Handle:      p.cmdHealth,
		},
	}
}

func joinArgs(args []string) string { return strings.TrimSpace(strings.Join(args, " ")) }
