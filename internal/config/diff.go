package config

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"

	"editbot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections, log fields describing
// the new values (secrets are only reported as set/unset) and the names of
// plugins whose enable flag or config changed.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if trim(ot.PollTimeout) != trim(nt.PollTimeout) ||
		!slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		ot.Token != nt.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", trim(nt.PollTimeout)),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		nl := newCfg.Logging
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.Console),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
			logx.Bool("logging.chat_enabled", nl.Chat.Enabled),
		)
	}

	oe, ne := oldCfg.Editor, newCfg.Editor
	if oe.CacheSize != ne.CacheSize ||
		trim(oe.DeleteEmoji) != trim(ne.DeleteEmoji) ||
		!equalBoolPtr(oe.UseButton, ne.UseButton) ||
		trim(oe.DeleteTimeout) != trim(ne.DeleteTimeout) ||
		trim(oe.EditWindow) != trim(ne.EditWindow) ||
		trim(oe.DeleteDebounce) != trim(ne.DeleteDebounce) {
		changed = append(changed, "editor")
		attrs = append(attrs,
			logx.Int("editor.cache_size", ne.CacheSize),
			logx.String("editor.delete_emoji", trim(ne.DeleteEmoji)),
			logx.String("editor.delete_timeout", trim(ne.DeleteTimeout)),
		)
	}

	if oldCfg.Router != newCfg.Router {
		nr := newCfg.Router
		changed = append(changed, "router")
		attrs = append(attrs,
			logx.Int("router.workers", nr.Workers),
			logx.String("router.command_timeout", trim(nr.CommandTimeout)),
		)
	}

	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if (oldCfg.Storage == nil) != (newCfg.Storage == nil) || oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", trim(newS.Driver)),
			logx.Bool("storage.path_set", trim(newS.Path) != ""),
			logx.String("storage.retention", trim(newS.Retention)),
		)
	}

	oo, no := oldCfg.Observability, newCfg.Observability
	if oo.Enabled != no.Enabled || trim(oo.Addr) != trim(no.Addr) ||
		oo.AllowInsecure != no.AllowInsecure || oo.Pprof != no.Pprof ||
		(trim(oo.Token) != "") != (trim(no.Token) != "") {
		changed = append(changed, "observability")
		attrs = append(attrs,
			logx.Bool("observability.enabled", no.Enabled),
			logx.String("observability.addr", trim(no.Addr)),
			logx.Bool("observability.token_set", trim(no.Token) != ""),
			logx.Bool("observability.pprof", no.Pprof),
		)
	}

	plugins := diffPlugins(oldCfg.Plugins, newCfg.Plugins)
	if len(plugins) > 0 {
		changed = append(changed, "plugins")
		attrs = append(attrs, logx.Int("plugins.changed_count", len(plugins)))
	}

	sort.Strings(changed)
	return changed, attrs, plugins
}

func trim(s string) string { return strings.TrimSpace(s) }

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func diffPlugins(oldM, newM map[string]PluginConfigRaw) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}
	var out []string
	for name := range set {
		o, n := oldM[name], newM[name]
		if o.Enabled != n.Enabled || canonicalJSON(o.Config) != canonicalJSON(n.Config) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// canonicalJSON ignores whitespace and key order. Invalid JSON compares raw.
func canonicalJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}
