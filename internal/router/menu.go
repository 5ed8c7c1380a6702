package router

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"unicode"

	"editbot/internal/transport"
)

// Telegram accepts bot menu commands matching [a-z0-9_]{1,32}.
const maxCommandLen = 32

const lockMark = "🔒 "

// sanitizeCommand turns a route or alias into a valid menu command. Runs of
// separators become one underscore, other characters are dropped, and a
// leading digit gets a "cmd_" prefix.
func sanitizeCommand(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '_', r == '-', r == '/', unicode.IsSpace(r):
			pendingSep = true
		}
	}
	out := b.String()
	if out != "" && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > maxCommandLen {
		out = strings.TrimRight(out[:maxCommandLen], "_")
	}
	return out
}

// menuName is the single-word shortcut for a route: ["echo","fresh"] -> "echo_fresh".
func menuName(route []string) (string, bool) {
	name := sanitizeCommand(strings.Join(route, "_"))
	return name, name != ""
}

type menuEntry struct {
	transport.BotCommand
	tier int // 0: top-level command or group, 1: subcommand shortcut
}

// buildMenu lists top-level commands and groups first, then subcommands as
// underscore shortcuts. On a name clash the lower tier wins.
func buildMenu(root *cmdNode, cmds []Command) []transport.BotCommand {
	entries := map[string]menuEntry{}
	put := func(name, desc string, tier int, locked bool) {
		name = sanitizeCommand(name)
		if name == "" {
			return
		}
		if prev, ok := entries[name]; ok && prev.tier <= tier {
			return
		}
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if locked {
			desc = lockMark + desc
		}
		entries[name] = menuEntry{BotCommand: transport.BotCommand{Command: name, Description: desc}, tier: tier}
	}

	for _, name := range root.childNames() {
		n, _ := root.child(name)
		put(name, n.summary(), 0, n.ownerOnly())
	}
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		name, ok := menuName(route)
		if !ok {
			continue
		}
		desc := c.Description
		if strings.TrimSpace(desc) == "" {
			desc = strings.Join(route, " ")
		}
		put(name, desc, 1, c.Access == AccessOwnerOnly)
	}

	sorted := slices.SortedFunc(maps.Values(entries), func(a, b menuEntry) int {
		return cmp.Or(cmp.Compare(a.tier, b.tier), cmp.Compare(a.Command, b.Command))
	})
	out := make([]transport.BotCommand, len(sorted))
	for i, e := range sorted {
		out[i] = e.BotCommand
	}
	return out
}
