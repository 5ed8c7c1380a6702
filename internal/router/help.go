package router

import (
	"sort"
	"strings"

	"editbot/pkg/tgui"
)

// helpText renders help for path in Telegram HTML.
func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return helpTop(root)
	}
	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.ToLower(strings.TrimPrefix(p, "/"))
		n, ok := cur.child(p)
		if !ok {
			if leaf, ok := alias[p]; ok && leaf.cmd != nil {
				cur, full = leaf, splitRoute(leaf.cmd.Route)
				break
			}
			return unknownHelp
		}
		cur = n
		full = append(full, p)
	}
	return helpNode(cur, full)
}

const unknownHelp = "❓ <b>Unknown command</b>\nType <code>/help</code> to list commands."

func helpTop(root *cmdNode) string {
	type row struct {
		name, desc string
		lock       bool
	}
	var rows []row
	for _, name := range root.childNames() {
		n, _ := root.child(name)
		rows = append(rows, row{name: name, desc: n.summary(), lock: n.ownerOnly()})
	}
	// Owner-only commands go last.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock
		}
		return rows[i].name < rows[j].name
	})

	b := tgui.New().
		Title("📚", "Commands").
		HTML("Type <code>/help &lt;cmd&gt;</code> for details.").
		Blank()
	for _, r := range rows {
		b.HTML(commandLine("/"+r.name, r.desc, r.lock))
	}
	return b.Build().Text
}

func helpNode(cur *cmdNode, full []string) string {
	b := tgui.New()
	b.HTML(tgui.JoinH(" ", "📚 <b>Help</b>", tgui.Code("/"+strings.Join(full, " "))))

	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			b.Line(d)
		}
		if c.Access == AccessOwnerOnly {
			b.HTML("🔒 <i>Owner only</i>")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			b.Blank().HTML("<b>Usage</b>").HTML(tgui.Code(u))
		}
		if short := shortcuts(*c); len(short) > 0 {
			b.Blank().HTML("<b>Shortcuts</b>")
			for _, s := range short {
				b.HTML("• " + tgui.Code("/"+s))
			}
		}
	} else {
		b.Line("Command group.")
		if cur.ownerOnly() {
			b.HTML("🔒 <i>Owner only</i>")
		}
	}

	if len(cur.children) > 0 {
		b.Blank().HTML("<b>Subcommands</b>")
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			path := append(append([]string(nil), full...), name)
			b.HTML(commandLine("/"+strings.Join(path, " "), n.summary(), n.ownerOnly()))
		}
	}
	return b.Build().Text
}

func commandLine(cmd, desc string, lock bool) tgui.H {
	prefix := "• "
	if lock {
		prefix = "• 🔒 "
	}
	line := tgui.H(prefix) + tgui.Code(cmd)
	if desc != "" {
		line += " - " + tgui.Esc(desc)
	}
	return line
}

func shortcuts(c Command) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if route := splitRoute(c.Route); len(route) > 1 {
		if name, ok := menuName(route); ok {
			add(name)
		}
	}
	for _, a := range c.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		add(a)
		add(sanitizeCommand(a))
	}
	sort.Strings(out)
	return out
}
