package router

import (
	"html"
	"sort"
	"strings"
)

// helpText renders help in Telegram HTML parse mode.
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
			if leaf, ok := alias[p]; ok && leaf.cmd != nil && len(full) == 0 {
				return helpNode(leaf, splitRoute(leaf.cmd.Route))
			}
			return "<b>Unknown command</b>\nSend <code>/help</code> for the command list."
		}
		cur = n
		full = append(full, p)
	}
	return helpNode(cur, full)
}

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
	// Owner-only commands last.
	sort.SliceStable(rows, func(i, j int) bool { return !rows[i].lock && rows[j].lock })

	lines := []string{"<b>Commands</b>", "Send <code>/help &lt;command&gt;</code> for details.", ""}
	for _, r := range rows {
		lines = append(lines, bullet(r.lock, "/"+r.name, r.desc))
	}
	return strings.Join(lines, "\n")
}

func helpNode(cur *cmdNode, full []string) string {
	lines := []string{"<b>Help</b> <code>" + html.EscapeString("/"+strings.Join(full, " ")) + "</code>"}
	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, html.EscapeString(d))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "<i>owners only</i>")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", "<b>Usage</b>", "<pre>"+html.EscapeString(u)+"</pre>")
		}
		if short := shortcuts(*c); len(short) > 0 {
			lines = append(lines, "", "<b>Shortcuts</b>")
			for _, s := range short {
				lines = append(lines, "• <code>/"+html.EscapeString(s)+"</code>")
			}
		}
	} else if cur.ownerOnly() {
		lines = append(lines, "<i>owners only</i>")
	}

	if len(cur.children) > 0 {
		lines = append(lines, "", "<b>Subcommands</b>")
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			cmd := "/" + strings.Join(append(append([]string(nil), full...), name), " ")
			lines = append(lines, bullet(n.ownerOnly(), cmd, n.summary()))
		}
	}
	return strings.Join(lines, "\n")
}

func bullet(lock bool, cmd, desc string) string {
	b := "• "
	if lock {
		b = "• 🔒 "
	}
	b += "<code>" + html.EscapeString(cmd) + "</code>"
	if desc != "" {
		b += ": " + html.EscapeString(desc)
	}
	return b
}

// shortcuts lists the menu name and aliases that reach c.
func shortcuts(c Command) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	route := splitRoute(c.Route)
	if name, ok := telegramCommandNameFromRoute(route); ok && len(route) > 1 {
		add(name)
	}
	for _, a := range c.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		add(a)
		add(sanitizeTelegramCommand(a))
	}
	sort.Strings(out)
	return out
}
