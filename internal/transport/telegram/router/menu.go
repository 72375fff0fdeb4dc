package router

import (
	"sort"
	"strings"
	"unicode"

	"remindbot/internal/transport"
)

// Telegram limits: command names match [a-z0-9_]{1,32}, descriptions are at
// most 256 characters, and a menu holds at most 100 commands.
const (
	maxMenuName  = 32
	maxMenuDesc  = 256
	maxMenuItems = 100
)

// sanitizeTelegramCommand turns a route or alias into a valid menu command
// name, or "" if nothing usable is left.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	under := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			under = false
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !under {
				b.WriteByte('_')
				under = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > maxMenuName {
		out = strings.TrimRight(out[:maxMenuName], "_")
	}
	return out
}

// telegramCommandNameFromRoute joins a route with underscores:
// ["remind", "set"] -> "remind_set".
func telegramCommandNameFromRoute(route []string) (string, bool) {
	out := sanitizeTelegramCommand(strings.Join(route, "_"))
	return out, out != ""
}

// buildTelegramMenuCommands lists top-level commands first, then
// underscore shortcuts for multi-token routes.
func buildTelegramMenuCommands(root *cmdNode, leaves []Command) []transport.BotCommand {
	type entry struct {
		cmd, desc string
		prio      int
	}
	byCmd := map[string]entry{}
	add := func(cmd, desc string, lock bool, prio int) {
		cmd = sanitizeTelegramCommand(cmd)
		if cmd == "" {
			return
		}
		desc = strings.ReplaceAll(strings.TrimSpace(desc), "\n", " ")
		if desc == "" {
			desc = cmd
		}
		if lock {
			desc = "🔒 " + desc
		}
		if r := []rune(desc); len(r) > maxMenuDesc {
			desc = string(r[:maxMenuDesc])
		}
		if cur, ok := byCmd[cmd]; ok && cur.prio <= prio {
			return
		}
		byCmd[cmd] = entry{cmd: cmd, desc: desc, prio: prio}
	}

	for _, name := range root.childNames() {
		n, _ := root.child(name)
		add(name, n.summary(), n.ownerOnly(), 0)
	}
	for _, c := range leaves {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		desc := c.Description
		if strings.TrimSpace(desc) == "" {
			desc = strings.Join(route, " ")
		}
		add(strings.Join(route, "_"), desc, c.Access == AccessOwnerOnly, 1)
	}

	entries := make([]entry, 0, len(byCmd))
	for _, e := range byCmd {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].cmd < entries[j].cmd
	})
	if len(entries) > maxMenuItems {
		entries = entries[:maxMenuItems]
	}
	out := make([]transport.BotCommand, 0, len(entries))
	for _, e := range entries {
		out = append(out, transport.BotCommand{Command: e.cmd, Description: e.desc})
	}
	return out
}
