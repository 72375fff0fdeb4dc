package router

import (
	"sort"
	"strings"
)

type cmdNode struct {
	cmd      *Command
	children map[string]*cmdNode
}

func newRoot() *cmdNode { return &cmdNode{children: map[string]*cmdNode{}} }

func splitRoute(route string) []string { return strings.Fields(route) }

func (n *cmdNode) add(route []string, c Command) *cmdNode {
	cur := n
	for _, tok := range route {
		next, ok := cur.children[tok]
		if !ok {
			next = &cmdNode{children: map[string]*cmdNode{}}
			cur.children[tok] = next
		}
		cur = next
	}
	cur.cmd = &c
	return cur
}

func (n *cmdNode) child(name string) (*cmdNode, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *cmdNode) childNames() []string {
	out := make([]string, 0, len(n.children))
	for k := range n.children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ownerOnly is true for an owner-only leaf, or a group whose every leaf is owner-only.
func (n *cmdNode) ownerOnly() bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	for _, c := range n.children {
		if !c.ownerOnly() {
			return false
		}
	}
	return len(n.children) > 0
}

// summary is the command description, or a hint listing the first subcommands.
func (n *cmdNode) summary() string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	if len(kids) > 3 {
		return "subcommands: " + strings.Join(kids[:3], ", ") + ", ..."
	}
	return "subcommands: " + strings.Join(kids, ", ")
}
